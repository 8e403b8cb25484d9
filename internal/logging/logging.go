// Package logging wraps the standard library log package with an
// io.Writer that tees to stdout and to a rotating log/latest.txt ->
// log/last.txt file pair, exactly as the project's existing log.go
// does, but constructed explicitly rather than installed as a package
// global so each subsystem gets its own prefixed *log.Logger.
package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// Writer tees every write to stdout and appends it to log/latest.txt.
// NewWriter rotates any existing log/latest.txt to log/last.txt first.
type Writer struct {
	dir string
}

// NewWriter prepares the log directory, rotating a prior run's
// latest.txt out of the way, and returns a Writer ready to be teed
// into multiple *log.Logger instances.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return nil, fmt.Errorf("logging: creating %s: %w", dir, err)
	}

	latest := filepath.Join(dir, "latest.txt")
	last := filepath.Join(dir, "last.txt")
	if _, err := os.Stat(latest); err == nil {
		os.Rename(latest, last)
	}

	return &Writer{dir: dir}, nil
}

func (w *Writer) Write(p []byte) (int, error) {
	fmt.Print(string(p))

	f, err := os.OpenFile(filepath.Join(w.dir, "latest.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if _, err := f.Write(p); err != nil {
		return 0, err
	}

	return len(p), nil
}

// New returns a *log.Logger for subsystem, bracketed and teed through w.
// Each subsystem gets its own instance, constructed once at startup and
// passed down explicitly, so tests can substitute a bytes.Buffer-backed
// logger instead of touching the filesystem.
func New(w *Writer, subsystem string) *log.Logger {
	return log.New(w, fmt.Sprintf("[%s] ", subsystem), log.LstdFlags)
}
