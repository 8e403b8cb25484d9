package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWriterCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	_, err := NewWriter(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestNewWriterRotatesLatestToLast(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "latest.txt"), []byte("old run\n"), 0o644))

	_, err := NewWriter(dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "last.txt"))
	require.NoError(t, err)
	require.Equal(t, "old run\n", string(data))

	_, err = os.Stat(filepath.Join(dir, "latest.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestWriteAppendsToLatest(t *testing.T) {
	dir := t.TempDir()

	w, err := NewWriter(dir)
	require.NoError(t, err)

	logger := New(w, "test")
	logger.Print("hello")

	data, err := os.ReadFile(filepath.Join(dir, "latest.txt"))
	require.NoError(t, err)
	require.Contains(t, string(data), "[test]")
	require.Contains(t, string(data), "hello")
}
