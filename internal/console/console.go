// Package console implements the optional stdin-driven operator
// console, modeled on the project's existing console.go history/
// command dispatch loop but using a plain line-oriented bufio.Scanner
// instead of a curses full-screen UI.
package console

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
)

// Commands is the narrow surface the console dispatches into. It is
// implemented by *sequencer.Sequencer and reuses the exact same
// functions the chat command handler calls, so the two surfaces cannot
// drift apart.
type Commands interface {
	List() string
	Kick(uid uint32, reason string) error
	Ban(uid uint32, bannedBy, reason string) error
	Unban(uidOrNickname string) error
	Bans() string
	Stats() string
}

// Console reads operator commands from r and writes responses to a
// logger, until the operator types quit or the reader is closed.
type Console struct {
	cmds    Commands
	logger  *log.Logger
	scanner *bufio.Scanner

	history []string

	quit chan struct{}
}

// New constructs a console reading from r.
func New(r io.Reader, cmds Commands, logger *log.Logger) *Console {
	return &Console{
		cmds:    cmds,
		logger:  logger,
		scanner: bufio.NewScanner(r),
		quit:    make(chan struct{}),
	}
}

// Quit is closed when the operator types "quit", signaling the caller
// to begin graceful shutdown.
func (c *Console) Quit() <-chan struct{} {
	return c.quit
}

// Run reads lines until EOF or "quit" and dispatches each as a command.
// It blocks the calling goroutine; callers run it in its own goroutine.
func (c *Console) Run() {
	for c.scanner.Scan() {
		line := strings.TrimSpace(c.scanner.Text())
		if line == "" {
			continue
		}

		c.history = append(c.history, line)

		if c.dispatch(line) {
			close(c.quit)
			return
		}
	}
}

// dispatch runs one command line and reports whether it was "quit".
func (c *Console) dispatch(line string) (quit bool) {
	fields := strings.Fields(line)
	verb, args := fields[0], fields[1:]

	switch verb {
	case "quit":
		c.logger.Print("shutting down")
		return true

	case "list":
		c.logger.Print(c.cmds.List())

	case "stats":
		c.logger.Print(c.cmds.Stats())

	case "bans":
		c.logger.Print(c.cmds.Bans())

	case "kick":
		if len(args) < 1 {
			c.logger.Print("usage: kick <uid> [reason]")
			return false
		}
		uid, reason, err := parseUIDAndReason(args)
		if err != nil {
			c.logger.Print(err)
			return false
		}
		if err := c.cmds.Kick(uid, reason); err != nil {
			c.logger.Printf("kick: %v", err)
		}

	case "ban":
		if len(args) < 1 {
			c.logger.Print("usage: ban <uid> [reason]")
			return false
		}
		uid, reason, err := parseUIDAndReason(args)
		if err != nil {
			c.logger.Print(err)
			return false
		}
		if err := c.cmds.Ban(uid, "console", reason); err != nil {
			c.logger.Printf("ban: %v", err)
		}

	case "unban":
		if len(args) < 1 {
			c.logger.Print("usage: unban <uid or nickname>")
			return false
		}
		if err := c.cmds.Unban(args[0]); err != nil {
			c.logger.Printf("unban: %v", err)
		}

	default:
		c.logger.Printf("unknown command %q", verb)
	}

	return false
}

func parseUIDAndReason(args []string) (uint32, string, error) {
	var uid uint32
	if _, err := fmt.Sscanf(args[0], "%d", &uid); err != nil {
		return 0, "", fmt.Errorf("invalid uid %q", args[0])
	}
	return uid, strings.Join(args[1:], " "), nil
}
