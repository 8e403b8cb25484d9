package console

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubCommands struct {
	kicked  []uint32
	banned  []uint32
	unbanned []string
}

func (s *stubCommands) List() string  { return "0 clients" }
func (s *stubCommands) Stats() string { return "uptime: 0s" }
func (s *stubCommands) Bans() string  { return "no bans" }

func (s *stubCommands) Kick(uid uint32, reason string) error {
	s.kicked = append(s.kicked, uid)
	return nil
}

func (s *stubCommands) Ban(uid uint32, bannedBy, reason string) error {
	s.banned = append(s.banned, uid)
	return nil
}

func (s *stubCommands) Unban(uidOrNickname string) error {
	s.unbanned = append(s.unbanned, uidOrNickname)
	return nil
}

func TestConsoleDispatchesKickAndBan(t *testing.T) {
	cmds := &stubCommands{}
	logger := log.New(&bytes.Buffer{}, "", 0)

	r := strings.NewReader("kick 3 griefing\nban 4 cheating\nunban bob\nquit\n")
	c := New(r, cmds, logger)
	c.Run()

	require.Equal(t, []uint32{3}, cmds.kicked)
	require.Equal(t, []uint32{4}, cmds.banned)
	require.Equal(t, []string{"bob"}, cmds.unbanned)
}

func TestConsoleQuitClosesChannel(t *testing.T) {
	cmds := &stubCommands{}
	logger := log.New(&bytes.Buffer{}, "", 0)

	r := strings.NewReader("quit\n")
	c := New(r, cmds, logger)
	c.Run()

	select {
	case <-c.Quit():
	default:
		t.Fatal("expected quit channel to be closed")
	}
}

func TestConsoleUnknownCommandDoesNotPanic(t *testing.T) {
	cmds := &stubCommands{}
	logger := log.New(&bytes.Buffer{}, "", 0)

	r := strings.NewReader("frobnicate\nquit\n")
	c := New(r, cmds, logger)
	c.Run()
}

func TestConsoleEOFWithoutQuit(t *testing.T) {
	cmds := &stubCommands{}
	logger := log.New(&bytes.Buffer{}, "", 0)

	r := strings.NewReader("list\n")
	c := New(r, cmds, logger)
	c.Run()

	select {
	case <-c.Quit():
		t.Fatal("quit channel should remain open on plain EOF")
	default:
	}
}
