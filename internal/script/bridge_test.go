package script

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rigsofrods/relay-sequencer/internal/relay"
)

type stubHost struct {
	names map[uint32]string
	sent  []string
	kicked []uint32
}

func (s *stubHost) PlayerName(uid uint32) (string, bool) {
	n, ok := s.names[uid]
	return n, ok
}

func (s *stubHost) PlayerCount() int { return len(s.names) }

func (s *stubHost) ChatSendPlayer(uid uint32, msg string) error {
	s.sent = append(s.sent, msg)
	return nil
}

func (s *stubHost) ChatSendAll(msg string) {
	s.sent = append(s.sent, msg)
}

func (s *stubHost) KickPlayer(uid uint32, reason string) error {
	s.kicked = append(s.kicked, uid)
	return nil
}

func openScript(t *testing.T, source string) (*Bridge, *stubHost) {
	dir := t.TempDir()
	path := filepath.Join(dir, "script.lua")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))

	host := &stubHost{names: map[uint32]string{1: "alice"}}
	logger := log.New(&bytes.Buffer{}, "[script] ", 0)

	b, err := Open(path, host, logger)
	require.NoError(t, err)
	t.Cleanup(b.Close)

	return b, host
}

func TestPlayerChatOverridesToBlock(t *testing.T) {
	b, _ := openScript(t, `
		sequencer.register_player_chat(function(uid, text)
			return "BLOCK"
		end)
	`)

	decision := b.PlayerChat(1, "hello")
	require.Equal(t, relay.BroadcastBlock, decision)
}

func TestPlayerChatAutoLeavesUnchanged(t *testing.T) {
	b, _ := openScript(t, `
		sequencer.register_player_chat(function(uid, text)
			return "AUTO"
		end)
	`)

	decision := b.PlayerChat(1, "hello")
	require.Equal(t, relay.BroadcastAuto, decision)
}

func TestNoHandlerRegisteredIsAuto(t *testing.T) {
	b, _ := openScript(t, ``)

	require.Equal(t, relay.BroadcastAuto, b.PlayerChat(1, "hello"))
	require.Equal(t, relay.BroadcastAuto, b.StreamAdded(1, "vehicle", 0))
}

func TestPlayerAddedCallsHostBack(t *testing.T) {
	b, host := openScript(t, `
		sequencer.register_player_added(function(uid)
			sequencer.chat_send_player(uid, "welcome")
		end)
	`)

	b.PlayerAdded(1)
	require.Equal(t, []string{"welcome"}, host.sent)
}

func TestKickPlayerFromScript(t *testing.T) {
	b, host := openScript(t, `
		sequencer.register_game_cmd(function(uid, text)
			sequencer.kick_player(uid, text)
		end)
	`)

	b.GameCmd(1, "begone")
	require.Equal(t, []uint32{1}, host.kicked)
}
