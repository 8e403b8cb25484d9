package sequencer

import (
	"github.com/rigsofrods/relay-sequencer/internal/relay"
	"github.com/rigsofrods/relay-sequencer/internal/wire"
)

// The methods in this file implement script.Host, so the embedded
// bridge can call back into the live client table. They are deliberately
// thin wrappers around the same table operations List/Kick/Ban/Unban
// already use from the console and !-command surfaces.

// PlayerName implements script.Host.
func (s *Sequencer) PlayerName(uid uint32) (string, bool) {
	s.clientTableLock.Lock()
	defer s.clientTableLock.Unlock()

	c := s.findByUID(uid)
	if c == nil {
		return "", false
	}
	return c.nickname, true
}

// PlayerCount implements script.Host.
func (s *Sequencer) PlayerCount() int {
	return s.NumClients()
}

// ChatSendPlayer implements script.Host: sends text to uid only, as a
// server-origin CHAT frame.
func (s *Sequencer) ChatSendPlayer(uid uint32, msg string) error {
	s.clientTableLock.Lock()
	c := s.findByUID(uid)
	s.clientTableLock.Unlock()

	if c == nil {
		return ErrUnknownClient
	}
	c.enqueue(wire.Frame{Command: wire.CmdChat, SourceUID: relay.ServerUID, Payload: serverChatPayload(0, msg)})
	return nil
}

// ChatSendAll implements script.Host: sends text to every live client, as
// a server-origin CHAT frame.
func (s *Sequencer) ChatSendAll(msg string) {
	s.clientTableLock.Lock()
	defer s.clientTableLock.Unlock()

	payload := serverChatPayload(0, msg)
	for _, c := range s.clients {
		c.enqueue(wire.Frame{Command: wire.CmdChat, SourceUID: relay.ServerUID, Payload: payload})
	}
}

// KickPlayer implements script.Host by delegating to the shared Kick
// implementation used by the console and !-command surfaces.
func (s *Sequencer) KickPlayer(uid uint32, reason string) error {
	return s.Kick(uid, reason)
}
