package sequencer

import (
	"github.com/rigsofrods/relay-sequencer/internal/relay"
	"github.com/rigsofrods/relay-sequencer/internal/wire"
)

// Disconnect runs the ordered disconnect sequence (§4.6) and is safe to
// call from any goroutine, including a client's own receiver after a
// read error. It is idempotent: calling it twice for the same uid (a
// race between a socket error and an explicit kick) is a silent no-op
// the second time.
func (s *Sequencer) Disconnect(uid uint32, reason string, crashed bool) {
	s.reaperLock.Lock()
	defer s.reaperLock.Unlock()

	s.clientTableLock.Lock()
	pos := -1
	for i, c := range s.clients {
		if c.uid == uid {
			pos = i
			break
		}
	}
	if pos == -1 {
		s.clientTableLock.Unlock()
		return
	}
	departing := s.clients[pos]
	s.clientTableLock.Unlock()

	if departing.authFlags.Has(relay.AuthRanked) && s.auth != nil {
		kind := "leave"
		if crashed {
			kind = "crash"
		}
		s.auth.SendUserEvent(departing.token, kind, departing.nickname, "", func(msg string) { s.logger.Print(msg) })
	}

	if s.script != nil {
		s.script.PlayerDeleted(uid, crashed)
	}

	cmd := wire.CmdUserLeave
	if crashed {
		cmd = wire.CmdDelete
	}

	s.clientTableLock.Lock()
	for _, dst := range s.clients {
		dst.enqueue(wire.Frame{Command: cmd, SourceUID: uid, Payload: []byte(reason)})
	}

	s.clients = append(s.clients[:pos], s.clients[pos+1:]...)
	delete(s.byUID, uid)
	for i := pos; i < len(s.clients); i++ {
		s.clients[i].slot = i
	}

	s.connCount++
	if crashed {
		s.connCrash++
	}
	s.clientTableLock.Unlock()

	s.enqueueKill(departing)
}

// Shutdown sends a shutdown DELETE frame to every live client, then
// disconnects each one, handing it to the reaper. It returns without
// waiting for the reaper to drain and does not itself stop the
// listener; the caller does both separately.
func (s *Sequencer) Shutdown() {
	const reason = "server shutting down (try to reconnect later!)"

	s.clientTableLock.Lock()
	uids := make([]uint32, len(s.clients))
	for i, c := range s.clients {
		uids[i] = c.uid
		c.enqueue(wire.Frame{Command: wire.CmdDelete, SourceUID: c.uid, Payload: []byte(reason)})
	}
	s.clientTableLock.Unlock()

	for _, uid := range uids {
		s.Disconnect(uid, reason, false)
	}
}
