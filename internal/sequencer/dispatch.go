package sequencer

import (
	"fmt"
	"strings"
	"time"

	"github.com/rigsofrods/relay-sequencer/internal/relay"
	"github.com/rigsofrods/relay-sequencer/internal/wire"
)

// Dispatch is the entry point called by a client's receiver goroutine
// for each inbound frame (§4.3). Only table reads/mutations run under
// clientTableLock; calls into the script bridge always run with the
// lock released, since a hook may call back into the Sequencer's own
// locking methods (chat_send_player, kick_player, ...).
func (s *Sequencer) Dispatch(senderUID uint32, f wire.Frame) {
	s.clientTableLock.Lock()
	sender := s.findByUID(senderUID)
	if sender == nil {
		s.clientTableLock.Unlock()
		return
	}
	sender.trafficFor(f.StreamID).BytesIn += uint64(len(f.Payload))
	s.clientTableLock.Unlock()

	switch f.Command {
	case wire.CmdStreamData:
		s.dispatchStreamData(sender, f)
	case wire.CmdStreamRegister:
		s.dispatchStreamRegister(sender, f)
	case wire.CmdChat:
		s.dispatchChat(sender, f)
	case wire.CmdPrivChat:
		s.dispatchPrivChat(sender, f)
	case wire.CmdGameCmd:
		if s.script != nil {
			s.script.GameCmd(sender.uid, string(f.Payload))
		}
	case wire.CmdVehicleData:
		s.dispatchVehicleData(sender, f)
	case wire.CmdDelete:
		go s.Disconnect(sender.uid, "client requested disconnect", false)
	case wire.CmdUseVehicle:
		s.logger.Printf("USE_VEHICLE from uid %d is deprecated; dropping", sender.uid)
	default:
		violation := &ProtocolViolation{Reason: fmt.Sprintf("unrecognized command %s", f.Command)}
		s.logger.Printf("WARN: %v from uid %d", violation, sender.uid)
		go s.Disconnect(sender.uid, violation.Error(), true)
	}
}

func (s *Sequencer) dispatchStreamData(sender *client, f wire.Frame) {
	s.clientTableLock.Lock()
	if !sender.initialized {
		s.notifyAllVehicles(sender)
		sender.initialized = true
	}
	s.broadcast(relay.BroadcastNormal, sender, f)
	s.clientTableLock.Unlock()
}

func (s *Sequencer) dispatchStreamRegister(sender *client, f wire.Frame) {
	s.clientTableLock.Lock()
	if len(sender.streams) >= relay.MaxStreamsPerClient {
		s.clientTableLock.Unlock()
		return
	}
	reg, ok := parseStreamRegister(f.Payload)
	if !ok {
		s.clientTableLock.Unlock()
		return
	}
	sender.streams[f.StreamID] = reg
	sender.traffic[f.StreamID] = &relay.TrafficCounters{}
	s.clientTableLock.Unlock()

	decision := relay.BroadcastNormal
	if s.script != nil {
		override := s.script.StreamAdded(sender.uid, reg.Name, int(reg.Type))
		decision = relay.Resolve(decision, override)
	}

	s.clientTableLock.Lock()
	s.broadcast(decision, sender, f)
	s.clientTableLock.Unlock()
}

func (s *Sequencer) dispatchChat(sender *client, f wire.Frame) {
	text := string(f.Payload)

	s.clientTableLock.Lock()
	s.pushChat(chatRecord{
		Time:     time.Now(),
		Source:   sender.uid,
		Nickname: sender.nickname,
		Message:  text,
	})
	s.clientTableLock.Unlock()

	decision := relay.BroadcastAll
	if s.script != nil {
		override := s.script.PlayerChat(sender.uid, text)
		decision = relay.Resolve(decision, override)
	}

	if strings.HasPrefix(text, "!") {
		s.handleChatCommand(sender, strings.TrimPrefix(text, "!"))
		return
	}

	s.clientTableLock.Lock()
	s.broadcast(decision, sender, f)
	s.clientTableLock.Unlock()
}

func (s *Sequencer) dispatchPrivChat(sender *client, f wire.Frame) {
	if len(f.Payload) < 4 {
		return
	}
	targetUID := wire.Uint32LE(f.Payload[0:4])
	text := f.Payload[4:]

	s.clientTableLock.Lock()
	defer s.clientTableLock.Unlock()

	target := s.findByUID(targetUID)
	if target == nil {
		return
	}

	target.trafficFor(f.StreamID).BytesOut += uint64(len(text))
	target.enqueue(wire.Frame{
		Command:   wire.CmdChat,
		SourceUID: sender.uid,
		StreamID:  f.StreamID,
		Payload:   text,
	})
}

func (s *Sequencer) dispatchVehicleData(sender *client, f wire.Frame) {
	s.clientTableLock.Lock()
	if s.script != nil {
		if pos, ok := parseVehiclePosition(f.Payload); ok {
			sender.position = pos
		}
	}
	s.broadcast(relay.BroadcastNormal, sender, f)
	s.clientTableLock.Unlock()
}

// broadcast fans f out to the policy's destination set, accumulating
// bytesOut on each destination as it goes. Caller must hold
// clientTableLock. decision is never BroadcastAuto: every call site
// resolves an override against its own default before calling in.
func (s *Sequencer) broadcast(decision relay.BroadcastDecision, sender *client, f wire.Frame) {
	switch decision {
	case relay.BroadcastBlock:
		return
	case relay.BroadcastAll:
		for _, dst := range s.clients {
			s.deliver(dst, sender, f)
		}
	case relay.BroadcastAuthed:
		for _, dst := range s.clients {
			if dst.uid == sender.uid {
				continue
			}
			if dst.authFlags.Has(relay.AuthAdmin) {
				s.deliver(dst, sender, f)
			}
		}
	default: // BroadcastNormal
		for _, dst := range s.clients {
			if dst.uid == sender.uid {
				continue
			}
			s.deliver(dst, sender, f)
		}
	}
}

func (s *Sequencer) deliver(dst, sender *client, f wire.Frame) {
	if !dst.flow {
		return
	}
	dst.trafficFor(f.StreamID).BytesOut += uint64(len(f.Payload))
	dst.enqueue(wire.Frame{Command: f.Command, SourceUID: sender.uid, StreamID: f.StreamID, Payload: f.Payload})
}

// notifyAllVehicles sends the vehicle-announce burst to dst: USER_INFO
// plus every stream registration for every live client (including dst
// itself), then dst's own USER_INFO to everyone else. Per the resolved
// open question, the caller must already hold clientTableLock; this
// function takes no lock of its own.
func (s *Sequencer) notifyAllVehicles(dst *client) {
	for _, c := range s.clients {
		dst.enqueue(wire.Frame{Command: wire.CmdUserInfo, SourceUID: relay.ServerUID, Payload: userInfoPayload(c)})
		for streamID, reg := range c.streams {
			dst.enqueue(wire.Frame{Command: wire.CmdStreamRegister, SourceUID: c.uid, StreamID: streamID, Payload: streamRegisterPayload(reg)})
		}
	}

	dstInfo := userInfoPayload(dst)
	for _, c := range s.clients {
		if c.uid == dst.uid {
			continue
		}
		c.enqueue(wire.Frame{Command: wire.CmdUserInfo, SourceUID: relay.ServerUID, Payload: dstInfo})
	}
}
