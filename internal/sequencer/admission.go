package sequencer

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/rigsofrods/relay-sequencer/internal/relay"
	"github.com/rigsofrods/relay-sequencer/internal/wire"
)

// admitTimeout bounds how long a rejected-full connection is kept open
// while the FULL frame is written, so a slow client cannot hold the
// door open.
const admitTimeout = 10 * time.Second

// Admit runs the admission sequence (§4.2) for a newly accepted
// connection and, on success, starts its receiver and broadcaster
// goroutines. The caller (the listener loop) owns conn until Admit
// returns; after a successful return the client's own goroutines own it.
func (s *Sequencer) Admit(conn net.Conn, nickname, token string) error {
	ip := remoteIP(conn)

	s.clientTableLock.Lock()

	if len(s.clients) >= s.opts.MaxClients {
		s.clientTableLock.Unlock()
		conn.SetWriteDeadline(time.Now().Add(admitTimeout))
		wire.WriteFrame(conn, wire.Frame{Command: wire.CmdFull, SourceUID: relay.ServerUID})
		conn.Close()
		return ErrServerFull
	}

	// The ban check happens before the entry is ever allocated or
	// appended, so a banned IP never occupies a slot or consumes a uid.
	if ban, banned := s.bans[ip]; banned {
		s.clientTableLock.Unlock()
		conn.SetWriteDeadline(time.Now().Add(admitTimeout))
		wire.WriteFrame(conn, wire.Frame{Command: wire.CmdBanned, SourceUID: relay.ServerUID, Payload: []byte(ban.Reason)})
		conn.Close()
		return ErrBanned
	}

	nickname = s.dedupNickname(nickname)
	color := s.nextFreeColor()

	var authFlags relay.AuthFlags
	if s.auth != nil {
		flags, err := s.auth.Resolve(token)
		if err != nil {
			s.logger.Printf("resolving auth for %s: %v", nickname, err)
		}
		authFlags = flags
	}

	uid := s.nextUID
	s.nextUID++

	c := newClient(uid, nickname, token, ip, conn)
	c.authFlags = authFlags
	c.color = color
	c.slot = len(s.clients)
	c.flow = true

	s.clients = append(s.clients, c)
	s.byUID[uid] = c

	s.clientTableLock.Unlock()

	if err := s.finishAdmission(c); err != nil {
		s.Disconnect(c.uid, "error sending welcome message", true)
		return fmt.Errorf("sequencer: admitting %s: %w", nickname, err)
	}

	if rankedAuthEvent(authFlags) && s.auth != nil {
		s.auth.SendUserEvent(token, "join", nickname, "", func(msg string) { s.logger.Print(msg) })
	}

	if s.script != nil {
		s.script.PlayerAdded(uid)
	}

	go func() {
		defer s.recoverGoroutine(c.uid, "broadcaster")
		c.runBroadcaster(func(err error) {
			s.Disconnect(c.uid, "socket error", true)
		})
	}()
	go func() {
		defer s.recoverGoroutine(c.uid, "receiver")
		c.runReceiver(s.opts.FrameMaxPayload, func(f wire.Frame) {
			s.Dispatch(c.uid, f)
		}, func(err error) {
			if errors.Is(err, wire.ErrPayloadTooLarge) {
				violation := &ProtocolViolation{Reason: err.Error()}
				s.logger.Printf("WARN: %v from uid %d", violation, c.uid)
				s.Disconnect(c.uid, violation.Error(), true)
				return
			}
			s.Disconnect(c.uid, "socket error", true)
		})
	}()

	return nil
}

func rankedAuthEvent(flags relay.AuthFlags) bool {
	return flags.Has(relay.AuthRanked)
}

// finishAdmission sends WELCOME, the MOTD, and the USER_JOIN burst. It
// runs outside clientTableLock: every destination write goes through
// the normal enqueue path except the new client's own WELCOME, MOTD and
// USER_JOIN, which are written directly since its broadcaster has not
// started yet.
func (s *Sequencer) finishAdmission(c *client) error {
	welcome := make([]byte, 4)
	wire.PutUint32LE(welcome, uint32(c.color))
	if err := c.send(wire.Frame{Command: wire.CmdWelcome, SourceUID: relay.ServerUID, Payload: welcome}); err != nil {
		return err
	}

	if err := s.streamMOTD(c); err != nil {
		return err
	}

	s.clientTableLock.Lock()
	targets := append([]*client(nil), s.clients...)
	joinPayload := userInfoPayload(c)
	s.clientTableLock.Unlock()

	for _, dst := range targets {
		if dst.uid == c.uid {
			if err := c.send(wire.Frame{Command: wire.CmdUserJoin, SourceUID: relay.ServerUID, Payload: joinPayload}); err != nil {
				return err
			}
			continue
		}
		dst.enqueue(wire.Frame{Command: wire.CmdUserJoin, SourceUID: relay.ServerUID, Payload: joinPayload})
	}

	return nil
}

func (s *Sequencer) streamMOTD(c *client) error {
	if s.opts.MOTDPath == "" {
		return nil
	}

	f, err := os.Open(s.opts.MOTDPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return nil
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if err := c.send(wire.Frame{
			Command:   wire.CmdChat,
			SourceUID: relay.ServerUID,
			Payload:   serverChatPayload(1, line),
		}); err != nil {
			return err
		}
	}
	return nil
}

// dedupNickname applies the §4.2 dedup rule: append a decimal counter
// starting at 2, truncating the base to 18 bytes if needed, until the
// result is unique in the live table. Caller must hold clientTableLock.
func (s *Sequencer) dedupNickname(nick string) string {
	if s.findByNickname(nick) == nil {
		return nick
	}

	base := nick
	if len(base) > 18 {
		base = base[:18]
	}

	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s%d", base, n)
		if s.findByNickname(candidate) == nil {
			return candidate
		}
	}
}

// nextFreeColor returns the smallest non-negative integer not used by
// any live client. Caller must hold clientTableLock.
func (s *Sequencer) nextFreeColor() int {
	used := make(map[int]bool, len(s.clients))
	for _, c := range s.clients {
		used[c.color] = true
	}
	for color := 0; ; color++ {
		if !used[color] {
			return color
		}
	}
}

func remoteIP(conn net.Conn) string {
	addr := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSpace(addr)
}
