package sequencer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rigsofrods/relay-sequencer/internal/relay"
	"github.com/rigsofrods/relay-sequencer/internal/wire"
)

// privilegedCommands require the sender's authFlags to intersect
// {ADMIN, MOD}.
var privilegedCommands = map[string]bool{
	"kick":  true,
	"ban":   true,
	"unban": true,
}

// allCommandNames lists every chat-command verb, for !help.
var allCommandNames = []string{"version", "list", "bans", "kick", "ban", "unban", "help"}

// handleChatCommand runs a '!'-prefixed chat message (§4.7). The reply
// always goes only to sender, as a server-origin CHAT frame.
func (s *Sequencer) handleChatCommand(sender *client, body string) {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return
	}
	verb, args := fields[0], fields[1:]

	if privilegedCommands[verb] && !sender.authFlags.Any(relay.AuthAdmin|relay.AuthMod) {
		s.replyTo(sender, "not authorized")
		return
	}

	switch verb {
	case "version":
		s.replyTo(sender, Version)
	case "list":
		s.replyTo(sender, s.List())
	case "bans":
		s.replyTo(sender, s.Bans())
	case "kick":
		s.chatKick(sender, args)
	case "ban":
		s.chatBan(sender, args)
	case "unban":
		s.chatUnban(sender, args)
	case "help":
		s.replyTo(sender, s.helpFor(sender))
	default:
		s.replyTo(sender, fmt.Sprintf("unknown command %q", verb))
	}
}

func (s *Sequencer) helpFor(sender *client) string {
	privileged := sender.authFlags.Any(relay.AuthAdmin | relay.AuthMod)
	var available []string
	for _, name := range allCommandNames {
		if privilegedCommands[name] && !privileged {
			continue
		}
		available = append(available, name)
	}
	return strings.Join(available, " ")
}

func (s *Sequencer) chatKick(sender *client, args []string) {
	if len(args) < 1 {
		s.replyTo(sender, "usage: !kick <uid> <reason>")
		return
	}
	uid, err := parseUID(args[0])
	if err != nil {
		s.replyTo(sender, err.Error())
		return
	}
	reason := strings.Join(args[1:], " ")

	if err := s.Kick(uid, fmt.Sprintf("kicked by %s: %s", sender.nickname, reason)); err != nil {
		s.replyTo(sender, "no such client")
		return
	}
	s.replyTo(sender, "kicked")
}

func (s *Sequencer) chatBan(sender *client, args []string) {
	if len(args) < 1 {
		s.replyTo(sender, "usage: !ban <uid> <reason>")
		return
	}
	uid, err := parseUID(args[0])
	if err != nil {
		s.replyTo(sender, err.Error())
		return
	}
	reason := strings.Join(args[1:], " ")

	if err := s.Ban(uid, sender.nickname, fmt.Sprintf("banned by %s: %s", sender.nickname, reason)); err != nil {
		s.replyTo(sender, "no such client")
		return
	}
	s.replyTo(sender, "banned")
}

func (s *Sequencer) chatUnban(sender *client, args []string) {
	if len(args) < 1 {
		s.replyTo(sender, "usage: !unban <uid or nickname>")
		return
	}
	if err := s.Unban(args[0]); err != nil {
		s.replyTo(sender, "no such ban")
		return
	}
	s.replyTo(sender, "unbanned")
}

func (s *Sequencer) replyTo(sender *client, text string) {
	sender.enqueue(wire.Frame{
		Command:   wire.CmdChat,
		SourceUID: relay.ServerUID,
		Payload:   serverChatPayload(0, text),
	})
}

func parseUID(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid uid %q", s)
	}
	return uint32(v), nil
}

// List renders the console.Commands/!list surface: one line per live
// client.
func (s *Sequencer) List() string {
	s.clientTableLock.Lock()
	defer s.clientTableLock.Unlock()

	if len(s.clients) == 0 {
		return "no clients"
	}

	var b strings.Builder
	for _, c := range s.clients {
		vehicle := ""
		for _, reg := range c.streams {
			if reg.Type == relay.StreamTruck {
				vehicle = reg.Name
				break
			}
		}
		fmt.Fprintf(&b, "%d %s %s %s\n", c.uid, c.authFlags.Letters(), c.nickname, vehicle)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Bans renders the console.Commands/!bans surface: one line per ban
// record.
func (s *Sequencer) Bans() string {
	s.clientTableLock.Lock()
	defer s.clientTableLock.Unlock()

	if len(s.bans) == 0 {
		return "no bans"
	}

	var b strings.Builder
	for _, ban := range s.bans {
		fmt.Fprintf(&b, "%s %s uid_at_ban=%d banned_by=%s reason=%s\n", ban.IP, ban.Nickname, ban.UIDAtBan, ban.BannedBy, ban.Reason)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Kick disconnects uid with reason. Implements part of the
// console.Commands and script.Host surfaces.
func (s *Sequencer) Kick(uid uint32, reason string) error {
	s.clientTableLock.Lock()
	_, found := s.byUID[uid]
	s.clientTableLock.Unlock()
	if !found {
		return ErrUnknownClient
	}
	s.Disconnect(uid, reason, false)
	return nil
}

// Ban records a persistent ban for uid's current IP, persists it to the
// K store if present, then kicks the client. bannedBy is the nickname
// of the mod/admin who issued the ban. Implements part of the
// console.Commands surface.
func (s *Sequencer) Ban(uid uint32, bannedBy, reason string) error {
	s.clientTableLock.Lock()
	c, found := s.byUID[uid]
	if !found {
		s.clientTableLock.Unlock()
		return ErrUnknownClient
	}
	record := BanRecord{UIDAtBan: uid, IP: c.ip, Nickname: c.nickname, BannedBy: bannedBy, Reason: reason}
	s.bans[c.ip] = record
	s.clientTableLock.Unlock()

	if s.banDB != nil {
		if err := s.banDB.AddBan(record); err != nil {
			s.logger.Printf("persisting ban for %s: %v", c.ip, err)
		}
	}

	s.Disconnect(uid, reason, false)
	return nil
}

// Unban removes any ban whose IP, nickname or uid-at-ban matches key,
// from the in-memory list and from the persistent store if present.
func (s *Sequencer) Unban(key string) error {
	s.clientTableLock.Lock()
	var removedIPs []string
	for ip, rec := range s.bans {
		if ip == key || rec.Nickname == key || strconv.FormatUint(uint64(rec.UIDAtBan), 10) == key {
			delete(s.bans, ip)
			removedIPs = append(removedIPs, ip)
		}
	}
	s.clientTableLock.Unlock()
	removed := len(removedIPs) > 0

	if s.banDB != nil {
		for _, k := range append(removedIPs, key) {
			if ok, err := s.banDB.RemoveBan(k); err != nil {
				s.logger.Printf("removing ban for %s: %v", k, err)
			} else if ok {
				removed = true
			}
		}
	}

	if !removed {
		return ErrUnknownClient
	}
	return nil
}
