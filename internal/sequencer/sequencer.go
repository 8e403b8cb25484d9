// Package sequencer implements the relay's core: the client table,
// admission, frame dispatch and broadcast policy, the chat-command
// handler, and the ordered teardown of disconnected clients. It is the
// one package every other collaborator (script bridge, listing client,
// admin console) calls back into through a narrow interface, never the
// other way around.
package sequencer

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/rigsofrods/relay-sequencer/internal/listing"
	"github.com/rigsofrods/relay-sequencer/internal/relay"
	"github.com/rigsofrods/relay-sequencer/internal/wire"
)

// Version is the string the !version chat command reports.
const Version = "relay-sequencer 1.0"

// AuthCollaborator is the narrow surface the user-authorization store
// (K) is consumed through. Implemented by an adapter around
// *authstore.Store.
type AuthCollaborator interface {
	Resolve(token string) (relay.AuthFlags, error)
	SendUserEvent(token, kind, nickname, extra string, sink func(string))
}

// BanRecord mirrors authstore.BanRecord without importing that package,
// so this package depends on authstore only through the interface below.
// UIDAtBan is the client's uid at the moment of the ban; it is session
// metadata only, not a stable identity (a rejoining client gets a new
// uid), and is not consulted when matching bans against a reconnect.
type BanRecord struct {
	UIDAtBan uint32
	IP       string
	Nickname string
	BannedBy string
	Reason   string
}

// BanStore is the narrow surface the persistent ban list (part of K) is
// consumed through. Implemented by an adapter around *authstore.Store.
type BanStore interface {
	AddBan(BanRecord) error
	RemoveBan(uidOrNickname string) (bool, error)
	Bans() ([]BanRecord, error)
}

// ScriptBridge is the narrow surface the embedded Lua bridge (I) is
// consumed through. Implemented by *script.Bridge.
type ScriptBridge interface {
	PlayerAdded(uid uint32)
	PlayerDeleted(uid uint32, crashed bool)
	StreamAdded(uid uint32, streamName string, streamType int) relay.BroadcastDecision
	PlayerChat(uid uint32, text string) relay.BroadcastDecision
	GameCmd(uid uint32, text string)
}

// chatRecord is one entry in the bounded chat history ring.
type chatRecord struct {
	Time     time.Time
	Source   uint32
	Nickname string
	Message  string
}

// maxChatHistory bounds the chat ring (§3, §8 invariant 6).
const maxChatHistory = 500

// Options configures a Sequencer at construction time.
type Options struct {
	MaxClients      int
	FrameMaxPayload uint32
	MOTDPath        string
	PrintStats      bool
}

// statsInterval is how often the traffic-counter rate ticker recomputes
// rateIn/rateOut and, when configured, logs a one-line summary.
const statsInterval = 60 * time.Second

// Sequencer owns the client table, the ban list, the chat history and
// the kill queue. Collaborators are optional (nil-safe): ServerMode=LAN
// deployments run with auth and banDB nil, and script is nil unless
// scripting is enabled.
type Sequencer struct {
	opts Options

	reaperLock sync.Mutex
	killQueue  []*client
	killSignal chan struct{}

	clientTableLock sync.Mutex
	clients         []*client
	byUID           map[uint32]*client
	nextUID         uint32
	bans            map[string]BanRecord
	chatHistory     []chatRecord

	connCount uint64
	connCrash uint64

	auth   AuthCollaborator
	banDB  BanStore
	script ScriptBridge

	logger *log.Logger
}

// New constructs a Sequencer. auth, banDB and script may all be nil;
// each is consulted only when present.
func New(opts Options, auth AuthCollaborator, banDB BanStore, script ScriptBridge, logger *log.Logger) *Sequencer {
	if opts.FrameMaxPayload == 0 {
		opts.FrameMaxPayload = wire.DefaultMaxPayload
	}

	s := &Sequencer{
		opts:       opts,
		byUID:      make(map[uint32]*client),
		bans:       make(map[string]BanRecord),
		nextUID:    1,
		killSignal: make(chan struct{}, 1),
		auth:       auth,
		banDB:      banDB,
		script:     script,
		logger:     logger,
	}

	if banDB != nil {
		if records, err := banDB.Bans(); err == nil {
			for _, r := range records {
				s.bans[r.IP] = r
			}
		} else {
			logger.Printf("hydrating ban list: %v", err)
		}
	}

	go s.runReaper()
	go s.runStatsTicker()

	return s
}

// SetScript injects the script bridge after construction, so the
// bridge's own constructor (which needs a script.Host) can take this
// Sequencer as its host without a construction-order cycle. Must be
// called before the listener starts accepting connections; it is not
// safe to call concurrently with live traffic.
func (s *Sequencer) SetScript(script ScriptBridge) {
	s.script = script
}

// NumClients reports the current live client-table size. Part of the
// listing.Source interface.
func (s *Sequencer) NumClients() int {
	s.clientTableLock.Lock()
	defer s.clientTableLock.Unlock()
	return len(s.clients)
}

// Nicknames returns the live clients' nicknames. Part of the
// listing.Source interface.
func (s *Sequencer) Nicknames() []string {
	s.clientTableLock.Lock()
	defer s.clientTableLock.Unlock()

	names := make([]string, len(s.clients))
	for i, c := range s.clients {
		names[i] = c.nickname
	}
	return names
}

// ClientSnapshots renders the heartbeat occupancy rows. Part of the
// listing.Source interface.
func (s *Sequencer) ClientSnapshots() []listing.ClientSnapshot {
	s.clientTableLock.Lock()
	defer s.clientTableLock.Unlock()

	rows := make([]listing.ClientSnapshot, len(s.clients))
	for i, c := range s.clients {
		vehicle := ""
		for _, reg := range c.streams {
			if reg.Type == relay.StreamTruck {
				vehicle = reg.Name
				break
			}
		}
		rows[i] = listing.ClientSnapshot{
			Slot:        c.slot,
			Vehicle:     vehicle,
			Nickname:    c.nickname,
			X:           c.position[0],
			Y:           c.position[1],
			Z:           c.position[2],
			IP:          c.ip,
			Token:       c.token,
			AuthLetters: c.authFlags.Letters(),
		}
	}
	return rows
}

// Stats renders a one-line operator-facing summary.
func (s *Sequencer) Stats() string {
	s.clientTableLock.Lock()
	n := len(s.clients)
	cc, ccr := s.connCount, s.connCrash
	s.clientTableLock.Unlock()

	return fmt.Sprintf("clients=%d connCount=%d connCrash=%d", n, cc, ccr)
}

// findByUID returns the live client for uid, or nil. Caller must hold
// clientTableLock.
func (s *Sequencer) findByUID(uid uint32) *client {
	return s.byUID[uid]
}

// findByNickname returns the live client with that exact nickname, or
// nil. Caller must hold clientTableLock.
func (s *Sequencer) findByNickname(nick string) *client {
	for _, c := range s.clients {
		if c.nickname == nick {
			return c
		}
	}
	return nil
}

// pushChat appends to the bounded chat ring. Caller must hold
// clientTableLock.
func (s *Sequencer) pushChat(r chatRecord) {
	s.chatHistory = append(s.chatHistory, r)
	if len(s.chatHistory) > maxChatHistory {
		s.chatHistory = s.chatHistory[len(s.chatHistory)-maxChatHistory:]
	}
}
