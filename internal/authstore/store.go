// Package authstore implements the auth collaborator interface the core
// consumes: resolving a client's opaque unique-id token to auth flags,
// and persisting bans and rank events. It is backed by SQLite, the way
// the project's existing auth.go/ban.go/privs.go trio is.
package authstore

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rigsofrods/relay-sequencer/internal/relay"
)

// Store resolves auth tokens and persists bans. The zero value is not
// usable; construct with Open.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS auth (
	token VARCHAR(60) PRIMARY KEY,
	flags INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS ban (
	ip VARCHAR(64) PRIMARY KEY,
	uid_at_ban INTEGER NOT NULL DEFAULT 0,
	nickname VARCHAR(20) NOT NULL,
	banned_by VARCHAR(20) NOT NULL,
	reason VARCHAR(256) NOT NULL
);
`

// Open opens (creating if necessary) the SQLite database at path and
// ensures its schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o775); err != nil {
			return nil, fmt.Errorf("authstore: creating %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("authstore: opening %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("authstore: creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Resolve looks up a client's auth flags by their unique-id token. An
// unknown token resolves to zero flags, not an error: an unrecognized
// client is simply unprivileged. RANKED and BANNED are always masked
// out, per the mixed-auth-sources rule.
func (s *Store) Resolve(token string) (relay.AuthFlags, error) {
	var raw int64
	err := s.db.QueryRow(`SELECT flags FROM auth WHERE token = ?;`, token).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("authstore: resolving token: %w", err)
	}

	return relay.MaskStoreFlags(relay.AuthFlags(raw)), nil
}

// SetFlags writes the auth flags associated with a token, for admin
// tooling (e.g. granting ADMIN/MOD/BOT out of band). RANKED and BANNED
// bits are ignored; those are never sourced from this table.
func (s *Store) SetFlags(token string, flags relay.AuthFlags) error {
	flags = relay.MaskStoreFlags(flags)
	_, err := s.db.Exec(`
		INSERT INTO auth (token, flags) VALUES (?, ?)
		ON CONFLICT(token) DO UPDATE SET flags = excluded.flags;
	`, token, int64(flags))
	return err
}

// UserEventKind is the kind of fire-and-forget event SendUserEvent can
// report for a RANKED client.
type UserEventKind string

const (
	EventJoin  UserEventKind = "join"
	EventLeave UserEventKind = "leave"
	EventCrash UserEventKind = "crash"
)

// SendUserEvent is fire-and-forget from the caller's point of view: it
// always runs on its own goroutine and never blocks the sequencer. In
// this standalone relay there is no remote ranking service to notify,
// so the event is simply logged by the caller-supplied sink.
func (s *Store) SendUserEvent(token string, kind UserEventKind, nickname, extra string, sink func(string)) {
	go func() {
		sink(fmt.Sprintf("user event: token=%s kind=%s nick=%s extra=%s", token, kind, nickname, extra))
	}()
}

// BanRecord is one entry in the persistent ban list. Field order and
// types must stay exactly aligned with sequencer.BanRecord: the caller
// converts directly between the two named types rather than copying
// field by field. UIDAtBan is the banned client's uid at the moment of
// the ban, kept for operator context only.
type BanRecord struct {
	UIDAtBan uint32
	IP       string
	Nickname string
	BannedBy string
	Reason   string
}

// AddBan persists a ban. It is idempotent on IP: banning an
// already-banned IP overwrites the uid/nickname/reason/banned-by fields.
func (s *Store) AddBan(b BanRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO ban (ip, uid_at_ban, nickname, banned_by, reason) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ip) DO UPDATE SET uid_at_ban = excluded.uid_at_ban, nickname = excluded.nickname, banned_by = excluded.banned_by, reason = excluded.reason;
	`, b.IP, b.UIDAtBan, b.Nickname, b.BannedBy, b.Reason)
	return err
}

// RemoveBan deletes any ban matching ip or nickname. It reports whether
// a row was actually removed.
func (s *Store) RemoveBan(ipOrNickname string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM ban WHERE ip = ? OR nickname = ?;`, ipOrNickname, ipOrNickname)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// IsBanned reports whether ip is on the persistent ban list and, if so,
// the ban record.
func (s *Store) IsBanned(ip string) (bool, BanRecord, error) {
	var b BanRecord
	err := s.db.QueryRow(`SELECT ip, uid_at_ban, nickname, banned_by, reason FROM ban WHERE ip = ?;`, ip).
		Scan(&b.IP, &b.UIDAtBan, &b.Nickname, &b.BannedBy, &b.Reason)
	if errors.Is(err, sql.ErrNoRows) {
		return false, BanRecord{}, nil
	}
	if err != nil {
		return false, BanRecord{}, fmt.Errorf("authstore: checking ban: %w", err)
	}
	return true, b, nil
}

// Bans returns every persisted ban record.
func (s *Store) Bans() ([]BanRecord, error) {
	rows, err := s.db.Query(`SELECT ip, uid_at_ban, nickname, banned_by, reason FROM ban;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BanRecord
	for rows.Next() {
		var b BanRecord
		if err := rows.Scan(&b.IP, &b.UIDAtBan, &b.Nickname, &b.BannedBy, &b.Reason); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
