package authstore

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rigsofrods/relay-sequencer/internal/relay"
)

func openMemory(t *testing.T) *Store {
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestResolveUnknownTokenIsUnprivileged(t *testing.T) {
	s := openMemory(t)

	flags, err := s.Resolve("nobody")
	require.NoError(t, err)
	require.Zero(t, flags)
}

func TestSetFlagsMasksStoreOnlyBits(t *testing.T) {
	s := openMemory(t)

	err := s.SetFlags("tok", relay.AuthAdmin|relay.AuthRanked|relay.AuthBanned)
	require.NoError(t, err)

	flags, err := s.Resolve("tok")
	require.NoError(t, err)
	require.True(t, flags.Has(relay.AuthAdmin))
	require.False(t, flags.Has(relay.AuthRanked))
	require.False(t, flags.Has(relay.AuthBanned))
}

func TestSetFlagsUpsert(t *testing.T) {
	s := openMemory(t)

	require.NoError(t, s.SetFlags("tok", relay.AuthMod))
	require.NoError(t, s.SetFlags("tok", relay.AuthAdmin))

	flags, err := s.Resolve("tok")
	require.NoError(t, err)
	require.True(t, flags.Has(relay.AuthAdmin))
	require.False(t, flags.Has(relay.AuthMod))
}

func TestBanLifecycle(t *testing.T) {
	s := openMemory(t)

	banned, _, err := s.IsBanned("1.2.3.4")
	require.NoError(t, err)
	require.False(t, banned)

	require.NoError(t, s.AddBan(BanRecord{
		IP:       "1.2.3.4",
		Nickname: "cheater",
		BannedBy: "admin",
		Reason:   "griefing",
	}))

	banned, rec, err := s.IsBanned("1.2.3.4")
	require.NoError(t, err)
	require.True(t, banned)
	require.Equal(t, "cheater", rec.Nickname)

	all, err := s.Bans()
	require.NoError(t, err)
	require.Len(t, all, 1)

	removed, err := s.RemoveBan("1.2.3.4")
	require.NoError(t, err)
	require.True(t, removed)

	banned, _, err = s.IsBanned("1.2.3.4")
	require.NoError(t, err)
	require.False(t, banned)
}

func TestRemoveBanByNickname(t *testing.T) {
	s := openMemory(t)

	require.NoError(t, s.AddBan(BanRecord{IP: "5.5.5.5", Nickname: "bob", BannedBy: "admin", Reason: "spam"}))

	removed, err := s.RemoveBan("bob")
	require.NoError(t, err)
	require.True(t, removed)
}

func TestSendUserEventDoesNotBlock(t *testing.T) {
	s := openMemory(t)

	done := make(chan string, 1)
	s.SendUserEvent("tok", EventJoin, "alice", "", func(msg string) { done <- msg })

	msg := <-done
	require.Contains(t, msg, "kind=join")
	require.Contains(t, msg, "alice")
}
