package listing

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubSource struct {
	num   int
	names []string
	rows  []ClientSnapshot
}

func (s *stubSource) NumClients() int                   { return s.num }
func (s *stubSource) Nicknames() []string                { return s.names }
func (s *stubSource) ClientSnapshots() []ClientSnapshot  { return s.rows }

func TestSnapshotFormat(t *testing.T) {
	src := &stubSource{rows: []ClientSnapshot{
		{Slot: 0, Vehicle: "car", Nickname: "alice", X: 1, Y: 2, Z: 3, IP: "127.0.0.1", Token: "tok", AuthLetters: "A"},
	}}

	got := Snapshot("chal123", src)
	want := "chal123\nversion4\n1\n0;car;alice;1,2,3;127.0.0.1;tok;A\n"
	require.Equal(t, want, got)
}

func TestSnapshotNoClients(t *testing.T) {
	src := &stubSource{rows: nil}

	got := Snapshot("chal", src)
	require.Equal(t, "chal\nversion4\n0\n", got)
}

func TestDisabledClientDoesNotAnnounce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	logger := log.New(&bytes.Buffer{}, "[listing] ", 0)
	c := New(Config{Enabled: false, URL: srv.URL}, &stubSource{}, logger)
	c.Start()
	c.Stop()

	require.Zero(t, atomic.LoadInt32(&hits))
}

func TestEnabledClientAnnouncesStartAndDelete(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	logger := log.New(&bytes.Buffer{}, "[listing] ", 0)
	c := New(Config{Enabled: true, URL: srv.URL, Name: "test", MaxClients: 8}, &stubSource{num: 2, names: []string{"a", "b"}}, logger)

	c.Start()
	time.Sleep(20 * time.Millisecond)
	c.Stop()

	require.GreaterOrEqual(t, atomic.LoadInt32(&hits), int32(2))
}
