package sequencer

import (
	"net"
	"sync"
	"time"

	"github.com/rigsofrods/relay-sequencer/internal/relay"
	"github.com/rigsofrods/relay-sequencer/internal/wire"
)

// outboxCapacity bounds each client's pending-frame queue. A producer
// that fills it discards the frame rather than blocking; a single slow
// destination must never stall dispatch to the others.
const outboxCapacity = 256

// client is one live entry in the Sequencer's client table. Everything
// here is only ever mutated while the owning Sequencer's clientTableLock
// is held, except the fields broadcaster/receiver manage on their own
// goroutines (outbox, closed).
type client struct {
	uid      uint32
	slot     int
	nickname string
	token    string
	ip       string
	authFlags relay.AuthFlags
	color    int

	flow        bool
	initialized bool
	position    [3]float32

	streams map[uint32]relay.StreamRegistration
	traffic map[uint32]*relay.TrafficCounters

	conn net.Conn

	outbox    chan wire.Frame
	closeOnce sync.Once
	closed    chan struct{}
}

func newClient(uid uint32, nickname, token, ip string, conn net.Conn) *client {
	return &client{
		uid:      uid,
		nickname: nickname,
		token:    token,
		ip:       ip,
		conn:     conn,
		streams:  make(map[uint32]relay.StreamRegistration),
		traffic:  make(map[uint32]*relay.TrafficCounters),
		outbox:   make(chan wire.Frame, outboxCapacity),
		closed:   make(chan struct{}),
	}
}

// trafficFor returns (creating if necessary) the counters for one
// stream-id. Caller must hold clientTableLock.
func (c *client) trafficFor(streamID uint32) *relay.TrafficCounters {
	t, ok := c.traffic[streamID]
	if !ok {
		t = &relay.TrafficCounters{}
		c.traffic[streamID] = t
	}
	return t
}

// enqueue attempts a non-blocking send to the client's outbox. It
// reports whether the frame was accepted; a false return means the
// broadcaster is backed up and the frame was dropped, matching the
// source's own drop-under-pressure behavior.
func (c *client) enqueue(f wire.Frame) bool {
	select {
	case c.outbox <- f:
		return true
	default:
		return false
	}
}

// send writes one frame directly to the socket. Used by the admission
// path before the client has a running broadcaster loop, and by the
// broadcaster loop itself once started.
func (c *client) send(f wire.Frame) error {
	return wire.WriteFrame(c.conn, f)
}

// runBroadcaster drains the outbox to the socket until told to stop via
// onError (receiving a write failure) or until closed is closed by the
// reaper. It never blocks dispatch: the channel itself provides the
// backpressure boundary.
func (c *client) runBroadcaster(onError func(err error)) {
	for {
		select {
		case <-c.closed:
			return
		case f, ok := <-c.outbox:
			if !ok {
				return
			}
			if err := c.send(f); err != nil {
				onError(err)
				return
			}
		}
	}
}

// runReceiver reads frames from the socket until a read error or
// protocol violation, handing each to dispatch. onFrame runs
// synchronously on this goroutine, matching the spec's fully-synchronous
// dispatch-under-lock requirement.
func (c *client) runReceiver(maxPayload uint32, onFrame func(wire.Frame), onError func(err error)) {
	for {
		f, err := wire.ReadFrame(c.conn, maxPayload)
		if err != nil {
			onError(err)
			return
		}
		onFrame(f)
	}
}

// stopBroadcaster signals the broadcaster goroutine to exit without
// closing the socket. Safe to call more than once.
func (c *client) stopBroadcaster() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// closeConn closes the underlying socket, unblocking the receiver's
// pending Read.
func (c *client) closeConn() error {
	return c.conn.Close()
}

func (c *client) setWriteDeadline(d time.Duration) {
	c.conn.SetWriteDeadline(time.Now().Add(d))
}
