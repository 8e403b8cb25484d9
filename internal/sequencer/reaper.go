package sequencer

// enqueueKill transfers ownership of c to the kill queue and wakes the
// reaper. Caller must hold reaperLock (Disconnect already does).
func (s *Sequencer) enqueueKill(c *client) {
	s.killQueue = append(s.killQueue, c)
	select {
	case s.killSignal <- struct{}{}:
	default:
	}
}

// runReaper is the dedicated teardown worker (§4.5). For every client
// that Disconnect hands it, it stops the broadcaster, then closes the
// socket (which ends the receiver), then drops the entry, so no goroutine ever tears
// down state out from under itself. A panic while reaping one entry is
// logged and does not take the worker down with it, since the reaper is
// infallible from the core's point of view.
func (s *Sequencer) runReaper() {
	for range s.killSignal {
		for {
			s.reaperLock.Lock()
			if len(s.killQueue) == 0 {
				s.reaperLock.Unlock()
				break
			}
			c := s.killQueue[0]
			s.killQueue = s.killQueue[1:]
			s.reaperLock.Unlock()

			s.reapRecovered(c)
		}
	}
}

func (s *Sequencer) reapRecovered(c *client) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("panic reaping uid %d: %v", c.uid, r)
		}
	}()
	s.reap(c)
}

// recoverGoroutine turns a panic on a per-client goroutine into a logged,
// crashed disconnect of the owning client, per the error taxonomy's
// propagation policy: the core never panics across a goroutine boundary.
func (s *Sequencer) recoverGoroutine(uid uint32, name string) {
	if r := recover(); r != nil {
		s.logger.Printf("panic in %s for uid %d: %v", name, uid, r)
		s.Disconnect(uid, "internal error", true)
	}
}

func (s *Sequencer) reap(c *client) {
	c.stopBroadcaster()

	if err := c.closeConn(); err != nil {
		s.logger.Printf("closing socket for uid %d: %v", c.uid, err)
	}
	// Closing the socket unblocks the receiver's pending Read; it exits
	// on its own once the resulting error reaches its onError callback,
	// whose Disconnect call is then a no-op, since the entry has already
	// left the client table.
}
