package sequencer

import "time"

// runStatsTicker recomputes every live client's per-minute traffic
// rates once a minute and, when print_stats is configured, logs a
// one-line occupancy summary alongside it.
func (s *Sequencer) runStatsTicker() {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for range ticker.C {
		s.clientTableLock.Lock()
		for _, c := range s.clients {
			for _, t := range c.traffic {
				t.Tick()
			}
		}
		s.clientTableLock.Unlock()

		if s.opts.PrintStats {
			s.logger.Print(s.Stats())
		}
	}
}
