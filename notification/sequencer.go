package notification

import (
	"sync"
	"time"
)

// DefaultHorizon is how long a Sequencer remembers a key after its last
// timestamp.
const DefaultHorizon = 5 * time.Minute

// Sequencer hands out timestamps that never go backwards for the same key,
// even if the wall clock does. Within one process it orders a recipient's
// notifications and a conversation's messages.
//
// Keys idle for longer than the horizon are evicted, so the guarantee covers
// clock steps shorter than the horizon.
type Sequencer struct {
	mu        sync.Mutex
	horizon   time.Duration
	last      map[string]time.Time
	lastSweep time.Time
}

// NewSequencer creates an empty Sequencer with DefaultHorizon.
func NewSequencer() *Sequencer {
	return NewSequencerWithHorizon(DefaultHorizon)
}

// NewSequencerWithHorizon creates an empty Sequencer that forgets keys idle
// for longer than horizon. A non-positive horizon never forgets.
func NewSequencerWithHorizon(horizon time.Duration) *Sequencer {
	return &Sequencer{horizon: horizon, last: make(map[string]time.Time)}
}

// Next returns now, or one microsecond after the previous timestamp issued
// for key when now would not be strictly later.
func (s *Sequencer) Next(key string, now time.Time) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stores keep microsecond precision.
	now = now.UTC().Truncate(time.Microsecond)
	s.evict(now)
	if prev, ok := s.last[key]; ok && !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	s.last[key] = now
	return now
}

// evict sweeps at most once per horizon. Callers hold mu.
func (s *Sequencer) evict(now time.Time) {
	if s.horizon <= 0 || now.Sub(s.lastSweep) < s.horizon {
		return
	}
	cutoff := now.Add(-s.horizon)
	for k, t := range s.last {
		if t.Before(cutoff) {
			delete(s.last, k)
		}
	}
	s.lastSweep = now
}

// Forget drops the state kept for key.
func (s *Sequencer) Forget(key string) {
	s.mu.Lock()
	delete(s.last, key)
	s.mu.Unlock()
}

// Len returns the number of keys currently remembered.
func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.last)
}
