package session

import (
	"drivescore/internal/score"
	"drivescore/internal/score/verdict"
	"drivescore/internal/utils"
	"sync"
	"time"
)

// Session is one test run: an aggregator plus the recent snapshots shown to
// the evaluator. All access to the aggregator goes through the session lock.
type Session struct {
	// ID — token the client uses to address the session.
	ID string

	aggregator *score.Aggregator
	history    *utils.RingBuffer[score.Snapshot]
	weights    map[string]float64
	verdicts   *verdict.Rules

	lastSeen time.Time
	mu       sync.Mutex
}

// Do runs a mutation against the aggregator under the session lock.
// When fn succeeds the resulting snapshot is recorded in the history and returned.
func (s *Session) Do(fn func(a *score.Aggregator) error) (score.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()

	if err := fn(s.aggregator); err != nil {
		return score.Snapshot{}, err
	}

	snap := s.snapshot()
	s.history.Push(snap)
	return snap, nil
}

// Export returns the export rows together with the snapshot they describe,
// both taken under one lock acquisition.
func (s *Session) Export() ([][]string, score.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()

	rows, err := s.aggregator.ExportLog()
	if err != nil {
		return nil, score.Snapshot{}, err
	}
	return rows, s.snapshot(), nil
}

// Snapshot returns the current displayed values, verdict included.
func (s *Session) Snapshot() score.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()
	return s.snapshot()
}

// Reset clears the aggregator and the snapshot history.
// The caller must have obtained confirmation first.
func (s *Session) Reset() score.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = time.Now()

	s.aggregator.Reset()
	s.history.Clear()
	return s.snapshot()
}

// History returns the snapshots recorded after recent mutations, oldest first.
func (s *Session) History() []score.Snapshot {
	return s.history.ToSlice()
}

func (s *Session) snapshot() score.Snapshot {
	snap := s.aggregator.Snapshot(s.weights)
	snap.Verdict = s.verdicts.Verdict(snap)
	return snap
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}
