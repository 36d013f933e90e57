package session

import (
	"drivescore/internal/score"
	"drivescore/internal/score/verdict"
	"drivescore/internal/utils"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Factory builds the aggregator of a new session.
type Factory func(id string) (*score.Aggregator, error)

// Repository is a thread-safe registry of sessions with automatic removal of
// idle ones.
//
//	repo := session.NewRepository(factory, weights, nil, 20, time.Hour)
//	go repo.Serve() // background sweeping
//	s, _ := repo.Create()
type Repository struct {
	factory       Factory
	weights       map[string]float64
	verdicts      *verdict.Rules
	historyLength int           // snapshots kept per session
	ttl           time.Duration // idle time after which a session is dropped; 0 keeps sessions forever

	sessions   map[string]*Session
	sessionsMu sync.RWMutex

	done     chan struct{}
	stopOnce sync.Once
}

// Create starts a new session with a fresh UUID token.
func (r *Repository) Create() (*Session, error) {
	id := uuid.NewString()
	aggregator, err := r.factory(id)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:         id,
		aggregator: aggregator,
		history:    utils.NewRingBuffer[score.Snapshot](r.historyLength),
		weights:    r.weights,
		verdicts:   r.verdicts,
		lastSeen:   time.Now(),
	}

	r.sessionsMu.Lock()
	r.sessions[id] = s
	r.sessionsMu.Unlock()

	return s, nil
}

// Get returns the session with the given token.
func (r *Repository) Get(id string) (*Session, bool) {
	r.sessionsMu.RLock()
	defer r.sessionsMu.RUnlock()
	s, found := r.sessions[id]
	return s, found
}

// Delete drops a session. Unknown tokens are ignored.
func (r *Repository) Delete(id string) {
	r.sessionsMu.Lock()
	delete(r.sessions, id)
	r.sessionsMu.Unlock()
}

// Len returns the number of live sessions.
func (r *Repository) Len() int {
	r.sessionsMu.RLock()
	defer r.sessionsMu.RUnlock()
	return len(r.sessions)
}

// Serve sweeps idle sessions once a minute until Stop is called.
// It blocks and should run in its own goroutine:
//
//	go repo.Serve()
func (r *Repository) Serve() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case now := <-ticker.C:
			if n := r.sweep(now); n > 0 {
				slog.Info("Idle sessions removed", "count", n)
			}
		}
	}
}

// Stop ends the background sweeping. It is safe to call more than once
// and before Serve was started.
func (r *Repository) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}

func (r *Repository) sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}

	var outdated []string

	// Collect expired tokens under the read lock
	r.sessionsMu.RLock()
	for id, s := range r.sessions {
		if s.idleSince(now) > r.ttl {
			outdated = append(outdated, id)
		}
	}
	r.sessionsMu.RUnlock()

	if len(outdated) > 0 {
		r.sessionsMu.Lock()
		for _, id := range outdated {
			delete(r.sessions, id)
		}
		r.sessionsMu.Unlock()
	}

	return len(outdated)
}

// NewRepository creates an empty session registry.
// Parameters:
//   - factory: builds the aggregator of each new session.
//   - weights: per-bucket weights applied to every session's scores.
//   - verdicts: optional verdict rules; nil disables verdicts.
//   - historyLength: number of snapshots kept per session (at least 1).
//   - ttl: idle lifetime of a session; 0 disables expiry.
//
// Call Serve in a separate goroutine to start the sweeper.
func NewRepository(factory Factory, weights map[string]float64, verdicts *verdict.Rules, historyLength int, ttl time.Duration) *Repository {
	return &Repository{
		factory:       factory,
		weights:       weights,
		verdicts:      verdicts,
		historyLength: max(1, historyLength),
		ttl:           ttl,
		sessions:      make(map[string]*Session),
		done:          make(chan struct{}),
	}
}
