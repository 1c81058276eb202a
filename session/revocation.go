package session

import (
	"context"
	"sync"
	"time"
)

const sweepInterval = 5 * time.Minute

// Revocations records session ids that must no longer be accepted. An entry
// only needs to live until the session would have expired on its own.
type Revocations interface {
	Revoke(ctx context.Context, sessionID string, until time.Time) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// MemoryRevocations is a thread-safe in-memory Revocations.
// Entries are lost on restart.
type MemoryRevocations struct {
	mu       sync.RWMutex
	data     map[string]time.Time
	now      func() time.Time
	stopOnce sync.Once
	stopCh   chan struct{}
}

var _ Revocations = (*MemoryRevocations)(nil)

// NewMemoryRevocations creates an in-memory store and starts its sweep
// goroutine. Call Close to stop it.
func NewMemoryRevocations() *MemoryRevocations {
	return newMemoryRevocations(time.Now)
}

// newMemoryRevocations takes the clock before the sweep goroutine starts
// reading it.
func newMemoryRevocations(now func() time.Time) *MemoryRevocations {
	r := &MemoryRevocations{
		data:   make(map[string]time.Time),
		now:    now,
		stopCh: make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

func (r *MemoryRevocations) Revoke(_ context.Context, sessionID string, until time.Time) error {
	r.mu.Lock()
	if existing, ok := r.data[sessionID]; !ok || until.After(existing) {
		r.data[sessionID] = until
	}
	r.mu.Unlock()
	return nil
}

func (r *MemoryRevocations) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	r.mu.RLock()
	until, ok := r.data[sessionID]
	r.mu.RUnlock()
	return ok && r.now().Before(until), nil
}

// Len returns the number of tracked entries, expired or not.
func (r *MemoryRevocations) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

// Close stops the sweep goroutine.
func (r *MemoryRevocations) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *MemoryRevocations) cleanupLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *MemoryRevocations) sweep() {
	now := r.now()
	r.mu.Lock()
	for id, until := range r.data {
		if !now.Before(until) {
			delete(r.data, id)
		}
	}
	r.mu.Unlock()
}
