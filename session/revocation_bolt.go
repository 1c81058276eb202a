package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var revokedBucket = []byte("revoked_sessions")

// BoltRevocations persists revoked session ids in a bbolt database so that a
// logged-out token stays dead across restarts. The database is usually the
// one the settings store uses.
type BoltRevocations struct {
	db       *bolt.DB
	now      func() time.Time
	stopOnce sync.Once
	stopCh   chan struct{}
}

var _ Revocations = (*BoltRevocations)(nil)

// NewBoltRevocations creates the bucket if needed and starts the sweep
// goroutine. Close stops the goroutine but does not close db.
func NewBoltRevocations(db *bolt.DB) (*BoltRevocations, error) {
	return newBoltRevocations(db, time.Now)
}

func newBoltRevocations(db *bolt.DB, now func() time.Time) (*BoltRevocations, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(revokedBucket)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating revocation bucket: %w", err)
	}
	r := &BoltRevocations{
		db:     db,
		now:    now,
		stopCh: make(chan struct{}),
	}
	go r.cleanupLoop()
	return r, nil
}

func (r *BoltRevocations) Revoke(_ context.Context, sessionID string, until time.Time) error {
	value, err := until.UTC().MarshalBinary()
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(revokedBucket).Put([]byte(sessionID), value)
	})
}

func (r *BoltRevocations) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	var until time.Time
	var found bool
	err := r.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(revokedBucket).Get([]byte(sessionID))
		if v == nil {
			return nil
		}
		found = true
		return until.UnmarshalBinary(v)
	})
	if err != nil {
		return false, fmt.Errorf("reading revocation: %w", err)
	}
	return found && r.now().Before(until), nil
}

// Close stops the sweep goroutine.
func (r *BoltRevocations) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *BoltRevocations) cleanupLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			_ = r.sweep()
		}
	}
}

func (r *BoltRevocations) sweep() error {
	now := r.now()
	return r.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(revokedBucket)
		var expired [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var until time.Time
			if err := until.UnmarshalBinary(v); err != nil || !now.Before(until) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
