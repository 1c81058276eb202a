package bbolt

import (
	"context"
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"

	"github.com/calisound/caliauth/settings"
	"github.com/calisound/caliauth/settings/settingstest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStoreFromFile(filepath.Join(t.TempDir(), "settings.db"), nil)
	if err != nil {
		t.Fatalf("could not open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBBoltStore(t *testing.T) {
	settingstest.Run(t, newTestStore(t))
}

func TestBBoltStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.db")
	ctx := context.Background()

	s, err := NewStoreFromFile(path, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := s.Set(ctx, settings.TwoFactorEnabledKey, settings.True); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = NewStoreFromFile(path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	got, err := s.Get(ctx, settings.TwoFactorEnabledKey)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != settings.True {
		t.Fatalf("got %q, want %q", got, settings.True)
	}
}

func TestBBoltStoreSharesDatabase(t *testing.T) {
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "shared.db"), 0600, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer db.Close()

	err = db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte("other"))
		if err != nil {
			return err
		}
		return b.Put([]byte(settings.TwoFactorSecretKey), []byte("not-a-setting"))
	})
	if err != nil {
		t.Fatalf("seeding other bucket failed: %v", err)
	}

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	if _, err := s.Get(context.Background(), settings.TwoFactorSecretKey); err == nil {
		t.Fatal("store must not read keys from other buckets")
	}
}
