// Package settingstest provides a conformance suite for settings.Store
// implementations.
package settingstest

import (
	"context"
	"errors"
	"testing"

	"github.com/calisound/caliauth/settings"
)

// Run exercises the common contract against store. The store should start
// empty of the keys used here.
func Run(t *testing.T, store settings.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		_, err := store.Get(ctx, "missing-key")
		if !errors.Is(err, settings.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("SetAndGet", func(t *testing.T) {
		if err := store.Set(ctx, settings.TwoFactorSecretKey, "JBSWY3DPEHPK3PXP"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := store.Get(ctx, settings.TwoFactorSecretKey)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != "JBSWY3DPEHPK3PXP" {
			t.Fatalf("got %q, want %q", got, "JBSWY3DPEHPK3PXP")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		if err := store.Set(ctx, settings.TwoFactorEnabledKey, settings.True); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := store.Set(ctx, settings.TwoFactorEnabledKey, settings.False); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := store.Get(ctx, settings.TwoFactorEnabledKey)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != settings.False {
			t.Fatalf("got %q, want %q", got, settings.False)
		}
	})

	t.Run("EmptyValue", func(t *testing.T) {
		if err := store.Set(ctx, "empty-key", ""); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		got, err := store.Get(ctx, "empty-key")
		if err != nil {
			t.Fatalf("empty value should be stored, got %v", err)
		}
		if got != "" {
			t.Fatalf("got %q, want empty", got)
		}
	})

	t.Run("KeysAreIndependent", func(t *testing.T) {
		if err := store.Set(ctx, "key-a", "a"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if err := store.Set(ctx, "key-b", "b"); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		a, _ := store.Get(ctx, "key-a")
		b, _ := store.Get(ctx, "key-b")
		if a != "a" || b != "b" {
			t.Fatalf("got a=%q b=%q", a, b)
		}
	})
}
