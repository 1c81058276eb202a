package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/calisound/caliauth/seal"
)

// ErrCorrupt is returned when a sealed value cannot be opened.
var ErrCorrupt = errors.New("sealed setting could not be opened")

// Sealed wraps a Store and encrypts the values of selected keys at rest.
// Values written before sealing was enabled are returned as-is and
// re-sealed on the next Set.
type Sealed struct {
	store  Store
	sealer *seal.Sealer
	keys   map[string]struct{}
}

var _ Store = (*Sealed)(nil)

// NewSealed returns a Store that seals the values of keys before handing
// them to store.
func NewSealed(store Store, sealer *seal.Sealer, keys ...string) *Sealed {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return &Sealed{store: store, sealer: sealer, keys: set}
}

func (s *Sealed) sealed(key string) bool {
	_, ok := s.keys[key]
	return ok
}

func (s *Sealed) Get(ctx context.Context, key string) (string, error) {
	value, err := s.store.Get(ctx, key)
	if err != nil || !s.sealed(key) || value == "" {
		return value, err
	}
	plain, err := s.sealer.Open(value)
	if errors.Is(err, seal.ErrMalformedToken) {
		// Legacy plaintext value.
		return value, nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", key, ErrCorrupt)
	}
	return string(plain), nil
}

func (s *Sealed) Set(ctx context.Context, key, value string) error {
	if !s.sealed(key) || value == "" {
		return s.store.Set(ctx, key, value)
	}
	token, err := s.sealer.Seal([]byte(value))
	if err != nil {
		return fmt.Errorf("sealing %s: %w", key, err)
	}
	return s.store.Set(ctx, key, token)
}
