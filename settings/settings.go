// Package settings defines the key/value store the auth core reads its
// two-factor configuration from. The store is shared with the rest of the
// site; the auth core only uses the keys declared here.
package settings

import (
	"context"
	"errors"
)

// Keys used by two-factor authentication.
const (
	TwoFactorSecretKey  = "2fa_secret"
	TwoFactorEnabledKey = "2fa_enabled"
)

// Values of TwoFactorEnabledKey.
const (
	True  = "true"
	False = "false"
)

// ErrNotFound is returned by Get when a key has never been set.
var ErrNotFound = errors.New("setting not found")

// Store is a string key/value store with atomic single-key upserts.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set creates or replaces the value for key.
	Set(ctx context.Context, key, value string) error
}
