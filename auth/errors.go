package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPassword is returned for any failed password check.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidCode is returned for any rejected TOTP code, whatever the
	// reason it was rejected.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrNoPendingLogin is returned when a code is submitted without a live
	// password-verified login to complete.
	ErrNoPendingLogin = errors.New("no pending login")
	// ErrNotAuthenticated is returned by operations that need a fully
	// authenticated session.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrSettingsUnavailable means the settings store could not be read or
	// written, so whether 2FA applies is unknown.
	ErrSettingsUnavailable = errors.New("settings store unavailable")
	// ErrTwoFactorMisconfigured means 2FA is flagged enabled but no usable
	// secret is stored: it is missing, not base32, or sealed under another
	// settings key. Logins fail until an operator resets 2FA or restores the
	// key.
	ErrTwoFactorMisconfigured = errors.New("2fa misconfigured")
	// ErrInvalidSecret is returned when enabling 2FA with a missing or
	// malformed secret.
	ErrInvalidSecret = errors.New("invalid 2fa secret")
)

// StoreError wraps a settings store failure. It matches
// ErrSettingsUnavailable with errors.Is.
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("settings %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return target == ErrSettingsUnavailable
}
