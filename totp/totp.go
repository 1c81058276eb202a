// Package totp implements RFC 6238 time-based one-time passwords compatible
// with common authenticator apps (SHA-1, 6 digits, 30 second steps).
package totp

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/calisound/caliauth/internal/util"
)

const (
	Digits     = 6
	Period     = 30
	SecretSize = 20

	// ModerateSkew is the first verification window, ±2.5 minutes.
	ModerateSkew uint = 5
	// WideSkew is the fallback window, ±5 minutes, tried only after the
	// moderate window fails.
	WideSkew uint = 10
)

var (
	// ErrMissingSecret is returned when no secret is configured.
	ErrMissingSecret = errors.New("totp secret is missing")
	// ErrInvalidSecret is returned when a secret is not valid base32.
	ErrInvalidSecret = errors.New("totp secret is not valid base32")
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

func validateOpts(skew uint) totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    Period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	}
}

// GenerateSecret returns a new random 160-bit secret, base32 encoded without
// padding.
func GenerateSecret() (string, error) {
	raw, err := util.RandomBytes(SecretSize)
	if err != nil {
		return "", err
	}
	defer util.WipeBytes(raw)
	return encoding.EncodeToString(raw), nil
}

// ProvisioningURI returns the otpauth:// URI an authenticator app scans to
// enroll secret for account under issuer.
func ProvisioningURI(secret, account, issuer string) (string, error) {
	raw, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	defer util.WipeBytes(raw)

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
		Period:      Period,
		Secret:      raw,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("building provisioning uri: %w", err)
	}
	return key.URL(), nil
}

// NormalizeCode removes all whitespace from a user-entered code.
func NormalizeCode(code string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, code)
}

// WellFormedCode reports whether code is exactly Digits ASCII digits.
func WellFormedCode(code string) bool {
	if len(code) != Digits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Verify reports whether code matches secret at any step within skew steps
// of at. Malformed codes are rejected before the secret is used.
func Verify(code, secret string, skew uint, at time.Time) bool {
	code = NormalizeCode(code)
	if !WellFormedCode(code) {
		return false
	}
	secret = normalizeSecret(secret)
	if secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at, validateOpts(skew))
	if err != nil {
		return false
	}
	return ok
}

// Validate applies the verification policy: the moderate window first, then
// the wide window. A code is not consumed by a successful check; replay
// within its window is possible.
func Validate(code, secret string, at time.Time) bool {
	if Verify(code, secret, ModerateSkew, at) {
		return true
	}
	return Verify(code, secret, WideSkew, at)
}

// Code returns the code for secret at the given time.
func Code(secret string, at time.Time) (string, error) {
	if _, err := decodeSecret(secret); err != nil {
		return "", err
	}
	return totp.GenerateCodeCustom(normalizeSecret(secret), at, validateOpts(0))
}

func normalizeSecret(secret string) string {
	return strings.ToUpper(NormalizeCode(secret))
}

func decodeSecret(secret string) ([]byte, error) {
	secret = normalizeSecret(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	raw, err := encoding.DecodeString(strings.TrimRight(secret, "="))
	if err != nil || len(raw) == 0 {
		return nil, ErrInvalidSecret
	}
	return raw, nil
}

// CheckSecret returns the secret in canonical form (uppercase, no
// whitespace) or an error if it is missing or not valid base32.
func CheckSecret(secret string) (string, error) {
	if _, err := decodeSecret(secret); err != nil {
		return "", err
	}
	return normalizeSecret(secret), nil
}
