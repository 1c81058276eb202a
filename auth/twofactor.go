package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/calisound/caliauth/session"
	"github.com/calisound/caliauth/settings"
	"github.com/calisound/caliauth/totp"
)

// TwoFactorStatus describes the stored 2FA configuration.
type TwoFactorStatus struct {
	Enabled   bool
	HasSecret bool
	// SecretUnusable is set when a secret is stored but cannot be used:
	// it was sealed under a different settings key, or is not base32.
	SecretUnusable bool
}

// Misconfigured reports whether 2FA is flagged on with no usable secret to
// check codes against.
func (t TwoFactorStatus) Misconfigured() bool {
	return t.Enabled && (!t.HasSecret || t.SecretUnusable)
}

// TwoFactorStatus reads the stored 2FA configuration. An unusable secret is
// reported in the status, not as an error.
func (s *Service) TwoFactorStatus(ctx context.Context) (TwoFactorStatus, error) {
	flag, err := s.get(ctx, settings.TwoFactorEnabledKey)
	if err != nil {
		return TwoFactorStatus{}, err
	}
	st := TwoFactorStatus{Enabled: flag == settings.True}

	secret, err := s.secret(ctx)
	switch {
	case errors.Is(err, ErrTwoFactorMisconfigured):
		st.HasSecret, st.SecretUnusable = true, true
	case err != nil:
		return TwoFactorStatus{}, err
	default:
		st.HasSecret = secret != ""
	}
	return st, nil
}

// TwoFactorEnabled reports whether logins need a second factor. An enabled
// flag without a usable secret is ErrTwoFactorMisconfigured.
func (s *Service) TwoFactorEnabled(ctx context.Context) (bool, error) {
	st, err := s.TwoFactorStatus(ctx)
	if err != nil {
		return false, err
	}
	if st.Misconfigured() {
		return false, ErrTwoFactorMisconfigured
	}
	return st.Enabled, nil
}

// TwoFactorSetup is a freshly generated secret awaiting confirmation.
type TwoFactorSetup struct {
	Secret          string
	ProvisioningURI string
}

// SetupTwoFactor generates a new secret and its provisioning URI. Nothing is
// stored until ConfirmSetup succeeds.
func (s *Service) SetupTwoFactor(ctx context.Context) (TwoFactorSetup, error) {
	secret, err := totp.GenerateSecret()
	if err != nil {
		return TwoFactorSetup{}, err
	}
	uri, err := totp.ProvisioningURI(secret, s.account, s.issuer)
	if err != nil {
		return TwoFactorSetup{}, err
	}
	s.logger.InfoContext(ctx, "2fa setup started")
	return TwoFactorSetup{Secret: secret, ProvisioningURI: uri}, nil
}

// ConfirmSetup enables 2FA with secret once code proves the authenticator
// holds it. The caller's session, if valid, is marked verified so enabling
// 2FA does not lock the caller out.
func (s *Service) ConfirmSetup(ctx context.Context, jar *session.Jar, secret, code string, client session.Client) error {
	secret, err := totp.CheckSecret(secret)
	if err != nil {
		return ErrInvalidSecret
	}
	if !totp.Validate(code, secret, s.now()) {
		return ErrInvalidCode
	}
	if err := s.Enable(ctx, secret); err != nil {
		return err
	}
	if v := s.sessions.Verify(ctx, jar, client.IPAddress); v.Valid {
		return s.sessions.MarkTwoFactorVerified(jar, v.Session.ID)
	}
	return nil
}

// Enable stores secret and then sets the enabled flag. If the flag write
// fails the stored secret is inert.
func (s *Service) Enable(ctx context.Context, secret string) error {
	secret, err := totp.CheckSecret(secret)
	if err != nil {
		return ErrInvalidSecret
	}
	if err := s.set(ctx, settings.TwoFactorSecretKey, secret); err != nil {
		return err
	}
	if err := s.set(ctx, settings.TwoFactorEnabledKey, settings.True); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "2fa enabled")
	return nil
}

// Disable clears the enabled flag and keeps the secret for re-enabling.
func (s *Service) Disable(ctx context.Context) error {
	if err := s.set(ctx, settings.TwoFactorEnabledKey, settings.False); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "2fa disabled")
	return nil
}

// Reset clears both the flag and the secret.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.set(ctx, settings.TwoFactorEnabledKey, settings.False); err != nil {
		return err
	}
	if err := s.set(ctx, settings.TwoFactorSecretKey, ""); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "2fa reset")
	return nil
}

// secret returns the stored TOTP secret, or "" when none is stored. A stored
// value that cannot be opened or is not base32 yields
// ErrTwoFactorMisconfigured.
func (s *Service) secret(ctx context.Context) (string, error) {
	secret, err := s.get(ctx, settings.TwoFactorSecretKey)
	if err != nil || secret == "" {
		return "", err
	}
	canonical, err := totp.CheckSecret(secret)
	if err != nil {
		s.logger.ErrorContext(ctx, "stored 2fa secret is not base32")
		return "", fmt.Errorf("%w: stored secret is not base32", ErrTwoFactorMisconfigured)
	}
	return canonical, nil
}

// get reads key, treating a missing key as empty. A sealed value that cannot
// be opened is a configuration problem, not a store outage.
func (s *Service) get(ctx context.Context, key string) (string, error) {
	value, err := s.settings.Get(ctx, key)
	switch {
	case err == nil:
		return value, nil
	case errors.Is(err, settings.ErrNotFound):
		return "", nil
	case errors.Is(err, settings.ErrCorrupt):
		s.logger.ErrorContext(ctx, "sealed setting could not be opened; check CALI_SETTINGS_KEY",
			slog.String("key", key))
		return "", fmt.Errorf("%w: %w", ErrTwoFactorMisconfigured, err)
	default:
		s.logger.ErrorContext(ctx, "settings read failed", slog.String("key", key), slog.String("error", err.Error()))
		return "", &StoreError{Op: "get", Key: key, Err: err}
	}
}

func (s *Service) set(ctx context.Context, key, value string) error {
	if err := s.settings.Set(ctx, key, value); err != nil {
		s.logger.ErrorContext(ctx, "settings write failed", slog.String("key", key), slog.String("error", err.Error()))
		return &StoreError{Op: "set", Key: key, Err: err}
	}
	return nil
}
