// Package auth implements the admin login protocol: password check, the
// optional TOTP second factor, and the session lifecycle around them.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/calisound/caliauth/internal/util"
	"github.com/calisound/caliauth/session"
	"github.com/calisound/caliauth/settings"
	"github.com/calisound/caliauth/totp"
)

const (
	// AdminUserID identifies the single admin principal.
	AdminUserID = "admin"

	DefaultFailureDelay = 100 * time.Millisecond
	DefaultIssuer       = "CALI Sound"
	DefaultAccountName  = "admin"
	DefaultLoginPath    = "/admin/login"
)

// Service orchestrates logins against a single configured admin password.
type Service struct {
	password     string
	sessions     *session.Manager
	settings     settings.Store
	logger       *slog.Logger
	failureDelay time.Duration
	now          func() time.Time
	issuer       string
	account      string
	loginPath    string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger for security events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithFailureDelay sets the pause applied to every failed password check.
func WithFailureDelay(d time.Duration) Option {
	return func(s *Service) {
		s.failureDelay = d
	}
}

// WithClock overrides the time source used for TOTP checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithIssuer sets the issuer shown in authenticator apps.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		s.issuer = issuer
	}
}

// WithAccountName sets the account label shown in authenticator apps.
func WithAccountName(account string) Option {
	return func(s *Service) {
		s.account = account
	}
}

// WithLoginPath sets where clients are sent after logout.
func WithLoginPath(path string) Option {
	return func(s *Service) {
		s.loginPath = path
	}
}

// New returns a Service checking logins against adminPassword.
func New(adminPassword string, sessions *session.Manager, store settings.Store, opts ...Option) (*Service, error) {
	if adminPassword == "" {
		return nil, errors.New("auth: admin password is empty")
	}
	if sessions == nil || store == nil {
		return nil, errors.New("auth: session manager and settings store are required")
	}
	s := &Service{
		password:     util.Normalize(adminPassword),
		sessions:     sessions,
		settings:     store,
		failureDelay: DefaultFailureDelay,
		now:          time.Now,
		issuer:       DefaultIssuer,
		account:      DefaultAccountName,
		loginPath:    DefaultLoginPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "auth")
	return s, nil
}

// Sessions returns the session manager the service issues sessions through.
func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

// LoginResult is the outcome of a password check that succeeded.
type LoginResult struct {
	Success     bool
	Requires2FA bool
	// CSRFToken is set when a full session was issued.
	CSRFToken string
}

// Login checks password. When 2FA is enabled a pending login is recorded in
// jar and the caller must follow up with VerifyTwoFactor; otherwise a full
// session is issued.
func (s *Service) Login(ctx context.Context, jar *session.Jar, password string, client session.Client) (LoginResult, error) {
	if !util.ConstantTimeEqualString(util.Normalize(password), s.password) {
		s.logger.WarnContext(ctx, "login failed", slog.String("client_ip", client.IPAddress))
		if err := s.pause(ctx); err != nil {
			return LoginResult{}, err
		}
		return LoginResult{}, ErrInvalidPassword
	}

	enabled, err := s.TwoFactorEnabled(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "login blocked: 2fa state unknown", slog.String("error", err.Error()))
		return LoginResult{}, err
	}

	// Any earlier session in this browser ends here.
	s.endSession(ctx, jar)

	if enabled {
		if _, err := s.sessions.IssuePending(jar, AdminUserID, client); err != nil {
			return LoginResult{}, err
		}
		return LoginResult{Success: true, Requires2FA: true}, nil
	}

	s.sessions.ClearPending(jar)
	tokens, err := s.sessions.Issue(jar, AdminUserID, client)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Success: true, CSRFToken: tokens.CSRF}, nil
}

// VerifyTwoFactor completes a pending login with a TOTP code. A rejected
// code leaves the pending login in place until it expires.
func (s *Service) VerifyTwoFactor(ctx context.Context, jar *session.Jar, code string, client session.Client) (LoginResult, error) {
	pending, ok := s.sessions.Pending(jar)
	if !ok {
		return LoginResult{}, ErrNoPendingLogin
	}
	secret, err := s.secret(ctx)
	if err != nil {
		return LoginResult{}, err
	}
	if !totp.Validate(code, secret, s.now()) {
		s.logger.WarnContext(ctx, "2fa code rejected", slog.String("client_ip", client.IPAddress))
		return LoginResult{}, ErrInvalidCode
	}

	s.endSession(ctx, jar)
	tokens, err := s.sessions.Issue(jar, pending.UserID, client)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.sessions.MarkTwoFactorVerified(jar, tokens.Record.ID); err != nil {
		return LoginResult{}, err
	}
	s.sessions.ClearPending(jar)
	return LoginResult{Success: true, CSRFToken: tokens.CSRF}, nil
}

// CompleteLogin clears leftover pending-login state once the request is
// fully authenticated. Calling it again is harmless.
func (s *Service) CompleteLogin(ctx context.Context, jar *session.Jar, client session.Client) error {
	status, err := s.CheckAuth(ctx, jar, client)
	if err != nil {
		return err
	}
	if !status.Authenticated {
		return ErrNotAuthenticated
	}
	s.sessions.ClearPending(jar)
	return nil
}

// Status is the authentication state of a request.
type Status struct {
	Authenticated bool
	// Requires2FA is set when the password step has been passed but the
	// second factor has not.
	Requires2FA bool
	// Session is the verified session record, when there is one.
	Session *session.Record
}

// CheckAuth reports whether jar carries a fully authenticated session. With
// 2FA enabled the session must also carry a 2FA marker bound to it. A
// settings store failure is returned as an error, never as "2FA off".
func (s *Service) CheckAuth(ctx context.Context, jar *session.Jar, client session.Client) (Status, error) {
	v := s.sessions.Verify(ctx, jar, client.IPAddress)
	if !v.Valid {
		if v.Reason != session.ReasonNoSession {
			s.logger.DebugContext(ctx, "session not accepted", slog.String("reason", string(v.Reason)))
		}
		_, pending := s.sessions.Pending(jar)
		return Status{Requires2FA: pending}, nil
	}

	enabled, err := s.TwoFactorEnabled(ctx)
	if err != nil {
		return Status{}, err
	}
	if enabled && !s.sessions.TwoFactorVerified(jar, v.Session.ID) {
		return Status{Requires2FA: true, Session: v.Session}, nil
	}

	if err := s.sessions.Touch(jar, *v.Session); err != nil {
		s.logger.WarnContext(ctx, "session touch failed", slog.String("error", err.Error()))
	}
	return Status{Authenticated: true, Session: v.Session}, nil
}

// IsAuthenticated is CheckAuth reduced to a yes/no for route guards. Errors
// are logged and count as not authenticated.
func (s *Service) IsAuthenticated(ctx context.Context, jar *session.Jar, client session.Client) bool {
	status, err := s.CheckAuth(ctx, jar, client)
	if err != nil {
		s.logger.ErrorContext(ctx, "auth check failed", slog.String("error", err.Error()))
		return false
	}
	return status.Authenticated
}

// LogoutResult tells the caller where to send the client.
type LogoutResult struct {
	RedirectTo string
}

// Logout ends the session and clears every auth cookie. The cookies are
// cleared even when the revocation could not be recorded; that error is
// still returned.
func (s *Service) Logout(ctx context.Context, jar *session.Jar) (LogoutResult, error) {
	err := s.sessions.Destroy(ctx, jar)
	s.sessions.ClearPending(jar)
	s.sessions.ClearTwoFactorVerified(jar)
	return LogoutResult{RedirectTo: s.loginPath}, err
}

// RotateSession replaces the caller's session with a fresh one.
func (s *Service) RotateSession(ctx context.Context, jar *session.Jar, client session.Client) (session.Tokens, error) {
	tokens, err := s.sessions.Rotate(ctx, jar, client)
	if errors.Is(err, session.ErrNoSession) {
		return session.Tokens{}, ErrNotAuthenticated
	}
	return tokens, err
}

func (s *Service) endSession(ctx context.Context, jar *session.Jar) {
	if err := s.sessions.Destroy(ctx, jar); err != nil {
		s.logger.WarnContext(ctx, "previous session not revoked", slog.String("error", err.Error()))
	}
	s.sessions.ClearTwoFactorVerified(jar)
}

// pause waits out the failed-login delay unless ctx ends first.
func (s *Service) pause(ctx context.Context) error {
	if s.failureDelay <= 0 {
		return nil
	}
	t := time.NewTimer(s.failureDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
