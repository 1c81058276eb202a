// Package session creates, validates, rotates and destroys admin sessions.
//
// A session is an encrypted record carried in a cookie. Validity is computed
// lazily on every check: the record must decrypt, be younger than the
// absolute lifetime, have seen activity within the idle timeout, and not be
// revoked. A random CSRF token is issued alongside each session and sealed
// into it, so the CSRF cookie is only accepted with the session it was
// minted for.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"

	"github.com/calisound/caliauth/internal/util"
	"github.com/calisound/caliauth/seal"
)

const (
	DefaultMaxAge        = 7 * 24 * time.Hour
	DefaultIdleTimeout   = 24 * time.Hour
	DefaultPendingTTL    = 10 * time.Minute
	DefaultTouchInterval = 5 * time.Minute

	csrfTokenBytes = 32
)

// ErrNoSession is returned by operations that need a valid current session.
var ErrNoSession = errors.New("no valid session")

// Reason explains why a session failed verification.
type Reason string

const (
	ReasonNoSession       Reason = "no_session"
	ReasonInvalid         Reason = "invalid_session"
	ReasonExpired         Reason = "expired"
	ReasonInactiveTooLong Reason = "inactive_too_long"
)

// Client identifies the browser a request came from.
type Client struct {
	IPAddress string
	UserAgent string
}

// Record is the payload sealed into the session cookie.
type Record struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	IPAddress    string    `json:"ipAddress"`
	UserAgent    string    `json:"userAgent"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	CSRFToken    string    `json:"csrf"`
}

func (r Record) wellFormed() bool {
	return r.ID != "" && r.UserID != "" && r.CSRFToken != "" &&
		!r.CreatedAt.IsZero() && !r.LastActivity.IsZero()
}

// Tokens are the values a new session is carried by.
type Tokens struct {
	Session   string
	CSRF      string
	ExpiresAt time.Time
	Record    Record
}

// Verification is the outcome of checking a session token.
type Verification struct {
	Valid   bool
	Session *Record
	Reason  Reason
}

func invalid(reason Reason) Verification {
	return Verification{Reason: reason}
}

// Manager is the sole authority over session tokens and the cookies that
// carry them.
type Manager struct {
	sealer        *seal.Sealer
	pendingCodec  *securecookie.SecureCookie
	markerCodec   *securecookie.SecureCookie
	revocations   Revocations
	ownsRevoke    bool
	logger        *slog.Logger
	now           func() time.Time
	maxAge        time.Duration
	idleTimeout   time.Duration
	pendingTTL    time.Duration
	touchInterval time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for security events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRevocations sets where revoked session ids are recorded. Without it an
// in-memory store is used and revocations do not survive a restart.
func WithRevocations(r Revocations) Option {
	return func(m *Manager) {
		m.revocations = r
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLifetimes overrides the absolute lifetime and idle timeout.
func WithLifetimes(maxAge, idleTimeout time.Duration) Option {
	return func(m *Manager) {
		m.maxAge = maxAge
		m.idleTimeout = idleTimeout
	}
}

// WithPendingTTL overrides how long a password-verified login may wait for
// its second factor.
func WithPendingTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.pendingTTL = ttl
	}
}

// NewManager returns a Manager sealing sessions with sealer. The cookie
// codecs for the pending and verified markers use keys derived from the same
// sealer.
func NewManager(sealer *seal.Sealer, opts ...Option) (*Manager, error) {
	m := &Manager{
		sealer:        sealer,
		now:           time.Now,
		maxAge:        DefaultMaxAge,
		idleTimeout:   DefaultIdleTimeout,
		pendingTTL:    DefaultPendingTTL,
		touchInterval: DefaultTouchInterval,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "session")
	if m.revocations == nil {
		m.revocations = newMemoryRevocations(m.now)
		m.ownsRevoke = true
	}

	hashKey, err := sealer.DeriveKey("cookie-hash", 64)
	if err != nil {
		return nil, fmt.Errorf("deriving cookie hash key: %w", err)
	}
	blockKey, err := sealer.DeriveKey("cookie-block", 32)
	if err != nil {
		return nil, fmt.Errorf("deriving cookie block key: %w", err)
	}
	m.pendingCodec = newCodec(hashKey, blockKey, m.pendingTTL)
	m.markerCodec = newCodec(hashKey, blockKey, m.maxAge)
	return m, nil
}

func newCodec(hashKey, blockKey []byte, maxAge time.Duration) *securecookie.SecureCookie {
	c := securecookie.New(hashKey, blockKey)
	c.SetSerializer(securecookie.JSONEncoder{})
	c.MaxAge(int(maxAge / time.Second))
	return c
}

// Close releases the default revocation store, if the Manager created one.
func (m *Manager) Close() {
	if m.ownsRevoke {
		if c, ok := m.revocations.(interface{ Close() }); ok {
			c.Close()
		}
	}
}

// MaxAge returns the absolute session lifetime.
func (m *Manager) MaxAge() time.Duration {
	return m.maxAge
}

// Create builds and seals a new session for userID. It does not set any
// cookies; see Issue.
func (m *Manager) Create(userID string, client Client) (Tokens, error) {
	if userID == "" {
		return Tokens{}, errors.New("session: empty user id")
	}
	csrf, err := util.RandomHex(csrfTokenBytes)
	if err != nil {
		return Tokens{}, fmt.Errorf("generating csrf token: %w", err)
	}
	now := m.now().UTC()
	rec := Record{
		ID:           uuid.NewString(),
		UserID:       userID,
		IPAddress:    client.IPAddress,
		UserAgent:    client.UserAgent,
		CreatedAt:    now,
		LastActivity: now,
		CSRFToken:    csrf,
	}
	token, err := seal.SealJSON(m.sealer, rec)
	if err != nil {
		return Tokens{}, fmt.Errorf("sealing session: %w", err)
	}
	return Tokens{
		Session:   token,
		CSRF:      csrf,
		ExpiresAt: now.Add(m.maxAge),
		Record:    rec,
	}, nil
}

// Issue creates a session and writes its session and CSRF cookies to jar.
func (m *Manager) Issue(jar *Jar, userID string, client Client) (Tokens, error) {
	tokens, err := m.Create(userID, client)
	if err != nil {
		return Tokens{}, err
	}
	m.writeSession(jar, tokens.Session, tokens.ExpiresAt)
	m.writeCSRF(jar, tokens.CSRF, tokens.ExpiresAt)
	return tokens, nil
}

// Verify checks the session cookie in jar. clientIP, when known, is compared
// with the address the session was created from; a mismatch is logged but
// does not invalidate the session because mobile clients change addresses.
func (m *Manager) Verify(ctx context.Context, jar *Jar, clientIP string) Verification {
	return m.VerifyToken(ctx, jar.Get(SessionCookie), clientIP)
}

// VerifyToken checks a raw session token.
func (m *Manager) VerifyToken(ctx context.Context, token, clientIP string) Verification {
	if token == "" {
		return invalid(ReasonNoSession)
	}
	rec, err := seal.OpenJSON[Record](m.sealer, token)
	if err != nil || !rec.wellFormed() {
		m.logger.DebugContext(ctx, "session rejected", slog.String("reason", string(ReasonInvalid)))
		return invalid(ReasonInvalid)
	}

	now := m.now()
	if now.Sub(rec.CreatedAt) > m.maxAge {
		return invalid(ReasonExpired)
	}
	if now.Sub(rec.LastActivity) > m.idleTimeout {
		return invalid(ReasonInactiveTooLong)
	}

	revoked, err := m.revocations.IsRevoked(ctx, rec.ID)
	if err != nil {
		m.logger.ErrorContext(ctx, "revocation lookup failed", slog.String("error", err.Error()))
		return invalid(ReasonInvalid)
	}
	if revoked {
		return invalid(ReasonInvalid)
	}

	if clientIP != "" && rec.IPAddress != "" && clientIP != rec.IPAddress {
		m.logger.WarnContext(ctx, "session used from a different ip address",
			slog.String("event", "session_ip_mismatch"),
			slog.String("session_id", rec.ID),
			slog.String("created_ip", rec.IPAddress),
			slog.String("current_ip", clientIP),
		)
	}
	return Verification{Valid: true, Session: &rec}
}

// VerifyCSRF reports whether candidate matches both the CSRF cookie and the
// token sealed into the current session.
func (m *Manager) VerifyCSRF(jar *Jar, candidate string) bool {
	cookie := jar.Get(CSRFCookie)
	if cookie == "" || candidate == "" {
		return false
	}
	if !util.ConstantTimeEqualString(cookie, candidate) {
		return false
	}
	rec, err := seal.OpenJSON[Record](m.sealer, jar.Get(SessionCookie))
	if err != nil {
		return false
	}
	return util.ConstantTimeEqualString(rec.CSRFToken, candidate)
}

// Touch records activity on a verified session, re-issuing the session
// cookie with a fresh lastActivity. Calls within the touch interval of the
// previous activity are no-ops.
func (m *Manager) Touch(jar *Jar, rec Record) error {
	now := m.now().UTC()
	if now.Sub(rec.LastActivity) < m.touchInterval {
		return nil
	}
	rec.LastActivity = now
	token, err := seal.SealJSON(m.sealer, rec)
	if err != nil {
		return fmt.Errorf("sealing session: %w", err)
	}
	m.writeSession(jar, token, rec.CreatedAt.Add(m.maxAge))
	return nil
}

// Rotate replaces the current session with a fresh one for the same user and
// revokes the old one. A 2FA-verified marker bound to the old session is
// re-bound to the new one.
func (m *Manager) Rotate(ctx context.Context, jar *Jar, client Client) (Tokens, error) {
	v := m.Verify(ctx, jar, client.IPAddress)
	if !v.Valid {
		return Tokens{}, ErrNoSession
	}
	old := *v.Session
	verified := m.TwoFactorVerified(jar, old.ID)

	if err := m.revoke(ctx, old); err != nil {
		return Tokens{}, err
	}
	tokens, err := m.Issue(jar, old.UserID, client)
	if err != nil {
		return Tokens{}, err
	}
	if verified {
		if err := m.MarkTwoFactorVerified(jar, tokens.Record.ID); err != nil {
			return Tokens{}, err
		}
	}
	m.logger.InfoContext(ctx, "session rotated",
		slog.String("old_session_id", old.ID),
		slog.String("session_id", tokens.Record.ID),
	)
	return tokens, nil
}

// Destroy revokes the current session, if any, and clears the session and
// CSRF cookies. It is safe to call without a session. The cookies are
// cleared even when recording the revocation fails.
func (m *Manager) Destroy(ctx context.Context, jar *Jar) error {
	var err error
	if token := jar.Get(SessionCookie); token != "" {
		if rec, openErr := seal.OpenJSON[Record](m.sealer, token); openErr == nil && rec.wellFormed() {
			err = m.revoke(ctx, rec)
		}
	}
	jar.clear(SessionCookie, true, http.SameSiteLaxMode)
	jar.clear(CSRFCookie, false, http.SameSiteLaxMode)
	return err
}

func (m *Manager) revoke(ctx context.Context, rec Record) error {
	// Past the absolute lifetime the token fails on age alone.
	until := rec.CreatedAt.Add(m.maxAge)
	if err := m.revocations.Revoke(ctx, rec.ID, until); err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	return nil
}

func (m *Manager) writeSession(jar *Jar, token string, expiresAt time.Time) {
	jar.set(&http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
	})
}

// writeCSRF sets the CSRF double-submit cookie. It is NOT HttpOnly so that
// client script can read it and echo it in a request header.
func (m *Manager) writeCSRF(jar *Jar, token string, expiresAt time.Time) {
	jar.set(&http.Cookie{
		Name:     CSRFCookie,
		Value:    token,
		HttpOnly: false,
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
	})
}
