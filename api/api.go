// Package api exposes the admin authentication core over HTTP.
package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"net/netip"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/calisound/caliauth/auth"
	"github.com/calisound/caliauth/session"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	auth           *auth.Service
	sessions       *session.Manager
	audit          *auditLogger
	logger         *slog.Logger
	trustedProxies []netip.Prefix
	secureCookies  bool
	alertFn        AlertFunc
	webhookURL     string
	webhookAuth    string
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger for audit events.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithTrustedProxies sets the proxy ranges whose forwarding headers are
// believed when determining the client address.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) {
		a.trustedProxies = prefixes
	}
}

// WithSecureCookies forces the Secure attribute on every cookie, even for
// requests that do not look like they arrived over TLS.
func WithSecureCookies(secure bool) Option {
	return func(a *API) {
		a.secureCookies = secure
	}
}

// WithAlertFunc sets the callback invoked when login or 2FA failures spike.
func WithAlertFunc(fn AlertFunc) Option {
	return func(a *API) {
		a.alertFn = fn
	}
}

// WithAuditWebhook forwards every audit event and alert to url. authHeader,
// if set, is a "Name: value" header added to each request.
func WithAuditWebhook(url, authHeader string) Option {
	return func(a *API) {
		a.webhookURL = url
		a.webhookAuth = authHeader
	}
}

// New creates a new API instance serving svc.
func New(svc *auth.Service, opts ...Option) *API {
	a := &API{
		auth:     svc,
		sessions: svc.Sessions(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	a.audit = newAuditLogger(a.logger)
	if a.webhookURL != "" {
		a.audit.webhook = newAuditWebhook(a.webhookURL, a.webhookAuth, a.logger)
	}
	a.audit.metrics = newMetricsCollector(a.alert)
	return a
}

// Close flushes queued webhook deliveries.
func (a *API) Close() {
	if a.audit != nil && a.audit.webhook != nil {
		a.audit.webhook.close()
	}
}

// alert logs an anomaly and hands it to the webhook and the configured
// callback.
func (a *API) alert(e AlertEvent) {
	a.logger.Warn("security alert",
		slog.String("alert", string(e.Type)),
		slog.Int("count", e.Count),
		slog.Int("threshold", e.Threshold),
	)
	if a.audit.webhook != nil {
		a.audit.webhook.enqueue(alertWebhookEvent(e))
	}
	if a.alertFn != nil {
		a.alertFn(e)
	}
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Post("/auth/login", a.Login)
	r.Post("/auth/2fa/verify", a.VerifyTwoFactor)
	r.Get("/auth/check", a.CheckAuth)
	r.Post("/auth/logout", a.Logout)
	r.With(a.RequireAuth).Post("/auth/complete", a.CompleteLogin)
	r.With(a.RequireAuth).Get("/auth/2fa", a.TwoFactorStatus)

	// Session-mutating routes need the double-submit CSRF token.
	r.Group(func(r chi.Router) {
		r.Use(a.RequireAuth, a.CSRFMiddleware)
		r.Post("/auth/rotate", a.RotateSession)
		r.Post("/auth/2fa/setup", a.SetupTwoFactor)
		r.Post("/auth/2fa/confirm", a.ConfirmTwoFactor)
		r.Post("/auth/2fa/disable", a.DisableTwoFactor)
		r.Post("/auth/2fa/reset", a.ResetTwoFactor)
	})

	return r
}
