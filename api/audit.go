package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditLoginSuccess      AuditEvent = "login_success"
	AuditLoginFailure      AuditEvent = "login_failure"
	AuditLoginPending2FA   AuditEvent = "login_pending_2fa"
	AuditTwoFactorVerified AuditEvent = "2fa_verified"
	AuditTwoFactorFailure  AuditEvent = "2fa_failure"
	AuditLogout            AuditEvent = "logout"
	AuditSessionRotated    AuditEvent = "session_rotated"
	AuditTwoFactorSetup    AuditEvent = "2fa_setup"
	AuditTwoFactorEnabled  AuditEvent = "2fa_enabled"
	AuditTwoFactorDisabled AuditEvent = "2fa_disabled"
	AuditTwoFactorReset    AuditEvent = "2fa_reset"
	AuditCSRFRejected      AuditEvent = "csrf_rejected"
)

// auditLogger wraps slog.Logger for structured security audit logging.
type auditLogger struct {
	logger  *slog.Logger
	metrics *metricsCollector
	webhook *auditWebhook
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

// log writes a structured audit log entry.
func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	timestamp := time.Now().UTC().Format(time.RFC3339)
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("user_agent", r.UserAgent()),
		slog.String("timestamp", timestamp),
	}
	baseAttrs = append(baseAttrs, attrs...)
	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
	if al.webhook != nil {
		al.webhook.enqueue(webhookEventFromAttrs(event, r.RemoteAddr, timestamp, attrs))
	}
	if al.metrics != nil {
		al.metrics.recordEvent(event)
	}
}

// logEvent is a convenience for events tied to a session.
func (al *auditLogger) logEvent(event AuditEvent, r *http.Request, sessionID string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("session_id", sessionID),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}

// logFailure logs a failed authentication attempt.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}
