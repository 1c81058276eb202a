package api

import (
	"net/http"

	"github.com/calisound/caliauth/session"
)

const csrfHeaderName = "X-CSRF-Token"

// CSRFMiddleware enforces double-submit CSRF protection on mutating
// requests. The header must match the CSRF cookie, and the cookie must be
// the one minted with the current session. Safe methods are exempt.
func (a *API) CSRFMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		jar := a.jar(r)
		if jar.Get(session.SessionCookie) == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if !a.sessions.VerifyCSRF(jar, r.Header.Get(csrfHeaderName)) {
			a.audit.logFailure(AuditCSRFRejected, r, "csrf token mismatch")
			writeError(w, http.StatusForbidden, "invalid CSRF token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
