package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/calisound/caliauth/session"
)

type contextKey int

const (
	jarKey contextKey = iota
	sessionKey
)

// RequireAuth rejects requests that are not fully authenticated and stores
// the verified session on the request context. Page guards outside this
// package can wrap their handlers with it.
func (a *API) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jar := a.jar(r)
		status, err := a.auth.CheckAuth(r.Context(), jar, a.client(r))
		if err != nil {
			a.mapError(w, r, err)
			return
		}
		if !status.Authenticated {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx := context.WithValue(r.Context(), jarKey, jar)
		ctx = context.WithValue(ctx, sessionKey, status.Session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// jar returns the cookie jar for r, reusing the one a middleware attached.
func (a *API) jar(r *http.Request) *session.Jar {
	if jar, ok := r.Context().Value(jarKey).(*session.Jar); ok {
		return jar
	}
	return session.JarFromRequest(r, a.secureCookies || requestIsSecure(r))
}

func (a *API) client(r *http.Request) session.Client {
	return session.Client{
		IPAddress: a.extractClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// respond writes the jar's cookies and then the JSON body.
func respond(w http.ResponseWriter, jar *session.Jar, status int, v any) {
	jar.Write(w)
	writeJSON(w, status, v)
}

func sessionFromContext(ctx context.Context) *session.Record {
	rec, _ := ctx.Value(sessionKey).(*session.Record)
	return rec
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
