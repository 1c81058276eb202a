package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/calisound/caliauth/auth"
)

const maxAuthBodySize = 16 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// mapError translates core errors into responses. Messages for credential
// failures are fixed strings that reveal nothing about which check failed.
func (a *API) mapError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidPassword):
		writeError(w, http.StatusUnauthorized, "Invalid password")
	case errors.Is(err, auth.ErrInvalidCode):
		writeError(w, http.StatusUnauthorized, "Invalid verification code")
	case errors.Is(err, auth.ErrNoPendingLogin):
		writeError(w, http.StatusUnauthorized, "no pending login; sign in again")
	case errors.Is(err, auth.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, auth.ErrInvalidSecret):
		writeError(w, http.StatusBadRequest, "invalid 2fa secret")
	case errors.Is(err, auth.ErrSettingsUnavailable):
		a.logger.ErrorContext(r.Context(), "settings store unavailable", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "settings store unavailable")
	case errors.Is(err, auth.ErrTwoFactorMisconfigured):
		a.logger.ErrorContext(r.Context(), "2fa misconfigured", slog.String("error", err.Error()))
		writeError(w, http.StatusServiceUnavailable, "two-factor authentication is misconfigured")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		a.logger.ErrorContext(r.Context(), "internal error", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a JSON body of at most limit bytes into T, writing a 400
// response on failure.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, limit int64) (T, bool) {
	var v T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return v, false
	}
	return v, true
}
