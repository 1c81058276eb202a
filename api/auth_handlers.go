package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/calisound/caliauth/auth"
)

// Login handles POST /auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[LoginRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	jar := a.jar(r)
	client := a.client(r)

	res, err := a.auth.Login(r.Context(), jar, req.Password, client)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			a.audit.logFailure(AuditLoginFailure, r, "invalid password",
				slog.String("client_ip", client.IPAddress))
		}
		jar.Write(w)
		a.mapError(w, r, err)
		return
	}

	if res.Requires2FA {
		a.audit.log(AuditLoginPending2FA, r, slog.String("client_ip", client.IPAddress))
	} else {
		a.audit.log(AuditLoginSuccess, r, slog.String("client_ip", client.IPAddress))
	}
	respond(w, jar, http.StatusOK, LoginResponse{
		Success:     res.Success,
		Requires2FA: res.Requires2FA,
		CSRFToken:   res.CSRFToken,
	})
}

// VerifyTwoFactor handles POST /auth/2fa/verify.
func (a *API) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[VerifyTwoFactorRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	jar := a.jar(r)
	client := a.client(r)

	res, err := a.auth.VerifyTwoFactor(r.Context(), jar, req.Code, client)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCode) || errors.Is(err, auth.ErrNoPendingLogin) {
			a.audit.logFailure(AuditTwoFactorFailure, r, err.Error(),
				slog.String("client_ip", client.IPAddress))
		}
		jar.Write(w)
		a.mapError(w, r, err)
		return
	}

	a.audit.log(AuditTwoFactorVerified, r, slog.String("client_ip", client.IPAddress))
	respond(w, jar, http.StatusOK, LoginResponse{Success: true, CSRFToken: res.CSRFToken})
}

// CompleteLogin handles POST /auth/complete.
func (a *API) CompleteLogin(w http.ResponseWriter, r *http.Request) {
	jar := a.jar(r)
	if err := a.auth.CompleteLogin(r.Context(), jar, a.client(r)); err != nil {
		jar.Write(w)
		a.mapError(w, r, err)
		return
	}
	respond(w, jar, http.StatusOK, SuccessResponse{Success: true})
}

// CheckAuth handles GET /auth/check.
func (a *API) CheckAuth(w http.ResponseWriter, r *http.Request) {
	jar := a.jar(r)
	status, err := a.auth.CheckAuth(r.Context(), jar, a.client(r))
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	respond(w, jar, http.StatusOK, CheckAuthResponse{
		Authenticated: status.Authenticated,
		Requires2FA:   status.Requires2FA,
	})
}

// Logout handles POST /auth/logout.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	jar := a.jar(r)
	res, err := a.auth.Logout(r.Context(), jar)
	if err != nil {
		a.logger.ErrorContext(r.Context(), "logout revocation failed", slog.String("error", err.Error()))
	}
	a.audit.log(AuditLogout, r)
	respond(w, jar, http.StatusOK, LogoutResponse{Success: true, RedirectTo: res.RedirectTo})
}

// RotateSession handles POST /auth/rotate.
func (a *API) RotateSession(w http.ResponseWriter, r *http.Request) {
	jar := a.jar(r)
	oldID := ""
	if rec := sessionFromContext(r.Context()); rec != nil {
		oldID = rec.ID
	}
	tokens, err := a.auth.RotateSession(r.Context(), jar, a.client(r))
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	a.audit.logEvent(AuditSessionRotated, r, tokens.Record.ID, slog.String("old_session_id", oldID))
	respond(w, jar, http.StatusOK, RotateResponse{CSRFToken: tokens.CSRF, ExpiresAt: tokens.ExpiresAt})
}
