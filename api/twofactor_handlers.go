package api

import (
	"errors"
	"net/http"

	"github.com/calisound/caliauth/auth"
)

// TwoFactorStatus handles GET /auth/2fa.
func (a *API) TwoFactorStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.auth.TwoFactorStatus(r.Context())
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	respond(w, a.jar(r), http.StatusOK, TwoFactorStatusResponse{
		Enabled:   st.Enabled,
		HasSecret: st.HasSecret,
	})
}

// SetupTwoFactor handles POST /auth/2fa/setup. The secret is returned to
// the caller and stored only once confirmed.
func (a *API) SetupTwoFactor(w http.ResponseWriter, r *http.Request) {
	setup, err := a.auth.SetupTwoFactor(r.Context())
	if err != nil {
		a.mapError(w, r, err)
		return
	}
	a.audit.logEvent(AuditTwoFactorSetup, r, a.sessionID(r))
	respond(w, a.jar(r), http.StatusOK, SetupTwoFactorResponse{
		Secret:          setup.Secret,
		ProvisioningURI: setup.ProvisioningURI,
	})
}

// ConfirmTwoFactor handles POST /auth/2fa/confirm.
func (a *API) ConfirmTwoFactor(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeJSON[ConfirmTwoFactorRequest](w, r, maxAuthBodySize)
	if !ok {
		return
	}
	if req.Secret == "" || req.Code == "" {
		writeError(w, http.StatusBadRequest, "secret and code are required")
		return
	}
	jar := a.jar(r)
	if err := a.auth.ConfirmSetup(r.Context(), jar, req.Secret, req.Code, a.client(r)); err != nil {
		if errors.Is(err, auth.ErrInvalidCode) {
			a.audit.logFailure(AuditTwoFactorFailure, r, "setup confirmation code rejected")
		}
		a.mapError(w, r, err)
		return
	}
	a.audit.logEvent(AuditTwoFactorEnabled, r, a.sessionID(r))
	respond(w, jar, http.StatusOK, SuccessResponse{Success: true})
}

// DisableTwoFactor handles POST /auth/2fa/disable.
func (a *API) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.Disable(r.Context()); err != nil {
		a.mapError(w, r, err)
		return
	}
	a.audit.logEvent(AuditTwoFactorDisabled, r, a.sessionID(r))
	respond(w, a.jar(r), http.StatusOK, SuccessResponse{Success: true})
}

// ResetTwoFactor handles POST /auth/2fa/reset.
func (a *API) ResetTwoFactor(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.Reset(r.Context()); err != nil {
		a.mapError(w, r, err)
		return
	}
	a.audit.logEvent(AuditTwoFactorReset, r, a.sessionID(r))
	respond(w, a.jar(r), http.StatusOK, SuccessResponse{Success: true})
}

func (a *API) sessionID(r *http.Request) string {
	if rec := sessionFromContext(r.Context()); rec != nil {
		return rec.ID
	}
	return ""
}
