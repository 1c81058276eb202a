package api

import "time"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse acknowledges an operation with no other result.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// LoginRequest is the JSON body for POST /auth/login.
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse is returned from POST /auth/login and POST /auth/2fa/verify.
type LoginResponse struct {
	Success     bool   `json:"success"`
	Requires2FA bool   `json:"requires_2fa"`
	CSRFToken   string `json:"csrf_token,omitempty"`
}

// VerifyTwoFactorRequest is the JSON body for POST /auth/2fa/verify.
type VerifyTwoFactorRequest struct {
	Code string `json:"code"`
}

// CheckAuthResponse is returned from GET /auth/check.
type CheckAuthResponse struct {
	Authenticated bool `json:"authenticated"`
	Requires2FA   bool `json:"requires_2fa"`
}

// LogoutResponse is returned from POST /auth/logout.
type LogoutResponse struct {
	Success    bool   `json:"success"`
	RedirectTo string `json:"redirect_to"`
}

// RotateResponse is returned from POST /auth/rotate.
type RotateResponse struct {
	CSRFToken string    `json:"csrf_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TwoFactorStatusResponse is returned from GET /auth/2fa.
type TwoFactorStatusResponse struct {
	Enabled   bool `json:"enabled"`
	HasSecret bool `json:"has_secret"`
}

// SetupTwoFactorResponse is returned from POST /auth/2fa/setup.
type SetupTwoFactorResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURI string `json:"provisioning_uri"`
}

// ConfirmTwoFactorRequest is the JSON body for POST /auth/2fa/confirm.
type ConfirmTwoFactorRequest struct {
	Secret string `json:"secret"`
	Code   string `json:"code"`
}
