package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/calisound/caliauth/internal/util"
)

// twoFactorMarker records that the second factor was presented for one
// specific session.
type twoFactorMarker struct {
	SessionID string `json:"sid"`
}

// MarkTwoFactorVerified binds a 2FA-verified marker to sessionID. The cookie
// has no expiry of its own; the browser drops it with the session and the
// codec rejects it after the absolute session lifetime.
func (m *Manager) MarkTwoFactorVerified(jar *Jar, sessionID string) error {
	if sessionID == "" {
		return errors.New("session: empty session id")
	}
	value, err := m.markerCodec.Encode(VerifiedCookie, twoFactorMarker{SessionID: sessionID})
	if err != nil {
		return fmt.Errorf("encoding 2fa marker: %w", err)
	}
	jar.set(&http.Cookie{
		Name:     VerifiedCookie,
		Value:    value,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// TwoFactorVerified reports whether jar carries a marker bound to sessionID.
func (m *Manager) TwoFactorVerified(jar *Jar, sessionID string) bool {
	value := jar.Get(VerifiedCookie)
	if value == "" || sessionID == "" {
		return false
	}
	var mk twoFactorMarker
	if err := m.markerCodec.Decode(VerifiedCookie, value, &mk); err != nil {
		return false
	}
	return util.ConstantTimeEqualString(mk.SessionID, sessionID)
}

// ClearTwoFactorVerified removes the marker cookie.
func (m *Manager) ClearTwoFactorVerified(jar *Jar) {
	jar.clear(VerifiedCookie, true, http.SameSiteLaxMode)
}
