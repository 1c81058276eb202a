package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Pending is a login that passed the password check and awaits its second
// factor.
type Pending struct {
	UserID    string    `json:"userId"`
	IPAddress string    `json:"ipAddress"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"createdAt"`
}

// IssuePending writes a pending-login cookie for userID.
func (m *Manager) IssuePending(jar *Jar, userID string, client Client) (Pending, error) {
	if userID == "" {
		return Pending{}, errors.New("session: empty user id")
	}
	p := Pending{
		UserID:    userID,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		CreatedAt: m.now().UTC(),
	}
	value, err := m.pendingCodec.Encode(PendingCookie, p)
	if err != nil {
		return Pending{}, fmt.Errorf("encoding pending login: %w", err)
	}
	jar.set(&http.Cookie{
		Name:     PendingCookie,
		Value:    value,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  p.CreatedAt.Add(m.pendingTTL),
		MaxAge:   int(m.pendingTTL / time.Second),
	})
	return p, nil
}

// Pending returns the live pending login in jar, if any.
func (m *Manager) Pending(jar *Jar) (Pending, bool) {
	value := jar.Get(PendingCookie)
	if value == "" {
		return Pending{}, false
	}
	var p Pending
	if err := m.pendingCodec.Decode(PendingCookie, value, &p); err != nil {
		return Pending{}, false
	}
	if p.UserID == "" || p.CreatedAt.IsZero() {
		return Pending{}, false
	}
	if m.now().Sub(p.CreatedAt) > m.pendingTTL {
		return Pending{}, false
	}
	return p, true
}

// ClearPending removes the pending-login cookie.
func (m *Manager) ClearPending(jar *Jar) {
	jar.clear(PendingCookie, true, http.SameSiteStrictMode)
}
