package session

import (
	"net/http"
	"time"
)

// Cookie names.
const (
	SessionCookie  = "admin_session"
	CSRFCookie     = "admin_csrf"
	PendingCookie  = "admin_2fa_pending"
	VerifiedCookie = "admin_2fa_verified"
)

// Jar carries the cookies of one request into the auth core and collects the
// cookies it wants written back. The core never touches http.Request or
// http.ResponseWriter directly; the transport builds a Jar from the request
// and writes Cookies() to the response.
//
// Reads observe writes made earlier through the same Jar, so a login that
// issues a session followed by a check in the same request sees the new
// session.
type Jar struct {
	in     map[string]string
	out    []*http.Cookie
	secure bool
}

// NewJar returns a Jar over the given inbound cookie values. secure sets the
// Secure attribute on every outbound cookie.
func NewJar(in map[string]string, secure bool) *Jar {
	values := make(map[string]string, len(in))
	for k, v := range in {
		values[k] = v
	}
	return &Jar{in: values, secure: secure}
}

// JarFromRequest collects the cookies of r. When a name repeats, the first
// value wins, matching http.Request.Cookie.
func JarFromRequest(r *http.Request, secure bool) *Jar {
	values := make(map[string]string)
	for _, c := range r.Cookies() {
		if _, ok := values[c.Name]; !ok {
			values[c.Name] = c.Value
		}
	}
	return &Jar{in: values, secure: secure}
}

// Get returns the current value of the named cookie, or "".
func (j *Jar) Get(name string) string {
	return j.in[name]
}

// Cookies returns the outbound cookies in the order they were last set.
func (j *Jar) Cookies() []*http.Cookie {
	out := make([]*http.Cookie, len(j.out))
	copy(out, j.out)
	return out
}

// Write sets every outbound cookie on w.
func (j *Jar) Write(w http.ResponseWriter) {
	for _, c := range j.out {
		http.SetCookie(w, c)
	}
}

func (j *Jar) set(c *http.Cookie) {
	c.Path = "/"
	c.Secure = j.secure
	for i, existing := range j.out {
		if existing.Name == c.Name {
			j.out = append(j.out[:i], j.out[i+1:]...)
			break
		}
	}
	j.out = append(j.out, c)
	if c.MaxAge < 0 {
		delete(j.in, c.Name)
	} else {
		j.in[c.Name] = c.Value
	}
}

func (j *Jar) clear(name string, httpOnly bool, sameSite http.SameSite) {
	j.set(&http.Cookie{
		Name:     name,
		Value:    "",
		HttpOnly: httpOnly,
		SameSite: sameSite,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}
