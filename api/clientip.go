package api

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// extractClientIP returns the client address for r using the API's
// configured trusted proxies.
func (a *API) extractClientIP(r *http.Request) string {
	return extractClientIPWithProxies(r, a.trustedProxies)
}

// extractClientIPWithProxies returns the address recorded in the session for
// r. Forwarding headers are read only when RemoteAddr is inside one of
// trustedProxies; otherwise a client could choose its own address. The first
// header yielding a valid address wins, in the order of proxyHeaders.
func extractClientIPWithProxies(r *http.Request, trustedProxies []netip.Prefix) string {
	remote, ok := parseIPCandidate(r.RemoteAddr)
	if !ok {
		return ""
	}
	if !fromTrustedProxy(remote, trustedProxies) {
		return remote
	}
	for _, h := range proxyHeaders {
		if ip, ok := h(r.Header); ok {
			return ip
		}
	}
	return remote
}

func fromTrustedProxy(ip string, trustedProxies []netip.Prefix) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	for _, prefix := range trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

var proxyHeaders = []func(http.Header) (string, bool){
	xForwardedFor,
	forwardedFor,
	xRealIP,
}

// xForwardedFor returns the left-most valid X-Forwarded-For entry.
func xForwardedFor(h http.Header) (string, bool) {
	for _, part := range strings.Split(h.Get("X-Forwarded-For"), ",") {
		if ip, ok := parseIPCandidate(part); ok {
			return ip, true
		}
	}
	return "", false
}

// forwardedFor returns the first valid for= parameter of an RFC 7239
// Forwarded header.
func forwardedFor(h http.Header) (string, bool) {
	for _, elem := range strings.Split(h.Get("Forwarded"), ",") {
		for _, param := range strings.Split(elem, ";") {
			name, value, found := strings.Cut(strings.TrimSpace(param), "=")
			if !found || !strings.EqualFold(name, "for") {
				continue
			}
			if ip, ok := parseIPCandidate(value); ok {
				return ip, true
			}
		}
	}
	return "", false
}

func xRealIP(h http.Header) (string, bool) {
	return parseIPCandidate(h.Get("X-Real-IP"))
}

// ParseTrustedProxies parses a comma separated list of CIDRs or bare
// addresses.
func ParseTrustedProxies(list string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, raw := range strings.Split(list, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			p, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func parseIPCandidate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"")
	if s == "" {
		return "", false
	}

	// RFC 7239 quoted IPv6 may appear as [::1]:1234.
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}

	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	// Drop zone if any (e.g. fe80::1%eth0).
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}

	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.Unmap().String(), true
	}
	return "", false
}
