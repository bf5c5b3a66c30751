package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ProxyTrust resolves the client address of a request. X-Forwarded-For and
// X-Real-IP are read only when the connection itself comes from one of the
// trusted networks; otherwise a client could pick its own limiter key.
type ProxyTrust struct {
	nets []*net.IPNet
}

// NewProxyTrust parses cidrs. An empty list trusts no proxy, so every
// request is keyed on its connection address.
func NewProxyTrust(cidrs []string) (*ProxyTrust, error) {
	p := &ProxyTrust{nets: make([]*net.IPNet, 0, len(cidrs))}
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			return nil, fmt.Errorf("middleware: trusted proxy %q: %w", c, err)
		}
		p.nets = append(p.nets, n)
	}
	return p, nil
}

func (p *ProxyTrust) trusted(ip net.IP) bool {
	if p == nil || ip == nil {
		return false
	}
	for _, n := range p.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the connection address unless the peer is a trusted
// proxy. Behind a trusted proxy X-Forwarded-For is walked right to left and
// the first hop outside the trusted networks wins; X-Real-IP is used when
// there is no X-Forwarded-For.
func (p *ProxyTrust) ClientIP(r *http.Request) string {
	conn := remoteHost(r.RemoteAddr)
	if !p.trusted(net.ParseIP(conn)) {
		return conn
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		client := conn
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			ip := net.ParseIP(hop)
			if ip == nil {
				// Anything left of a malformed entry was written by the client.
				break
			}
			client = hop
			if !p.trusted(ip) {
				break
			}
		}
		return client
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(xri) != nil {
		return xri
	}
	return conn
}

// ClientIP keys on the connection address and ignores forwarded headers.
func ClientIP(r *http.Request) string {
	return remoteHost(r.RemoteAddr)
}

func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
