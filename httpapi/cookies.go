package httpapi

import (
	"net/http"
	"time"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/middleware"
)

const (
	RefreshCookieName = "refresh_token"

	accessCookiePath  = "/"
	refreshCookiePath = "/auth"
)

// CookieConfig controls the Secure flag and Domain of both credential
// cookies. Secure should be on everywhere except plain-HTTP development.
type CookieConfig struct {
	Secure bool
	Domain string
}

func (s *Server) setSessionCookies(w http.ResponseWriter, res portalauth.LoginResult) {
	now := s.engine.Now()
	http.SetCookie(w, s.cookie(middleware.AccessCookieName, res.AccessToken, accessCookiePath, res.AccessExpiresAt, now))
	http.SetCookie(w, s.cookie(RefreshCookieName, res.RefreshToken, refreshCookiePath, res.RefreshExpiresAt, now))
}

func (s *Server) clearSessionCookies(w http.ResponseWriter) {
	for _, c := range []struct{ name, path string }{
		{middleware.AccessCookieName, accessCookiePath},
		{RefreshCookieName, refreshCookiePath},
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     c.name,
			Value:    "",
			Path:     c.path,
			Domain:   s.cfg.Cookies.Domain,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   s.cfg.Cookies.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (s *Server) cookie(name, value, path string, expires, now time.Time) *http.Cookie {
	maxAge := int(expires.Sub(now).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   s.cfg.Cookies.Domain,
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
