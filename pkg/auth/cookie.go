package auth

import (
	"net/http"
	"time"
)

// CookieGenerator builds the cookie that drops the console credential from a browser
type CookieGenerator struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
}

// NewCookieGenerator creates a generator with console defaults
func NewCookieGenerator(name, path, domain string, secure bool) *CookieGenerator {
	if name == "" {
		name = DefaultCookieName
	}
	if path == "" {
		path = "/"
	}
	return &CookieGenerator{
		Name:     name,
		Path:     path,
		Domain:   domain,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Clear returns a cookie instructing the browser to drop the credential
func (g *CookieGenerator) Clear() *http.Cookie {
	return &http.Cookie{
		Name:     g.Name,
		Value:    "",
		Path:     g.Path,
		Domain:   g.Domain,
		Secure:   g.Secure,
		HttpOnly: true,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		SameSite: g.SameSite,
	}
}
