package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/platinummonkey/apim-console/pkg/observability"
)

const (
	// DefaultHeaderName carries "<scheme> <token>"
	DefaultHeaderName = "Authorization"
	// DefaultCookieName carries a percent-encoded "<scheme> <token>"
	DefaultCookieName = "Auth-Graviteeio-APIM"
	// DefaultScheme is the expected authorization scheme token
	DefaultScheme = "Bearer"
)

// CredentialExtractor pulls a bearer credential out of a request
type CredentialExtractor struct {
	HeaderName string
	CookieName string
	Scheme     string
	logger     *observability.Logger
}

// NewCredentialExtractor creates an extractor; empty names fall back to the defaults
func NewCredentialExtractor(headerName, cookieName, scheme string, logger *observability.Logger) *CredentialExtractor {
	if headerName == "" {
		headerName = DefaultHeaderName
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	if scheme == "" {
		scheme = DefaultScheme
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &CredentialExtractor{
		HeaderName: headerName,
		CookieName: cookieName,
		Scheme:     scheme,
		logger:     logger,
	}
}

// Extract returns the request credential. A false result means the request is
// anonymous: nothing was supplied, the cookie could not be decoded, or the
// value does not carry the expected scheme.
func (e *CredentialExtractor) Extract(r *http.Request) (Credential, bool) {
	cred := Credential{Value: r.Header.Get(e.HeaderName), Origin: OriginHeader}

	if cred.Value == "" {
		cookie, err := r.Cookie(e.CookieName)
		if err == nil && cookie.Value != "" {
			decoded, err := url.QueryUnescape(cookie.Value)
			if err != nil {
				e.logger.WithError(err).Debug("Authorization cookie could not be decoded")
				return Credential{}, false
			}
			cred = Credential{Value: decoded, Origin: OriginCookie}
		}
	}

	if cred.Value == "" {
		e.logger.Debug("Authorization header/cookie not found")
		return Credential{}, false
	}

	if !strings.Contains(cred.Value, e.Scheme) {
		e.logger.Debug("Authorization schema not found")
		return Credential{}, false
	}

	return cred, true
}

// StripScheme removes a leading scheme and trims the rest. A value that does
// not start with the scheme is only trimmed, so it fails verification.
func StripScheme(raw, scheme string) string {
	if rest, ok := strings.CutPrefix(raw, scheme); ok {
		return strings.TrimSpace(rest)
	}
	return strings.TrimSpace(raw)
}
