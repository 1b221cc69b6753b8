package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for any signature, decoding or expiry failure
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingSubject is returned when a well-signed token has no subject
	ErrMissingSubject = errors.New("token has no subject")
	// ErrMalformedPermission is returned when a permissions entry carries no authority
	ErrMalformedPermission = errors.New("permission claim has no authority")
)

// Claim names carried by console tokens
const (
	ClaimSubject     = "sub"
	ClaimEmail       = "email"
	ClaimFirstName   = "firstname"
	ClaimLastName    = "lastname"
	ClaimPermissions = "permissions"
)

// TokenVerifier validates a credential string and decodes its claims.
// It is only called when the extractor found a candidate credential.
type TokenVerifier interface {
	Verify(ctx context.Context, credential string) (*TokenClaims, error)
}

// consoleClaims is the wire shape of a console token
type consoleClaims struct {
	Email       string            `json:"email"`
	FirstName   string            `json:"firstname"`
	LastName    string            `json:"lastname"`
	Permissions []PermissionClaim `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

func (c *consoleClaims) toTokenClaims() *TokenClaims {
	claims := &TokenClaims{
		Subject:     c.Subject,
		Email:       c.Email,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Permissions: c.Permissions,
	}
	if c.ExpiresAt != nil {
		claims.ExpiresAt = c.ExpiresAt.Time
	}
	return claims
}

// JWTVerifier verifies HMAC-signed console tokens
type JWTVerifier struct {
	secret []byte
	scheme string
	issuer string
	leeway time.Duration
	now    func() time.Time
}

// JWTVerifierOption configures a JWTVerifier
type JWTVerifierOption func(*JWTVerifier)

// WithIssuer requires the "iss" claim to match
func WithIssuer(issuer string) JWTVerifierOption {
	return func(v *JWTVerifier) { v.issuer = issuer }
}

// WithLeeway tolerates clock skew on time based claims
func WithLeeway(leeway time.Duration) JWTVerifierOption {
	return func(v *JWTVerifier) { v.leeway = leeway }
}

// WithClock overrides the time source, mostly for tests
func WithClock(now func() time.Time) JWTVerifierOption {
	return func(v *JWTVerifier) { v.now = now }
}

// WithScheme overrides the authorization scheme stripped before parsing
func WithScheme(scheme string) JWTVerifierOption {
	return func(v *JWTVerifier) { v.scheme = scheme }
}

// NewJWTVerifier creates a verifier for tokens signed with secret
func NewJWTVerifier(secret string, opts ...JWTVerifierOption) *JWTVerifier {
	v := &JWTVerifier{
		secret: []byte(secret),
		scheme: DefaultScheme,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify strips the scheme, checks signature and expiry, and decodes the claims
func (v *JWTVerifier) Verify(ctx context.Context, credential string) (*TokenClaims, error) {
	raw := StripScheme(credential, v.scheme)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{
			jwt.SigningMethodHS256.Alg(),
			jwt.SigningMethodHS384.Alg(),
			jwt.SigningMethodHS512.Alg(),
		}),
		jwt.WithTimeFunc(v.now),
	}
	if v.leeway > 0 {
		parserOpts = append(parserOpts, jwt.WithLeeway(v.leeway))
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	var claims consoleClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrMissingSubject)
	}
	if err := checkPermissionClaims(claims.Permissions); err != nil {
		return nil, err
	}

	return claims.toTokenClaims(), nil
}

// checkPermissionClaims rejects entries that decoded without an authority,
// including null entries.
func checkPermissionClaims(permissions []PermissionClaim) error {
	for i, p := range permissions {
		if p.Authority == "" {
			return fmt.Errorf("%w: %w at index %d", ErrInvalidToken, ErrMalformedPermission, i)
		}
	}
	return nil
}
