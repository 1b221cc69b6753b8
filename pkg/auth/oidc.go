package auth

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCVerifier verifies tokens issued by an external OpenID Connect provider
// and maps them onto the console claim set.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
	scheme   string
}

// NewOIDCVerifier discovers the provider at issuerURL and verifies tokens against its key set
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	return NewOIDCVerifierFrom(provider.Verifier(&oidc.Config{
		ClientID:          clientID,
		SkipClientIDCheck: clientID == "",
	})), nil
}

// NewOIDCVerifierFrom wraps an already configured ID token verifier
func NewOIDCVerifierFrom(verifier *oidc.IDTokenVerifier) *OIDCVerifier {
	return &OIDCVerifier{verifier: verifier, scheme: DefaultScheme}
}

// SetScheme overrides the authorization scheme stripped before verification
func (v *OIDCVerifier) SetScheme(scheme string) {
	if scheme != "" {
		v.scheme = scheme
	}
}

// Verify checks the token against the provider keys and decodes its claims
func (v *OIDCVerifier) Verify(ctx context.Context, credential string) (*TokenClaims, error) {
	raw := StripScheme(credential, v.scheme)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var payload struct {
		Email       string            `json:"email"`
		FirstName   string            `json:"firstname"`
		LastName    string            `json:"lastname"`
		Permissions []PermissionClaim `json:"permissions"`
	}
	if err := idToken.Claims(&payload); err != nil {
		return nil, fmt.Errorf("%w: failed to parse claims: %v", ErrInvalidToken, err)
	}

	if idToken.Subject == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrMissingSubject)
	}
	if err := checkPermissionClaims(payload.Permissions); err != nil {
		return nil, err
	}

	return &TokenClaims{
		Subject:     idToken.Subject,
		Email:       payload.Email,
		FirstName:   payload.FirstName,
		LastName:    payload.LastName,
		ExpiresAt:   idToken.Expiry,
		Permissions: payload.Permissions,
	}, nil
}
