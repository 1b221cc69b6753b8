// Package auth turns a request credential into an authenticated principal.
//
// # Overview
//
// This package covers the identity half of the console security pipeline: finding a bearer
// credential on the request, verifying the token, and holding the resulting principal for the
// lifetime of one request. Role resolution and authorization decisions live in pkg/rbac.
//
// # Key Components
//
// CredentialExtractor: header first, percent-decoded cookie as fallback
//
//	extractor := auth.NewCredentialExtractor("", "", "", logger)
//	cred, ok := extractor.Extract(r)
//	// ok == false means anonymous: nothing supplied or no "Bearer" scheme
//
// TokenVerifier: HMAC tokens (JWTVerifier) or an external OpenID provider (OIDCVerifier)
//
//	verifier := auth.NewJWTVerifier(secret, auth.WithLeeway(30*time.Second))
//	claims, err := verifier.Verify(ctx, cred.Value)
//	if errors.Is(err, auth.ErrInvalidToken) {
//		// 401 and clear the cookie
//	}
//
// Token claims:
//
//	sub          - subject id (required)
//	email        - optional
//	firstname    - optional
//	lastname     - optional
//	permissions  - [{"authority": "CUSTOM:X"}, ...]
//
// SecurityContext: per-request principal holder, threaded through context.Context
//
//	sc := auth.SecurityContextFrom(r.Context())
//	if p, ok := sc.Current(); ok {
//		fmt.Println(p.SubjectID(), p.Authorities().Sorted())
//	}
//
// CookieGenerator: clears the credential cookie
//
//	http.SetCookie(w, cookies.Clear())
//
// # Related Packages
//
//   - pkg/rbac: Role resolution, authority building, permission checks
//   - pkg/middleware: Per-request orchestration of this package
//   - pkg/contextkeys: Context key for the SecurityContext
package auth
