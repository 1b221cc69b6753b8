package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/platinummonkey/apim-console/pkg/auth"
	"github.com/platinummonkey/apim-console/pkg/contextkeys"
	"github.com/platinummonkey/apim-console/pkg/observability"
	"github.com/platinummonkey/apim-console/pkg/rbac"
)

const testSecret = "myJWT4Gr4v1t33_S3cr3t"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// fakeResolver hands out roles per subject and counts calls
type fakeResolver struct {
	roles map[string][]rbac.Role
	err   error
	calls atomic.Int32
}

func (f *fakeResolver) ResolveRoles(ctx context.Context, subjectID string) ([]rbac.Role, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.roles[subjectID], nil
}

// fakeEvaluator answers every question the same way and counts calls
type fakeEvaluator struct {
	allowed bool
	calls   atomic.Int32
}

func (f *fakeEvaluator) HasPermission(ctx context.Context, subjectID string, permission rbac.Permission, referenceID *string, actions ...rbac.Action) (bool, error) {
	f.calls.Add(1)
	return f.allowed, nil
}

func defaultRoles(subject string, names ...string) []rbac.Role {
	var roles []rbac.Role
	for _, n := range names {
		scope, name, _ := strings.Cut(n, ":")
		roles = append(roles, rbac.Role{Scope: rbac.RoleScope(scope), Name: name, ReferenceID: rbac.DefaultReferenceID})
	}
	return roles
}

type testEnv struct {
	resolver   *fakeResolver
	evaluator  *fakeEvaluator
	checker    *rbac.PermissionChecker
	middleware *AuthMiddleware
	metrics    *observability.Metrics
	logs       *bytes.Buffer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logs := &bytes.Buffer{}
	logger := observability.NewLogger(observability.InfoLevel, logs)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	resolver := &fakeResolver{roles: map[string][]rbac.Role{
		"u1":    defaultRoles("u1", "PORTAL:USER", "MANAGEMENT:USER"),
		"admin": defaultRoles("admin", "MANAGEMENT:ADMIN"),
	}}
	evaluator := &fakeEvaluator{}

	m := NewAuthMiddleware(
		auth.NewCredentialExtractor("", "", "", logger),
		auth.NewJWTVerifier(testSecret),
		resolver,
		auth.NewCookieGenerator("", "/", "", false),
		logger,
		metrics,
	)

	return &testEnv{
		resolver:   resolver,
		evaluator:  evaluator,
		checker:    rbac.NewPermissionChecker(evaluator, logger, metrics),
		middleware: m,
		metrics:    metrics,
		logs:       logs,
	}
}

// capture records what the downstream handler saw
type capture struct {
	called    bool
	sc        *auth.SecurityContext
	principal *auth.Principal
	userID    string
}

func (c *capture) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.called = true
		c.sc = auth.SecurityContextFrom(r.Context())
		c.principal, _ = c.sc.Current()
		c.userID = contextkeys.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_Anonymous(t *testing.T) {
	env := newTestEnv(t)

	tests := map[string]func(r *http.Request){
		"no credential":       func(r *http.Request) {},
		"basic scheme":        func(r *http.Request) { r.Header.Set("Authorization", "Basic dXNlcjpwYXNz") },
		"cookie not a bearer": func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "Auth-Graviteeio-APIM", Value: "abc"}) },
	}

	for name, setup := range tests {
		t.Run(name, func(t *testing.T) {
			c := &capture{}
			req := httptest.NewRequest("GET", "/management/user", nil)
			setup(req)
			rec := httptest.NewRecorder()

			env.middleware.Handler(c.handler()).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			require.True(t, c.called)
			require.NotNil(t, c.sc)
			assert.Nil(t, c.principal)
			assert.Empty(t, c.userID)
			assert.Empty(t, rec.Header().Get("Set-Cookie"))
		})
	}

	assert.EqualValues(t, 0, env.resolver.calls.Load())
	assert.Equal(t, 3.0, testutil.ToFloat64(env.metrics.AuthAttemptsTotal.WithLabelValues("none", "anonymous")))
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	env := newTestEnv(t)
	token := signToken(t, jwt.MapClaims{"sub": "u1", "email": "u1@example.com", "firstname": "Ada"})

	c := &capture{}
	req := httptest.NewRequest("GET", "/management/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	env.middleware.Handler(c.handler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, c.called)
	require.NotNil(t, c.principal)
	assert.Equal(t, "u1", c.principal.SubjectID())
	assert.Equal(t, "u1@example.com", c.principal.Email())
	assert.Equal(t, "Ada", c.principal.FirstName())
	assert.True(t, c.principal.Authorities().Equal(auth.NewAuthoritySet("PORTAL:USER", "MANAGEMENT:USER")))
	assert.Equal(t, "u1", c.userID)
	assert.EqualValues(t, 1, env.resolver.calls.Load())

	assert.False(t, c.sc.IsAuthenticated(), "security context must be cleared once the request ends")
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.AuthAttemptsTotal.WithLabelValues("header", "authenticated")))
}

func TestAuthMiddleware_CookieFallback(t *testing.T) {
	env := newTestEnv(t)
	token := signToken(t, jwt.MapClaims{"sub": "u1"})

	c := &capture{}
	req := httptest.NewRequest("GET", "/management/user", nil)
	req.AddCookie(&http.Cookie{Name: "Auth-Graviteeio-APIM", Value: url.QueryEscape("Bearer " + token)})
	rec := httptest.NewRecorder()

	env.middleware.Handler(c.handler()).ServeHTTP(rec, req)

	require.NotNil(t, c.principal)
	assert.Equal(t, "u1", c.principal.SubjectID())
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.AuthAttemptsTotal.WithLabelValues("cookie", "authenticated")))
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("some-other-secret"))
	require.NoError(t, err)
	expired := signToken(t, jwt.MapClaims{"sub": "u1", "exp": time.Now().Add(-time.Minute).Unix()})
	noSubject := signToken(t, jwt.MapClaims{"email": "x@example.com"})
	noAuthority := signToken(t, jwt.MapClaims{"sub": "u1", "permissions": []interface{}{map[string]string{"foo": "x"}}})
	nullPermission := signToken(t, jwt.MapClaims{"sub": "u1", "permissions": []interface{}{nil}})
	stringPermissions := signToken(t, jwt.MapClaims{"sub": "u1", "permissions": []string{"CUSTOM:X"}})

	tests := map[string]string{
		"foreign signature":            forged,
		"expired":                      expired,
		"missing subject":              noSubject,
		"garbage":                      "not-a-jwt",
		"scheme only":                  "",
		"permission without authority": noAuthority,
		"null permission":              nullPermission,
		"permissions as strings":       stringPermissions,
	}

	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			env := newTestEnv(t)
			c := &capture{}
			req := httptest.NewRequest("GET", "/management/user", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()

			env.middleware.Handler(c.handler()).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"invalid token"}`, rec.Body.String())
			assert.False(t, c.called)
			assert.EqualValues(t, 0, env.resolver.calls.Load())

			setCookie := rec.Header().Get("Set-Cookie")
			assert.Contains(t, setCookie, "Auth-Graviteeio-APIM=")
			assert.Contains(t, setCookie, "Max-Age=0")

			assert.Contains(t, env.logs.String(), "Invalid token")
			assert.NotContains(t, env.logs.String(), `"error":`, "cause is only logged at debug level")
		})
	}
}

func TestAuthMiddleware_SchemeNotLeading(t *testing.T) {
	env := newTestEnv(t)
	c := &capture{}
	req := httptest.NewRequest("GET", "/management/user", nil)
	req.Header.Set("Authorization", "xBearer "+signToken(t, jwt.MapClaims{"sub": "u1"}))
	rec := httptest.NewRecorder()

	env.middleware.Handler(c.handler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
	assert.False(t, c.called)
}

func TestAuthMiddleware_InvalidTokenDebugLogging(t *testing.T) {
	logs := &bytes.Buffer{}
	logger := observability.NewLogger(observability.DebugLevel, logs)
	m := NewAuthMiddleware(nil, auth.NewJWTVerifier(testSecret), &fakeResolver{}, nil, logger, nil)

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	m.Handler((&capture{}).handler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, logs.String(), "Invalid token")
	assert.Contains(t, logs.String(), "token is malformed")
}

func TestAuthMiddleware_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.resolver.err = rbac.ErrStoreUnavailable
	token := signToken(t, jwt.MapClaims{"sub": "u1"})

	c := &capture{}
	req := httptest.NewRequest("GET", "/management/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	env.middleware.Handler(c.handler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
	assert.False(t, c.called)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.AuthAttemptsTotal.WithLabelValues("header", "store_error")))
}

// cancelingVerifier simulates a client that disconnects while the token is verified
type cancelingVerifier struct {
	cancel context.CancelFunc
	err    error
}

func (v *cancelingVerifier) Verify(ctx context.Context, credential string) (*auth.TokenClaims, error) {
	v.cancel()
	if v.err != nil {
		return nil, v.err
	}
	return &auth.TokenClaims{Subject: "u1"}, nil
}

func TestAuthMiddleware_ClientGone(t *testing.T) {
	for name, verifyErr := range map[string]error{"verified": nil, "rejected": auth.ErrInvalidToken} {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			resolver := &fakeResolver{}
			m := NewAuthMiddleware(nil, &cancelingVerifier{cancel: cancel, err: verifyErr}, resolver, nil, nil, nil)

			c := &capture{}
			req := httptest.NewRequest("GET", "/management/user", nil).WithContext(ctx)
			req.Header.Set("Authorization", "Bearer abc")
			rec := httptest.NewRecorder()

			m.Handler(c.handler()).ServeHTTP(rec, req)

			assert.False(t, c.called)
			assert.Empty(t, rec.Body.String())
			assert.Empty(t, rec.Header().Get("Set-Cookie"))
			assert.EqualValues(t, 0, resolver.calls.Load())
		})
	}
}

func TestAuthMiddleware_Span(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(previous)

	env := newTestEnv(t)
	req := httptest.NewRequest("GET", "/management/user", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"sub": "u1"}))
	env.middleware.Handler((&capture{}).handler()).ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "auth.authenticate", spans[0].Name())

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "header", attrs["auth.origin"])
	assert.Equal(t, "authenticated", attrs["auth.outcome"])
}

// The scenarios below run the middleware and the checker together.

func TestAuthorization_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	desc := rbac.NewPermissionDescriptor(rbac.PermissionAPIDefinition, rbac.ActionRead)
	ref := "api-1"

	decide := func(header string) (bool, bool) {
		var allowed, admin bool
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sc := auth.SecurityContextFrom(r.Context())
			allowed = env.checker.HasPermission(r.Context(), sc, desc, &ref)
			admin = env.checker.IsAdmin(sc)
		})
		req := httptest.NewRequest("GET", "/management/apis/api-1", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		env.middleware.Handler(h).ServeHTTP(httptest.NewRecorder(), req)
		return allowed, admin
	}

	t.Run("anonymous never reaches the store or the evaluator", func(t *testing.T) {
		allowed, admin := decide("")
		assert.False(t, allowed)
		assert.False(t, admin)
		assert.EqualValues(t, 0, env.resolver.calls.Load())
		assert.EqualValues(t, 0, env.evaluator.calls.Load())
	})

	t.Run("admin bypasses the evaluator", func(t *testing.T) {
		allowed, admin := decide("Bearer " + signToken(t, jwt.MapClaims{"sub": "admin"}))
		assert.True(t, allowed)
		assert.True(t, admin)
		assert.EqualValues(t, 0, env.evaluator.calls.Load())
	})

	t.Run("custom authority from the token is delegated", func(t *testing.T) {
		var authorities auth.AuthoritySet
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := auth.PrincipalFrom(r.Context())
			authorities = p.Authorities()
		})
		req := httptest.NewRequest("GET", "/", nil)
		token := signToken(t, jwt.MapClaims{
			"sub":         "u2",
			"permissions": []map[string]string{{"authority": "CUSTOM:X"}},
		})
		req.Header.Set("Authorization", "Bearer "+token)
		env.middleware.Handler(h).ServeHTTP(httptest.NewRecorder(), req)
		assert.True(t, authorities.Equal(auth.NewAuthoritySet("CUSTOM:X")))

		allowed, admin := decide("Bearer " + token)
		assert.False(t, allowed)
		assert.False(t, admin)
		assert.EqualValues(t, 1, env.evaluator.calls.Load())
	})

	t.Run("regular user is delegated", func(t *testing.T) {
		env.evaluator.allowed = true
		allowed, admin := decide("Bearer " + signToken(t, jwt.MapClaims{"sub": "u1"}))
		assert.True(t, allowed)
		assert.False(t, admin)
		assert.EqualValues(t, 2, env.evaluator.calls.Load())
	})
}

func TestAuthMiddleware_RequestsAreIsolated(t *testing.T) {
	env := newTestEnv(t)
	handler := env.middleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.PrincipalFrom(r.Context())
		if !ok {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(p.SubjectID()))
	}))

	tokens := map[string]string{
		"u1":    "Bearer " + signToken(t, jwt.MapClaims{"sub": "u1"}),
		"admin": "Bearer " + signToken(t, jwt.MapClaims{"sub": "admin"}),
		"":      "",
	}

	var wg sync.WaitGroup
	errs := make(chan error, 60)
	for i := 0; i < 20; i++ {
		for subject, header := range tokens {
			wg.Add(1)
			go func(subject, header string) {
				defer wg.Done()
				req := httptest.NewRequest("GET", "/", nil)
				if header != "" {
					req.Header.Set("Authorization", header)
				}
				rec := httptest.NewRecorder()
				handler.ServeHTTP(rec, req)

				want := subject
				if want == "" {
					want = "anonymous"
				}
				if rec.Body.String() != want {
					errs <- errors.New("got " + rec.Body.String() + " want " + want)
				}
			}(subject, header)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
