package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/apim-console/pkg/auth"
	"github.com/platinummonkey/apim-console/pkg/contextkeys"
	"github.com/platinummonkey/apim-console/pkg/httputil"
	"github.com/platinummonkey/apim-console/pkg/observability"
	"github.com/platinummonkey/apim-console/pkg/rbac"
)

const tracerName = "github.com/platinummonkey/apim-console/pkg/middleware"

// errAborted marks a request whose client went away mid pipeline
var errAborted = errors.New("request aborted")

// AuthMiddleware authenticates every request that carries a credential and
// publishes the principal on a per-request security context.
type AuthMiddleware struct {
	extractor *auth.CredentialExtractor
	verifier  auth.TokenVerifier
	resolver  rbac.Resolver
	cookies   *auth.CookieGenerator
	logger    *observability.Logger
	metrics   *observability.Metrics
	tracer    trace.Tracer
}

// NewAuthMiddleware creates a new authentication middleware. cookies, logger
// and metrics may be nil.
func NewAuthMiddleware(extractor *auth.CredentialExtractor, verifier auth.TokenVerifier, resolver rbac.Resolver, cookies *auth.CookieGenerator, logger *observability.Logger, metrics *observability.Metrics) *AuthMiddleware {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	if extractor == nil {
		extractor = auth.NewCredentialExtractor("", "", "", logger)
	}
	if cookies == nil {
		cookies = auth.NewCookieGenerator(extractor.CookieName, "", "", false)
	}
	return &AuthMiddleware{
		extractor: extractor,
		verifier:  verifier,
		resolver:  resolver,
		cookies:   cookies,
		logger:    logger,
		metrics:   metrics,
		tracer:    otel.Tracer(tracerName),
	}
}

// Handler wraps an HTTP handler with authentication. Requests without a
// usable credential continue anonymously; requests with a bad one get a 401
// and a cookie that clears the stored credential.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sc := auth.NewSecurityContext()
		defer sc.Clear()
		ctx := auth.WithSecurityContext(r.Context(), sc)

		cred, ok := m.extractor.Extract(r)
		if !ok {
			m.metrics.RecordAuthAttempt("", observability.OutcomeAnonymous)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		principal, err := m.authenticate(ctx, cred)
		switch {
		case errors.Is(err, errAborted):
			return
		case err != nil:
			log := observability.UpdateLoggerWithTraceContext(ctx, m.logger)
			if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
				log = log.WithField("request_id", requestID)
			}
			if log.IsDebugEnabled() {
				log = log.WithError(err)
			}
			log.Error("Invalid token")

			http.SetCookie(w, m.cookies.Clear())
			httputil.WriteUnauthorized(w, "invalid token")
			return
		}

		if err := sc.Set(principal); err != nil {
			m.logger.WithError(err).Error("Failed to publish principal")
			httputil.WriteErrorMessage(w, http.StatusInternalServerError, "internal error")
			return
		}

		ctx = contextkeys.WithUserID(ctx, principal.SubjectID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticate runs verify, resolve and build in order inside one span
func (m *AuthMiddleware) authenticate(ctx context.Context, cred auth.Credential) (p *auth.Principal, err error) {
	ctx, span := m.tracer.Start(ctx, "auth.authenticate",
		trace.WithAttributes(attribute.String("auth.origin", string(cred.Origin))))
	outcome := observability.OutcomeAuthenticated
	defer func() {
		span.SetAttributes(attribute.String("auth.outcome", outcome))
		if err != nil && !errors.Is(err, errAborted) {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		m.metrics.RecordAuthAttempt(string(cred.Origin), outcome)
	}()

	claims, err := m.verifier.Verify(ctx, cred.Value)
	if ctx.Err() != nil {
		outcome = observability.OutcomeCanceled
		return nil, errAborted
	}
	if err != nil {
		outcome = observability.OutcomeInvalidToken
		return nil, err
	}

	roles, err := m.resolver.ResolveRoles(ctx, claims.Subject)
	if ctx.Err() != nil {
		outcome = observability.OutcomeCanceled
		return nil, errAborted
	}
	if err != nil {
		outcome = observability.OutcomeStoreError
		return nil, fmt.Errorf("failed to resolve roles of %s: %w", claims.Subject, err)
	}

	span.SetAttributes(attribute.Int("auth.roles", len(roles)))
	return auth.NewPrincipal(*claims, rbac.BuildAuthorities(*claims, roles)), nil
}
