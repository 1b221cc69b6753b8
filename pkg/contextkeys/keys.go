// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the console must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/apim-console/pkg/contextkeys"
//	ctx = contextkeys.WithAuth(ctx, securityCtx)
//	securityCtx, _ := ctx.Value(contextkeys.AuthKey).(*auth.SecurityContext)
//
// Prefer the typed helpers in pkg/auth (auth.SecurityContextFrom, auth.PrincipalFrom)
// over reading AuthKey directly.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.SecurityContext
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go), on every request
	// Required by: rbac.PermissionChecker, api.Resource, permission middleware
	// Type: *auth.SecurityContext
	AuthKey Key = "security_context"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, distributed tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated subject id
	// Set by: Auth middleware after the principal is published
	// Used by: Logger
	// Type: string
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.LoggingMiddleware
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// WithAuth adds the request security context to the context
func WithAuth(ctx context.Context, securityCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, securityCtx)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
