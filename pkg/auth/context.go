package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/platinummonkey/apim-console/pkg/contextkeys"
)

// ErrAlreadyAuthenticated is returned when a principal is published twice for one request
var ErrAlreadyAuthenticated = errors.New("security context already holds a principal")

// SecurityContext holds the principal of exactly one request. The auth
// middleware creates one per request, publishes the principal at most once,
// and clears it when the request ends.
type SecurityContext struct {
	mu        sync.RWMutex
	principal *Principal
}

// NewSecurityContext creates an empty, unauthenticated context
func NewSecurityContext() *SecurityContext {
	return &SecurityContext{}
}

// Set publishes the principal
func (sc *SecurityContext) Set(p *Principal) error {
	if p == nil {
		return errors.New("principal is required")
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.principal != nil {
		return ErrAlreadyAuthenticated
	}
	sc.principal = p
	return nil
}

// Current returns the published principal, if any
func (sc *SecurityContext) Current() (*Principal, bool) {
	if sc == nil {
		return nil, false
	}
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.principal, sc.principal != nil
}

// IsAuthenticated reports whether a principal was published
func (sc *SecurityContext) IsAuthenticated() bool {
	_, ok := sc.Current()
	return ok
}

// Clear drops the principal
func (sc *SecurityContext) Clear() {
	if sc == nil {
		return
	}
	sc.mu.Lock()
	sc.principal = nil
	sc.mu.Unlock()
}

// WithSecurityContext attaches the request security context
func WithSecurityContext(ctx context.Context, sc *SecurityContext) context.Context {
	return contextkeys.WithAuth(ctx, sc)
}

// SecurityContextFrom returns the request security context. Requests that
// never went through the auth middleware get an empty one.
func SecurityContextFrom(ctx context.Context) *SecurityContext {
	if sc, ok := ctx.Value(contextkeys.AuthKey).(*SecurityContext); ok && sc != nil {
		return sc
	}
	return NewSecurityContext()
}

// PrincipalFrom returns the current principal of the request
func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	return SecurityContextFrom(ctx).Current()
}
