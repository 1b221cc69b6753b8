package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/apim-console/pkg/observability"
)

// ErrStoreUnavailable wraps any membership store failure during role resolution
var ErrStoreUnavailable = errors.New("membership store unavailable")

// Resolver returns the roles a subject holds
type Resolver interface {
	ResolveRoles(ctx context.Context, subjectID string) ([]Role, error)
}

// RoleInvalidator is implemented by resolvers that cache roles per subject
type RoleInvalidator interface {
	Invalidate(ctx context.Context, subjectID string) error
}

// InvalidateRoles drops any roles r cached for subjectID. It must be called
// after a membership of subjectID changes. Resolvers without a cache are a no-op.
func InvalidateRoles(ctx context.Context, r Resolver, subjectID string) error {
	if inv, ok := r.(RoleInvalidator); ok {
		return inv.Invalidate(ctx, subjectID)
	}
	return nil
}

// RoleResolver resolves the roles held on the default portal and management
// references.
type RoleResolver struct {
	store   MembershipStore
	metrics *observability.Metrics
}

// NewRoleResolver creates a resolver over the membership store. metrics may be nil.
func NewRoleResolver(store MembershipStore, metrics *observability.Metrics) *RoleResolver {
	return &RoleResolver{store: store, metrics: metrics}
}

// ResolveRoles queries the PORTAL and MANAGEMENT scopes concurrently and
// merges the result. The first failure cancels the other query.
func (r *RoleResolver) ResolveRoles(ctx context.Context, subjectID string) ([]Role, error) {
	start := time.Now()
	defer func() { r.metrics.ObserveRoleResolution(time.Since(start)) }()

	var portal, management []Role
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		roles, err := r.store.FindRoles(gctx, ReferencePortal, []string{DefaultReferenceID}, subjectID, ScopePortal)
		if err != nil {
			return fmt.Errorf("portal roles: %w", err)
		}
		portal = roles
		return nil
	})
	g.Go(func() error {
		roles, err := r.store.FindRoles(gctx, ReferenceManagement, []string{DefaultReferenceID}, subjectID, ScopeManagement)
		if err != nil {
			return fmt.Errorf("management roles: %w", err)
		}
		management = roles
		return nil
	})

	if err := g.Wait(); err != nil {
		r.metrics.RecordStoreError("find_roles")
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	roles := make([]Role, 0, len(portal)+len(management))
	roles = append(roles, portal...)
	roles = append(roles, management...)
	return dedupeRoles(roles), nil
}
