package rbac

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/apim-console/pkg/observability"
)

// DefaultRoleCacheSize bounds the in-process role cache when no size is configured
const DefaultRoleCacheSize = 10000

// CachingResolver memoizes resolved roles per subject in an expiring LRU.
// Failed resolutions are never stored.
type CachingResolver struct {
	next    Resolver
	cache   *lru.LRU[string, []Role]
	metrics *observability.Metrics
}

// NewCachingResolver wraps next with an in-process cache. A zero or negative
// ttl disables caching and next is returned as is.
func NewCachingResolver(next Resolver, size int, ttl time.Duration, metrics *observability.Metrics) Resolver {
	if ttl <= 0 {
		return next
	}
	if size <= 0 {
		size = DefaultRoleCacheSize
	}
	return &CachingResolver{
		next:    next,
		cache:   lru.NewLRU[string, []Role](size, nil, ttl),
		metrics: metrics,
	}
}

// ResolveRoles returns cached roles or resolves and stores them
func (c *CachingResolver) ResolveRoles(ctx context.Context, subjectID string) ([]Role, error) {
	if roles, ok := c.cache.Get(subjectID); ok {
		c.metrics.RecordCacheHit("lru")
		return cloneRoles(roles), nil
	}
	c.metrics.RecordCacheMiss("lru")

	roles, err := c.next.ResolveRoles(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	c.cache.Add(subjectID, cloneRoles(roles))
	return roles, nil
}

// Invalidate drops the cached roles of one subject
func (c *CachingResolver) Invalidate(ctx context.Context, subjectID string) error {
	c.cache.Remove(subjectID)
	return nil
}

func cloneRoles(roles []Role) []Role {
	if roles == nil {
		return nil
	}
	out := make([]Role, len(roles))
	copy(out, roles)
	return out
}
