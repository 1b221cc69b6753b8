package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/platinummonkey/apim-console/pkg/observability"
)

// RedisKeyPrefix namespaces cached role lists
const RedisKeyPrefix = "apim:roles:"

// RedisRoleCache shares resolved roles between console instances. Redis
// failures are logged and fall through to the wrapped resolver.
type RedisRoleCache struct {
	next    Resolver
	client  redis.UniversalClient
	ttl     time.Duration
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewRedisRoleCache wraps next with a Redis backed cache
func NewRedisRoleCache(next Resolver, client redis.UniversalClient, ttl time.Duration, logger *observability.Logger, metrics *observability.Metrics) *RedisRoleCache {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &RedisRoleCache{
		next:    next,
		client:  client,
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
	}
}

// NewRedisClient parses a redis:// URL and applies the optional overrides
func NewRedisClient(redisURL, password string, db int) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	if db >= 0 {
		opts.DB = db
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	return redis.NewClient(opts), nil
}

func redisRoleKey(subjectID string) string {
	return RedisKeyPrefix + subjectID
}

// ResolveRoles returns the shared cached roles or resolves and publishes them
func (c *RedisRoleCache) ResolveRoles(ctx context.Context, subjectID string) ([]Role, error) {
	key := redisRoleKey(subjectID)
	log := c.logger.WithField("subject", subjectID)

	data, err := c.client.Get(ctx, key).Result()
	switch {
	case err == redis.Nil:
		c.metrics.RecordCacheMiss("redis")
	case err != nil:
		c.metrics.RecordCacheMiss("redis")
		log.WithError(err).Warn("Role cache read failed")
	default:
		var roles []Role
		if err := json.Unmarshal([]byte(data), &roles); err == nil {
			c.metrics.RecordCacheHit("redis")
			return roles, nil
		}
		c.metrics.RecordCacheMiss("redis")
		log.Warn("Dropping corrupt role cache entry")
		c.client.Del(ctx, key)
	}

	roles, err := c.next.ResolveRoles(ctx, subjectID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(roles); err == nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			log.WithError(err).Warn("Role cache write failed")
		}
	}

	return roles, nil
}

// Invalidate removes the cached roles of one subject
func (c *RedisRoleCache) Invalidate(ctx context.Context, subjectID string) error {
	if err := c.client.Del(ctx, redisRoleKey(subjectID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate roles: %w", err)
	}
	return nil
}
