// Package cache provides a read-through cache for computed insights,
// backed by Redis when configured and falling back to the Store's own
// insights table otherwise (spec.md §4.7).
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/deepclaw/nostr-analytics/internal/config"
	"github.com/deepclaw/nostr-analytics/internal/ops"
	"github.com/deepclaw/nostr-analytics/internal/store"
)

// Cache fronts insight reads with Redis, if configured, to take load off
// the domain store under bursty API traffic. The Store always remains the
// write-of-record; Redis holds a denormalized copy with its own TTL.
type Cache struct {
	redis  *redis.Client
	store  *store.Store
	logger *ops.Logger
}

// New builds a cache. If cfg.RedisAddr is empty, every Get falls through
// directly to the Store and Redis is never dialed.
func New(cfg config.Cache, s *store.Store, logger *ops.Logger) *Cache {
	c := &Cache{store: s, logger: logger}
	if cfg.RedisAddr != "" {
		c.redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	}
	return c
}

func redisKey(tenantID int64, kind, period string) string {
	return fmt.Sprintf("insight:%d:%s:%s", tenantID, kind, period)
}

// Get returns a cached insight payload, preferring Redis when available and
// falling back to the Store on a miss or when Redis is unavailable.
func (c *Cache) Get(ctx context.Context, tenantID int64, kind, period string) (string, bool) {
	if c.redis != nil {
		val, err := c.redis.Get(ctx, redisKey(tenantID, kind, period)).Result()
		if err == nil {
			c.logHit("get", tenantID, kind, true)
			return val, true
		}
		if err != redis.Nil && c.logger != nil {
			c.logger.Warn("redis get failed, falling back to store", "error", err)
		}
	}

	insight, err := c.store.GetInsight(ctx, tenantID, kind, period)
	if err != nil {
		c.logHit("get", tenantID, kind, false)
		return "", false
	}
	c.logHit("get", tenantID, kind, true)

	if c.redis != nil {
		ttl := time.Until(time.Unix(insight.ExpiresAt, 0))
		if ttl > 0 {
			_ = c.redis.Set(ctx, redisKey(tenantID, kind, period), insight.Payload, ttl).Err()
		}
	}
	return insight.Payload, true
}

// Invalidate drops a tenant's cached insights from Redis; the Store's own
// rows are deleted separately by whichever component triggered the
// invalidation (router, scanner, aggregator).
func (c *Cache) Invalidate(ctx context.Context, tenantID int64) {
	if c.redis == nil {
		return
	}
	iter := c.redis.Scan(ctx, 0, fmt.Sprintf("insight:%d:*", tenantID), 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		if err := c.redis.Del(ctx, keys...).Err(); err != nil && c.logger != nil {
			c.logger.Warn("redis invalidation failed", "tenant_id", tenantID, "error", err)
		}
	}
}

func (c *Cache) logHit(op string, tenantID int64, kind string, hit bool) {
	if c.logger != nil {
		c.logger.LogCacheOperation(op, fmt.Sprintf("%d:%s", tenantID, kind), hit)
	}
}

// Close releases the Redis connection, if one was opened.
func (c *Cache) Close() error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Close()
}
