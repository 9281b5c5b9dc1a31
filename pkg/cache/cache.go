package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lromero-dev/stockroom-backend/pkg/logger"
	"github.com/lromero-dev/stockroom-backend/pkg/redis"
)

// Store is the subset of the redis client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DelByPrefix(ctx context.Context, prefix string) error
	CacheKey(parts ...string) string
}

// Cache wraps redis with JSON read-through semantics. A redis failure is
// logged and degrades to computing fresh, never to an error for the caller.
type Cache struct {
	store Store
	logg  *logger.Logger
}

func New(store Store, logg *logger.Logger) *Cache {
	return &Cache{store: store, logg: logg}
}

// Key builds a namespaced cache key.
func (c *Cache) Key(parts ...string) string {
	return c.store.CacheKey(parts...)
}

// GetOrCompute returns the cached JSON value at key decoded into dest, or
// computes it, stores it with the given TTL, and decodes the fresh value.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, dest any, compute func(ctx context.Context) (any, error)) error {
	raw, err := c.store.Get(ctx, key)
	if err == nil {
		if unmarshalErr := json.Unmarshal([]byte(raw), dest); unmarshalErr == nil {
			return nil
		}
		// A corrupt entry is treated as a miss and overwritten below.
	} else if !redis.IsNil(err) && c.logg != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "cache read failed, computing fresh")
	}

	value, err := compute(ctx)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if setErr := c.store.Set(ctx, key, string(encoded), ttl); setErr != nil && c.logg != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", setErr.Error()), "cache write failed")
	}

	return json.Unmarshal(encoded, dest)
}

// Invalidate removes the given keys.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	return c.store.Del(ctx, keys...)
}

// InvalidatePrefix removes every key under the given prefix.
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) error {
	return c.store.DelByPrefix(ctx, prefix)
}
