// Package cache is a read-through cache that prefers redis and degrades to a
// bounded in-process LRU whenever redis is unconfigured or failing. Callers
// never see a cache error: the worst case is a miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/ariefcatur/marketplace-core/internal/redisx"
	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const DefaultCapacity = 100

type entry struct {
	data    []byte
	expires time.Time
}

type Tiered struct {
	handle *redisx.Handle
	local  *lru.Cache
	now    func() time.Time

	fallbackOnce sync.Once
}

func New(h *redisx.Handle, capacity int) (*Tiered, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	local, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}
	return &Tiered{handle: h, local: local, now: time.Now}, nil
}

// Get decodes the cached value for key into out and reports whether it was
// found. Undecodable payloads count as a miss.
func (c *Tiered) Get(ctx context.Context, key string, out any) bool {
	data, ok := c.get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		zap.L().Debug("cache payload undecodable, treating as miss", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Tiered) get(ctx context.Context, key string) ([]byte, bool) {
	client, err := c.handle.Client(ctx)
	if err == nil {
		b, err := client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			return b, true
		case errors.Is(err, redis.Nil):
			return nil, false
		}
		c.handle.Report(client, err)
	}
	c.fallback(err)

	v, ok := c.local.Get(key)
	if !ok {
		return nil, false
	}
	e := v.(entry)
	if !c.now().Before(e.expires) {
		c.local.Remove(key)
		return nil, false
	}
	return e.data, true
}

func (c *Tiered) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		zap.L().Warn("cache value not encodable", zap.String("key", key), zap.Error(err))
		return
	}

	client, err := c.handle.Client(ctx)
	if err == nil {
		err = client.Set(ctx, key, data, ttl).Err()
		if err == nil {
			// a copy left over from an outage must not outlive the remote one
			c.local.Remove(key)
			return
		}
		c.handle.Report(client, err)
	}
	c.fallback(err)
	c.local.Add(key, entry{data: data, expires: c.now().Add(ttl)})
}

// Invalidate drops every local key matching p and, when redis is reachable,
// scans and deletes the same keys remotely.
func (c *Tiered) Invalidate(ctx context.Context, p redisx.Pattern) {
	for _, k := range c.local.Keys() {
		if key, ok := k.(string); ok && p.Matches(key) {
			c.local.Remove(key)
		}
	}

	client, err := c.handle.Client(ctx)
	if err != nil {
		c.fallback(err)
		return
	}
	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, p.Glob(), 100).Result()
		if err != nil {
			c.handle.Report(client, err)
			zap.L().Warn("cache invalidate scan failed", zap.Stringer("pattern", p), zap.Error(err))
			return
		}
		if len(keys) > 0 {
			if err := client.Del(ctx, keys...).Err(); err != nil {
				c.handle.Report(client, err)
				zap.L().Warn("cache invalidate delete failed", zap.Stringer("pattern", p), zap.Error(err))
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

func (c *Tiered) fallback(reason error) {
	c.fallbackOnce.Do(func() {
		zap.L().Info("cache using in-process fallback", zap.NamedError("reason", reason))
	})
}

// Remember returns the cached value for key, or calls load and caches its
// result for ttl. Load errors are returned and nothing is cached.
func Remember[T any](ctx context.Context, c *Tiered, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	c.Set(ctx, key, v, ttl)
	return v, nil
}
