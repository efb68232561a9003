package menu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheVersionKey = "menu:version"

// Cache stores rendered menus in Redis, keyed per user under a version
// counter. Invalidation bumps the counter so stale entries simply age
// out with their TTL. Menu output is deterministic for fixed inputs,
// which is what makes caching the serialized form safe.
type Cache struct {
	client   *redis.Client
	ttl      time.Duration
	group    singleflight.Group
	onLookup func(hit bool)
}

// NewCache constructs a Cache.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// OnLookup registers a callback receiving the outcome of every cache
// lookup. Must be set before the cache is used.
func (c *Cache) OnLookup(fn func(hit bool)) {
	c.onLookup = fn
}

func (c *Cache) recordLookup(hit bool) {
	if c.onLookup != nil {
		c.onLookup(hit)
	}
}

// VisibleMenu returns the cached menu for the user, building and
// storing it on a miss. Concurrent misses for the same user collapse
// into a single build.
func (c *Cache) VisibleMenu(ctx context.Context, userID int64, build func(context.Context) ([]Node, error)) ([]Node, error) {
	version, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		// Cache unavailable; serve from source.
		return build(ctx)
	}
	key := fmt.Sprintf("menu:%d:user:%d", version, userID)

	if payload, err := c.client.Get(ctx, key).Bytes(); err == nil {
		var nodes []Node
		if err := json.Unmarshal(payload, &nodes); err == nil {
			c.recordLookup(true)
			return nodes, nil
		}
	}
	c.recordLookup(false)

	result, err, _ := c.group.Do(key, func() (any, error) {
		nodes, err := build(ctx)
		if err != nil {
			return nil, err
		}
		if payload, err := json.Marshal(nodes); err == nil {
			_ = c.client.Set(ctx, key, payload, c.ttl).Err()
		}
		return nodes, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Node), nil
}

// Invalidate bumps the cache version, orphaning every cached menu.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, cacheVersionKey).Err()
}
