package rental

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "rentflow:order"

// Cache is a read-through Redis cache of order snapshots with per-order
// version keys. Bumping the version orphans every stored snapshot of that order.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

func versionKey(id uuid.UUID) string {
	return fmt.Sprintf("%s:%s:version", cacheKeyPrefix, id)
}

// Version returns the current cache version of an order, initialising when missing.
func (c *Cache) Version(ctx context.Context, id uuid.UUID) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, versionKey(id), 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, versionKey(id)).Int64()
	}
	return ver, err
}

// FetchOrder loads a cached snapshot or populates it using the loader.
// Redis failures fall through to the loader.
func (c *Cache) FetchOrder(ctx context.Context, id uuid.UUID, loader func(context.Context) (Order, error)) (Order, error) {
	if c == nil || c.client == nil {
		return loader(ctx)
	}
	ver, err := c.Version(ctx, id)
	if err != nil {
		return loader(ctx)
	}
	key := fmt.Sprintf("%s:%s:%d", cacheKeyPrefix, id, ver)
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var o Order
		if jsonErr := json.Unmarshal(payload, &o); jsonErr == nil {
			return o, nil
		}
	}
	o, err := loader(ctx)
	if err != nil {
		return Order{}, err
	}
	if raw, err := json.Marshal(o); err == nil {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return o, nil
}

// Bump invalidates an order's snapshots.
func (c *Cache) Bump(ctx context.Context, id uuid.UUID) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey(id)).Err()
}
