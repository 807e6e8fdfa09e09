// Package cache puts a Redis read-through cache in front of the catalog.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/discount"
)

// Redis keys holding cached catalog payloads.
const (
	KeyZones     = "catalog:zones"
	KeyDiscounts = "catalog:discounts"
)

// Backend is the authoritative catalog store.
type Backend interface {
	catalog.Source
	discount.Repository
}

var (
	_ catalog.Source      = (*Catalog)(nil)
	_ discount.Repository = (*Catalog)(nil)
)

// Catalog serves zones and discounts from Redis, loading from the backend
// on a miss. Redis failures are logged and bypassed; they never fail a
// read. Discount writes go to the backend and drop the cached entry; a load
// that overlaps an invalidation does not write its result back.
type Catalog struct {
	rdb     redis.Cmdable
	backend Backend
	ttl     time.Duration
	group   singleflight.Group

	mu  sync.Mutex
	gen map[string]uint64
}

// NewCatalog creates a Catalog caching entries for ttl.
func NewCatalog(rdb redis.Cmdable, backend Backend, ttl time.Duration) *Catalog {
	return &Catalog{rdb: rdb, backend: backend, ttl: ttl, gen: make(map[string]uint64)}
}

func (c *Catalog) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen[key]
}

// Zones implements catalog.Source.
func (c *Catalog) Zones(ctx context.Context) ([]catalog.Zone, error) {
	return readThrough(ctx, c, KeyZones, decodeZones, encodeZones, c.backend.Zones)
}

// Discounts implements catalog.Source.
func (c *Catalog) Discounts(ctx context.Context) ([]discount.Discount, error) {
	return readThrough(ctx, c, KeyDiscounts, decodeDiscounts, encodeDiscounts, c.backend.Discounts)
}

// Create implements discount.Repository.
func (c *Catalog) Create(ctx context.Context, d *discount.Discount) error {
	if err := c.backend.Create(ctx, d); err != nil {
		return err
	}
	c.Invalidate(ctx, KeyDiscounts)
	return nil
}

// Delete implements discount.Repository.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	if err := c.backend.Delete(ctx, id); err != nil {
		return err
	}
	c.Invalidate(ctx, KeyDiscounts)
	return nil
}

// Invalidate drops cached entries. Entries that cannot be dropped expire
// after the TTL.
func (c *Catalog) Invalidate(ctx context.Context, keys ...string) {
	c.mu.Lock()
	for _, k := range keys {
		c.gen[k]++
		c.group.Forget(k)
	}
	c.mu.Unlock()

	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		zctx.From(ctx).Warn("Cache invalidation failed",
			zap.Strings("keys", keys),
			zap.Error(err),
		)
	}
}

func readThrough[T any](
	ctx context.Context,
	c *Catalog,
	key string,
	decode func([]byte) (T, error),
	encode func(T) []byte,
	load func(context.Context) (T, error),
) (T, error) {
	lg := zctx.From(ctx).With(zap.String("key", key))

	raw, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		v, err := decode(raw)
		if err == nil {
			return v, nil
		}
		lg.Warn("Ignoring undecodable cache entry", zap.Error(err))
	case errors.Is(err, redis.Nil):
	default:
		lg.Warn("Cache read failed", zap.Error(err))
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		gen := c.generation(key)
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if c.generation(key) != gen {
			lg.Debug("Cache entry invalidated during load, not storing")
			return v, nil
		}
		if err := c.rdb.Set(ctx, key, encode(v), c.ttl).Err(); err != nil {
			lg.Warn("Cache write failed", zap.Error(err))
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
