package masterdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheVersionPrefix = "masterdata:version:"

// Cache wraps Redis based caching with per-scope versioning. Concurrent
// misses on one key share a single load.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

// NewCache instantiates the cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Version returns the current version of scope, initialising when missing.
func (c *Cache) Version(ctx context.Context, scope string) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := cacheVersionPrefix + scope
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes the cache key with the current version of scope.
func (c *Cache) BuildKey(ctx context.Context, scope string, parts ...string) (string, error) {
	joined := strings.Join(append([]string{"masterdata", scope}, parts...), ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx, scope)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d", joined, ver), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *Cache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("masterdata: cache loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		return roundTrip(value, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if !errors.Is(err, redis.Nil) {
		return err
	}

	ch := c.group.DoChan(key, func() (any, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			return nil, err
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.([]byte), dest)
	}
}

// Store overwrites key with value.
func (c *Cache) Store(ctx context.Context, key string, value any) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Bump invalidates every key of scope by incrementing its version.
func (c *Cache) Bump(ctx context.Context, scope string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, cacheVersionPrefix+scope).Err()
}

func roundTrip(value, dest any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}
