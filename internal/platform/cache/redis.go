// Package cache opens the shared redis client used for sessions and the
// master-data cache.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options returns the client options for addr. The asynq broker is built
// from the same address.
func Options(addr string) *redis.Options {
	return &redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// New creates a Redis client and checks connectivity.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(Options(addr))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}
