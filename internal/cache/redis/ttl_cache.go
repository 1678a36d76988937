package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// TTLCache implements domain.TTLCache with plain string keys.
//
// Key schema:
//
//	cache:{key} - raw payload, expires after the caller's TTL
type TTLCache struct {
	rdb *redis.Client
	key func(...string) string
}

// NewTTLCache creates a TTLCache backed by the given Client.
func NewTTLCache(c *Client) *TTLCache {
	return &TTLCache{rdb: c.Underlying(), key: c.Key}
}

// Get returns domain.ErrNotFound when the key is absent or expired.
func (tc *TTLCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := tc.rdb.Get(ctx, tc.key("cache", key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: cache get %s: %w", key, err)
	}
	return data, nil
}

func (tc *TTLCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := tc.rdb.Set(ctx, tc.key("cache", key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis: cache set %s: %w", key, err)
	}
	return nil
}

// GetOrSet returns the cached payload or computes and stores it. There is no
// single-flight guard: two callers missing at once both compute and the last
// SET wins. Recomputation is side-effect free, so that is acceptable.
func (tc *TTLCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	data, err := tc.Get(ctx, key)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	data, err = compute(ctx)
	if err != nil {
		return nil, err
	}
	if err := tc.Set(ctx, key, data, ttl); err != nil {
		return nil, err
	}
	return data, nil
}

// Compile-time interface check.
var _ domain.TTLCache = (*TTLCache)(nil)
