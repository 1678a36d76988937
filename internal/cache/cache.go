// Package cache holds cache helpers shared by every domain.TTLCache
// implementation.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// GetOrSetJSON returns the cached value at key, or computes, stores and
// returns it. Concurrent misses may each compute; the last write wins.
func GetOrSetJSON[T any](ctx context.Context, c domain.TTLCache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	var out T
	raw, err := c.GetOrSet(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return out, nil
}

// SetJSON stores v at key.
func SetJSON[T any](ctx context.Context, c domain.TTLCache, key string, ttl time.Duration, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}

// Memory is an in-process domain.TTLCache. It backs single-shot modes that
// run without Redis.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

type memoryItem struct {
	value   []byte
	expires time.Time
}

var _ domain.TTLCache = (*Memory)(nil)

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]memoryItem), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[key]
	if !ok || !m.now().Before(it.expires) {
		delete(m.items, key)
		return nil, domain.ErrNotFound
	}
	return it.value, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = memoryItem{value: value, expires: m.now().Add(ttl)}
	return nil
}

// GetOrSet computes outside the lock, so concurrent misses may both compute.
func (m *Memory) GetOrSet(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	v, err := m.Get(ctx, key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	v, err = compute(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.Set(ctx, key, v, ttl); err != nil {
		return nil, err
	}
	return v, nil
}
