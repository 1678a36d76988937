package domain

import (
	"context"
	"time"
)

// TTLCache memoizes computed payloads for a bounded time. Get returns
// ErrNotFound on a miss.
type TTLCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	GetOrSet(ctx context.Context, key string, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, error)
}

// ResolvedLedger remembers which mirror keys this process already settled.
type ResolvedLedger interface {
	IsResolved(ctx context.Context, mirrorKey string) (bool, error)
	// MarkResolved records res and returns ErrAlreadyResolved when the key was
	// already present.
	MarkResolved(ctx context.Context, res Resolution) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of engine events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Signal bus channels.
const (
	ChannelArb        = "ch:arb"
	ChannelSettlement = "ch:settlement"
)
