package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// ResolvedLedger implements domain.ResolvedLedger with one key per mirror
// market. Entries never expire.
//
// Key schema:
//
//	resolved:{mirrorKey} - JSON-encoded domain.Resolution
type ResolvedLedger struct {
	rdb *redis.Client
	key func(...string) string
}

// NewResolvedLedger creates a ResolvedLedger backed by the given Client.
func NewResolvedLedger(c *Client) *ResolvedLedger {
	return &ResolvedLedger{rdb: c.Underlying(), key: c.Key}
}

func (rl *ResolvedLedger) IsResolved(ctx context.Context, mirrorKey string) (bool, error) {
	n, err := rl.rdb.Exists(ctx, rl.key("resolved", mirrorKey)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: resolved exists %s: %w", mirrorKey, err)
	}
	return n > 0, nil
}

// MarkResolved stores res with SETNX. A second call for the same key returns
// domain.ErrAlreadyResolved and leaves the first entry in place.
func (rl *ResolvedLedger) MarkResolved(ctx context.Context, res domain.Resolution) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("redis: marshal resolution %s: %w", res.MirrorKey, err)
	}
	ok, err := rl.rdb.SetNX(ctx, rl.key("resolved", res.MirrorKey), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis: mark resolved %s: %w", res.MirrorKey, err)
	}
	if !ok {
		return fmt.Errorf("redis: %s: %w", res.MirrorKey, domain.ErrAlreadyResolved)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ResolvedLedger = (*ResolvedLedger)(nil)
