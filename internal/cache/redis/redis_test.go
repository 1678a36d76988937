package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return Wrap(rdb, "test:"), mr
}

func TestTTLCacheGetOrSet(t *testing.T) {
	c, mr := newTestClient(t)
	cache := NewTTLCache(c)
	ctx := context.Background()

	if _, err := cache.Get(ctx, "scan"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get on empty cache: err = %v, want ErrNotFound", err)
	}

	calls := 0
	compute := func(context.Context) ([]byte, error) {
		calls++
		return []byte(`{"n":1}`), nil
	}
	for i := 0; i < 2; i++ {
		got, err := cache.GetOrSet(ctx, "scan", time.Minute, compute)
		if err != nil {
			t.Fatalf("GetOrSet: %v", err)
		}
		if string(got) != `{"n":1}` {
			t.Fatalf("GetOrSet = %s", got)
		}
	}
	if calls != 1 {
		t.Errorf("compute calls = %d, want 1", calls)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := cache.Get(ctx, "scan"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get after TTL: err = %v, want ErrNotFound", err)
	}
}

func TestResolvedLedger(t *testing.T) {
	c, mr := newTestClient(t)
	ledger := NewResolvedLedger(c)
	ctx := context.Background()
	key := "0x" + "ab"

	ok, err := ledger.IsResolved(ctx, key)
	if err != nil || ok {
		t.Fatalf("IsResolved before mark = %v, %v", ok, err)
	}

	res := domain.Resolution{MirrorKey: key, YesWon: true, TxHash: "0x01"}
	if err := ledger.MarkResolved(ctx, res); err != nil {
		t.Fatalf("MarkResolved: %v", err)
	}
	if err := ledger.MarkResolved(ctx, res); !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Fatalf("second MarkResolved: err = %v, want ErrAlreadyResolved", err)
	}
	if ok, _ := ledger.IsResolved(ctx, key); !ok {
		t.Fatal("IsResolved after mark = false")
	}
	if !mr.Exists("test:resolved:0xab") {
		t.Errorf("ledger keys = %v, want test:resolved:0xab", mr.Keys())
	}
}

func TestLockManager(t *testing.T) {
	c, mr := newTestClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "settle:k", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if ttl := mr.TTL("test:lock:settle:k"); ttl != time.Minute {
		t.Errorf("lock TTL = %v, want 1m", ttl)
	}
	if _, err := lm.Acquire(ctx, "settle:k", time.Minute); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("second Acquire: err = %v, want ErrLockHeld", err)
	}
	unlock()
	unlock()

	unlock2, err := lm.Acquire(ctx, "settle:k", time.Minute)
	if err != nil {
		t.Fatalf("Acquire after unlock: %v", err)
	}
	unlock2()
}

func TestRateLimiter(t *testing.T) {
	c, _ := newTestClient(t)
	rl := NewRateLimiter(c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "client-a", 3, time.Minute)
		if err != nil {
			t.Fatalf("Allow %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("Allow %d denied within limit", i)
		}
	}
	if ok, _ := rl.Allow(ctx, "client-a", 3, time.Minute); ok {
		t.Fatal("fourth request should be denied")
	}
	if ok, _ := rl.Allow(ctx, "client-b", 3, time.Minute); !ok {
		t.Fatal("limits must be per key")
	}
}

func TestSignalBus(t *testing.T) {
	c, _ := newTestClient(t)
	bus := NewSignalBus(c)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, domain.ChannelArb)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := bus.Publish(ctx, domain.ChannelArb, []byte("hello")); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-ch:
		if string(msg) != "hello" {
			t.Fatalf("payload = %q", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestKeyPrefix(t *testing.T) {
	c := Wrap(nil, "mirrorarb:")
	if got := c.Key("lock", "settle:0x01"); got != "mirrorarb:lock:settle:0x01" {
		t.Errorf("Key = %q", got)
	}
	if got := Wrap(nil, "").Key("cache", "scan"); got != "cache:scan" {
		t.Errorf("Key without prefix = %q", got)
	}
}
