package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

type payload struct {
	Terms []string `json:"terms"`
}

func TestGetOrSetJSONComputesOnce(t *testing.T) {
	t.Parallel()

	c := NewMemory()
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) (payload, error) {
		calls++
		return payload{Terms: []string{"election", "bitcoin"}}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := GetOrSetJSON(ctx, c, "k", time.Minute, compute)
		if err != nil {
			t.Fatalf("GetOrSetJSON: %v", err)
		}
		if len(got.Terms) != 2 || got.Terms[1] != "bitcoin" {
			t.Fatalf("got %+v", got)
		}
	}
	if calls != 1 {
		t.Errorf("compute calls = %d, want 1", calls)
	}
}

func TestMemoryExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemory()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 10*time.Minute); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(ctx, "k"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}
	now = now.Add(10 * time.Minute)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get after expiry: err = %v, want ErrNotFound", err)
	}
}

func TestGetOrSetJSONPropagatesComputeError(t *testing.T) {
	t.Parallel()

	c := NewMemory()
	boom := errors.New("store down")
	_, err := GetOrSetJSON(context.Background(), c, "k", time.Minute, func(context.Context) (payload, error) {
		return payload{}, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if _, err := c.Get(context.Background(), "k"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatal("failed compute must not populate the cache")
	}
}
