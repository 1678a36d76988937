package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAddValidation(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), testLogger())
	noop := func(context.Context) error { return nil }

	if err := s.Add("disabled", "", noop); err != nil {
		t.Fatalf("Add empty spec: %v", err)
	}
	if err := s.Add("bad", "not a cron spec", noop); err == nil {
		t.Fatal("Add accepted an invalid spec")
	}
	if err := s.Add("sweep", "@every 1m", noop); err != nil {
		t.Fatalf("Add @every: %v", err)
	}
	if err := s.Add("archive", "0 0 3 * * *", noop); err != nil {
		t.Fatalf("Add six-field spec: %v", err)
	}
	if got := s.Len(); got != 2 {
		t.Errorf("Len = %d, want 2", got)
	}
}

func TestJobRunsWithBaseContext(t *testing.T) {
	t.Parallel()

	type key struct{}
	base := context.WithValue(context.Background(), key{}, "base")
	s := New(base, testLogger())

	ran := make(chan string, 4)
	err := s.Add("tick", "* * * * * *", func(ctx context.Context) error {
		v, _ := ctx.Value(key{}).(string)
		ran <- v
		return errors.New("logged, not fatal")
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	s.Start()
	defer s.Stop()

	select {
	case v := <-ran:
		if v != "base" {
			t.Errorf("job ctx value = %q, want base", v)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestRecoverFromPanic(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), testLogger())
	ran := make(chan struct{}, 4)
	if err := s.Add("panicky", "* * * * * *", func(context.Context) error {
		ran <- struct{}{}
		panic("boom")
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	s.Start()
	defer s.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-ran:
		case <-time.After(3 * time.Second):
			t.Fatalf("run %d did not happen after panic", i)
		}
	}
}
