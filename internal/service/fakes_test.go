package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
	"github.com/alanyoungcy/mirrorarb/internal/settlement"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeVenue struct {
	venue   domain.Venue
	markets []domain.UnifiedMarket
	err     error

	mu    sync.Mutex
	calls int
}

func (f *fakeVenue) Venue() domain.Venue { return f.venue }

func (f *fakeVenue) FetchActive(context.Context, int, int) ([]domain.UnifiedMarket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.markets, nil
}

func (f *fakeVenue) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeMarketStore struct {
	mu       sync.Mutex
	upserted []domain.UnifiedMarket
	err      error
}

func (f *fakeMarketStore) UpsertBatch(_ context.Context, ms []domain.UnifiedMarket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, ms...)
	return nil
}

func (f *fakeMarketStore) ListActive(context.Context, domain.ListOpts) ([]domain.UnifiedMarket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserted, f.err
}

type fakeOppStore struct {
	mu         sync.Mutex
	rows       map[string]domain.ArbitrageOpportunity
	superseded [][]string
	executed   []string
	listErr    error
}

func newFakeOppStore() *fakeOppStore {
	return &fakeOppStore{rows: map[string]domain.ArbitrageOpportunity{}}
}

func (f *fakeOppStore) UpsertBatch(_ context.Context, opps []domain.ArbitrageOpportunity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range opps {
		if prev, ok := f.rows[o.ID]; ok && prev.Status == domain.OpportunityExecuted {
			o.Status = domain.OpportunityExecuted
		}
		f.rows[o.ID] = o
	}
	return nil
}

func (f *fakeOppStore) ListActive(_ context.Context, flt domain.OpportunityFilter) ([]domain.ArbitrageOpportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.ArbitrageOpportunity
	for _, o := range f.rows {
		if o.Status == domain.OpportunityActive && o.Spread >= flt.MinSpread {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOppStore) ExpireSuperseded(_ context.Context, keep []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.superseded = append(f.superseded, keep)
	kept := map[string]bool{}
	for _, id := range keep {
		kept[id] = true
	}
	var n int64
	for id, o := range f.rows {
		if o.Status == domain.OpportunityActive && !kept[id] {
			o.Status = domain.OpportunityExpired
			f.rows[id] = o
			n++
		}
	}
	return n, nil
}

func (f *fakeOppStore) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, o := range f.rows {
		if o.Status == domain.OpportunityActive && o.ExpiresAt.Before(now) {
			o.Status = domain.OpportunityExpired
			f.rows[id] = o
			n++
		}
	}
	return n, nil
}

func (f *fakeOppStore) MarkExecuted(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.Status = domain.OpportunityExecuted
	f.rows[id] = o
	f.executed = append(f.executed, id)
	return nil
}

func (f *fakeOppStore) ListExpiredBefore(context.Context, time.Time) ([]domain.ArbitrageOpportunity, error) {
	return nil, nil
}

func (f *fakeOppStore) DeleteByIDs(context.Context, []string) (int64, error) { return 0, nil }

type staticConfig struct {
	cfg domain.MatchConfig
	err error
}

func (s staticConfig) Get(context.Context) (domain.MatchConfig, error) { return s.cfg, s.err }

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published == nil {
		b.published = map[string][][]byte{}
	}
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[channel])
}

type fakeLedger struct {
	mu      sync.Mutex
	entries map[string]domain.Resolution
	err     error
}

func (l *fakeLedger) IsResolved(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	_, ok := l.entries[key]
	return ok, nil
}

func (l *fakeLedger) MarkResolved(_ context.Context, res domain.Resolution) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries == nil {
		l.entries = map[string]domain.Resolution{}
	}
	if _, ok := l.entries[res.MirrorKey]; ok {
		return domain.ErrAlreadyResolved
	}
	l.entries[res.MirrorKey] = res
	return nil
}

type fakeResolutions struct {
	mu   sync.Mutex
	rows map[string]domain.Resolution
}

func (r *fakeResolutions) Record(_ context.Context, res domain.Resolution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rows == nil {
		r.rows = map[string]domain.Resolution{}
	}
	if _, ok := r.rows[res.MirrorKey]; ok {
		return domain.ErrAlreadyResolved
	}
	r.rows[res.MirrorKey] = res
	return nil
}

func (r *fakeResolutions) Get(_ context.Context, key string) (domain.Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.rows[key]
	if !ok {
		return domain.Resolution{}, domain.ErrNotFound
	}
	return res, nil
}

type fakeLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func (l *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, nil
}

type fakeAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

type fakeResolver struct {
	result *settlement.Result
	err    error
	calls  int
}

func (r *fakeResolver) Resolve(_ context.Context, key common.Hash, _ bool) (*settlement.Result, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}
