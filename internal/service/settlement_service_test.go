package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
	"github.com/alanyoungcy/mirrorarb/internal/metrics"
	"github.com/alanyoungcy/mirrorarb/internal/notify"
	"github.com/alanyoungcy/mirrorarb/internal/settlement"
)

const testKey = "0x2222222222222222222222222222222222222222222222222222222222222222"

type settleHarness struct {
	svc         *SettlementService
	resolver    *fakeResolver
	ledger      *fakeLedger
	resolutions *fakeResolutions
	locks       *fakeLocks
	opps        *fakeOppStore
	audit       *fakeAudit
	bus         *fakeBus
}

func newSettleHarness() *settleHarness {
	h := &settleHarness{
		resolver: &fakeResolver{result: &settlement.Result{
			TxHash:      common.HexToHash("0xbeef"),
			BlockNumber: 77,
			Source:      domain.VenueKalshi,
			Signature:   []byte{1, 2, 3},
			Attempts:    1,
		}},
		ledger:      &fakeLedger{},
		resolutions: &fakeResolutions{},
		locks:       &fakeLocks{},
		opps:        newFakeOppStore(),
		audit:       &fakeAudit{},
		bus:         &fakeBus{},
	}
	h.svc = NewSettlementService(h.resolver, h.ledger, h.resolutions, h.locks, h.opps, h.audit, h.bus, nil, metrics.New(), 0, testLogger())
	return h
}

func TestSettlementSuccessRecordsEverywhere(t *testing.T) {
	t.Parallel()

	h := newSettleHarness()
	h.opps.rows["opp-1"] = domain.ArbitrageOpportunity{ID: "opp-1", Status: domain.OpportunityActive}

	res, err := h.svc.Resolve(context.Background(), SettlementRequest{MirrorKey: testKey, YesWon: true, OpportunityID: "opp-1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.TxHash != common.HexToHash("0xbeef").Hex() || res.BlockNumber != 77 || res.OracleSignature != "0x010203" {
		t.Errorf("resolution = %+v", res)
	}
	if _, ok := h.ledger.entries[testKey]; !ok {
		t.Error("ledger not marked")
	}
	if _, err := h.resolutions.Get(context.Background(), testKey); err != nil {
		t.Errorf("resolution not recorded: %v", err)
	}
	if h.opps.rows["opp-1"].Status != domain.OpportunityExecuted {
		t.Error("opportunity not marked executed")
	}
	if len(h.audit.events) != 1 || h.audit.events[0] != notify.EventSettlementSucceeded {
		t.Errorf("audit events = %v", h.audit.events)
	}
	if h.bus.count(domain.ChannelSettlement) != 1 {
		t.Error("settlement event not published")
	}
	if len(h.locks.held) != 0 {
		t.Error("lock not released")
	}
}

func TestSettlementSecondCallIsRejectedLocally(t *testing.T) {
	t.Parallel()

	h := newSettleHarness()
	ctx := context.Background()
	if _, err := h.svc.Resolve(ctx, SettlementRequest{MirrorKey: testKey, YesWon: true}); err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	_, err := h.svc.Resolve(ctx, SettlementRequest{MirrorKey: testKey, YesWon: false})
	if !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Fatalf("second Resolve err = %v, want ErrAlreadyResolved", err)
	}
	if h.resolver.calls != 1 {
		t.Errorf("resolver called %d times, want 1", h.resolver.calls)
	}
}

func TestSettlementDurableHitBackfillsLedger(t *testing.T) {
	t.Parallel()

	h := newSettleHarness()
	h.resolutions.rows = map[string]domain.Resolution{testKey: {MirrorKey: testKey}}

	_, err := h.svc.Resolve(context.Background(), SettlementRequest{MirrorKey: testKey})
	if !errors.Is(err, domain.ErrAlreadyResolved) {
		t.Fatalf("err = %v, want ErrAlreadyResolved", err)
	}
	if _, ok := h.ledger.entries[testKey]; !ok {
		t.Error("ledger not backfilled from store")
	}
	if h.resolver.calls != 0 {
		t.Error("resolver called for a resolved key")
	}
}

func TestSettlementLedgerOutageFallsBackToStore(t *testing.T) {
	t.Parallel()

	h := newSettleHarness()
	h.ledger.err = errors.New("redis down")

	if _, err := h.svc.Resolve(context.Background(), SettlementRequest{MirrorKey: testKey}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if h.resolver.calls != 1 {
		t.Errorf("resolver calls = %d", h.resolver.calls)
	}
}

func TestSettlementLockHeld(t *testing.T) {
	t.Parallel()

	h := newSettleHarness()
	key, err := settlement.ParseMirrorKey(testKey)
	if err != nil {
		t.Fatalf("ParseMirrorKey: %v", err)
	}
	unlock, err := h.locks.Acquire(context.Background(), "settle:"+key.Hex(), 0)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer unlock()

	if _, err := h.svc.Resolve(context.Background(), SettlementRequest{MirrorKey: testKey}); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("err = %v, want ErrLockHeld", err)
	}
	if h.resolver.calls != 0 {
		t.Error("resolver called while lock held")
	}
}

func TestSettlementFailureIsAuditedNotRecorded(t *testing.T) {
	t.Parallel()

	h := newSettleHarness()
	h.resolver.err = &settlement.Error{Op: "authorize", Attempts: 1, Err: domain.ErrUnauthorized}

	_, err := h.svc.Resolve(context.Background(), SettlementRequest{MirrorKey: testKey, YesWon: true})
	var serr *settlement.Error
	if !errors.As(err, &serr) || !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want *settlement.Error wrapping ErrUnauthorized", err)
	}
	if len(h.ledger.entries) != 0 || len(h.resolutions.rows) != 0 {
		t.Error("failed settlement was recorded as resolved")
	}
	if len(h.audit.events) != 1 || h.audit.events[0] != notify.EventSettlementFailed {
		t.Errorf("audit events = %v", h.audit.events)
	}
}

func TestSettlementValidation(t *testing.T) {
	t.Parallel()

	h := newSettleHarness()
	for _, key := range []string{"", "0x12", "not-hex"} {
		if _, err := h.svc.Resolve(context.Background(), SettlementRequest{MirrorKey: key}); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("key %q: err = %v, want ErrValidation", key, err)
		}
	}
	if h.resolver.calls != 0 || len(h.audit.events) != 0 {
		t.Error("validation failure had side effects")
	}
}
