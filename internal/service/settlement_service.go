package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
	"github.com/alanyoungcy/mirrorarb/internal/metrics"
	"github.com/alanyoungcy/mirrorarb/internal/notify"
	"github.com/alanyoungcy/mirrorarb/internal/settlement"
)

// Resolver performs the on-chain part of a settlement.
type Resolver interface {
	Resolve(ctx context.Context, mirrorKey common.Hash, yesWon bool) (*settlement.Result, error)
}

// SettlementRequest is one settlement trigger.
type SettlementRequest struct {
	MirrorKey     string `json:"mirrorKey"`
	YesWon        bool   `json:"yesWon"`
	OpportunityID string `json:"opportunityId,omitempty"`
}

// SettlementService guards the executor with a per-key lock and the local
// resolved-key ledger, then records the outcome.
type SettlementService struct {
	resolver    Resolver
	ledger      domain.ResolvedLedger
	resolutions domain.ResolutionStore
	locks       domain.LockManager
	opps        domain.OpportunityStore
	audit       domain.AuditStore
	bus         domain.SignalBus
	notifier    *notify.Notifier
	metrics     *metrics.Metrics
	lockTTL     time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewSettlementService creates a SettlementService. bus and notifier may be nil.
func NewSettlementService(
	resolver Resolver,
	ledger domain.ResolvedLedger,
	resolutions domain.ResolutionStore,
	locks domain.LockManager,
	opps domain.OpportunityStore,
	audit domain.AuditStore,
	bus domain.SignalBus,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	lockTTL time.Duration,
	logger *slog.Logger,
) *SettlementService {
	if lockTTL <= 0 {
		lockTTL = 5 * time.Minute
	}
	return &SettlementService{
		resolver:    resolver,
		ledger:      ledger,
		resolutions: resolutions,
		locks:       locks,
		opps:        opps,
		audit:       audit,
		bus:         bus,
		notifier:    notifier,
		metrics:     m,
		lockTTL:     lockTTL,
		logger:      logger,
		now:         time.Now,
	}
}

// Resolve settles one mirror market. A key already in the ledger returns
// domain.ErrAlreadyResolved without touching the chain; a concurrent trigger
// for the same key returns domain.ErrLockHeld.
func (s *SettlementService) Resolve(ctx context.Context, req SettlementRequest) (domain.Resolution, error) {
	key, err := settlement.ParseMirrorKey(req.MirrorKey)
	if err != nil {
		return domain.Resolution{}, err
	}
	keyHex := key.Hex()

	unlock, err := s.locks.Acquire(ctx, "settle:"+keyHex, s.lockTTL)
	if err != nil {
		if !errors.Is(err, domain.ErrLockHeld) {
			err = fmt.Errorf("settlement_service: lock %s: %w", keyHex, err)
		}
		return domain.Resolution{}, err
	}
	defer unlock()

	done, err := s.isResolved(ctx, keyHex)
	if err != nil {
		return domain.Resolution{}, err
	}
	if done {
		s.metrics.Settlements.WithLabelValues("already_resolved").Inc()
		s.logger.InfoContext(ctx, "settlement_service: key already resolved", slog.String("mirror_key", keyHex))
		return domain.Resolution{}, fmt.Errorf("settlement_service: %s: %w", keyHex, domain.ErrAlreadyResolved)
	}

	result, err := s.resolver.Resolve(ctx, key, req.YesWon)
	if err != nil {
		s.fail(ctx, keyHex, req, err)
		return domain.Resolution{}, err
	}

	res := domain.Resolution{
		MirrorKey:       keyHex,
		YesWon:          req.YesWon,
		Source:          result.Source,
		OracleSignature: settlement.SignatureHex(result.Signature),
		TxHash:          result.TxHash.Hex(),
		BlockNumber:     result.BlockNumber,
		Attempts:        result.Attempts,
		ResolvedAt:      s.now().UTC(),
	}
	s.record(ctx, res, req.OpportunityID)

	s.metrics.Settlements.WithLabelValues("ok").Inc()
	if result.UsedFallback {
		s.metrics.SettlementFallbacks.Inc()
	}
	return res, nil
}

// isResolved checks the fast ledger first and then the durable table. A
// durable hit is copied back into the ledger.
func (s *SettlementService) isResolved(ctx context.Context, keyHex string) (bool, error) {
	ok, err := s.ledger.IsResolved(ctx, keyHex)
	if err == nil && ok {
		return true, nil
	}
	if err != nil {
		s.logger.WarnContext(ctx, "settlement_service: ledger check failed, using store",
			slog.String("mirror_key", keyHex),
			slog.String("error", err.Error()),
		)
	}

	stored, err := s.resolutions.Get(ctx, keyHex)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("settlement_service: check resolution %s: %w", keyHex, err)
	}
	if lerr := s.ledger.MarkResolved(ctx, stored); lerr != nil && !errors.Is(lerr, domain.ErrAlreadyResolved) {
		s.logger.WarnContext(ctx, "settlement_service: ledger backfill failed", slog.String("error", lerr.Error()))
	}
	return true, nil
}

// record writes a successful resolution everywhere it is tracked. The chain
// is already final, so every step here is best effort.
func (s *SettlementService) record(ctx context.Context, res domain.Resolution, opportunityID string) {
	if err := s.ledger.MarkResolved(ctx, res); err != nil && !errors.Is(err, domain.ErrAlreadyResolved) {
		s.logger.ErrorContext(ctx, "settlement_service: ledger write failed",
			slog.String("mirror_key", res.MirrorKey),
			slog.String("error", err.Error()),
		)
	}
	if err := s.resolutions.Record(ctx, res); err != nil && !errors.Is(err, domain.ErrAlreadyResolved) {
		s.logger.ErrorContext(ctx, "settlement_service: resolution record failed",
			slog.String("mirror_key", res.MirrorKey),
			slog.String("error", err.Error()),
		)
	}
	if opportunityID != "" {
		if err := s.opps.MarkExecuted(ctx, opportunityID); err != nil {
			s.logger.WarnContext(ctx, "settlement_service: mark opportunity executed failed",
				slog.String("opp_id", opportunityID),
				slog.String("error", err.Error()),
			)
		}
	}

	detail := map[string]any{
		"mirror_key":     res.MirrorKey,
		"yes_won":        res.YesWon,
		"source":         string(res.Source),
		"tx_hash":        res.TxHash,
		"block_number":   res.BlockNumber,
		"attempts":       res.Attempts,
		"opportunity_id": opportunityID,
	}
	s.logAudit(ctx, notify.EventSettlementSucceeded, detail)
	s.publish(ctx, notify.EventSettlementSucceeded, detail)

	title, msg := notify.FormatResolution(res)
	_ = s.notifier.Notify(ctx, notify.EventSettlementSucceeded, title, msg) // logged

	s.logger.InfoContext(ctx, "settlement_service: resolved",
		slog.String("mirror_key", res.MirrorKey),
		slog.String("tx", res.TxHash),
		slog.Uint64("block", res.BlockNumber),
	)
}

func (s *SettlementService) fail(ctx context.Context, keyHex string, req SettlementRequest, err error) {
	outcome := "failed"
	if errors.Is(err, domain.ErrUnauthorized) {
		outcome = "unauthorized"
	}
	s.metrics.Settlements.WithLabelValues(outcome).Inc()

	detail := map[string]any{
		"mirror_key": keyHex,
		"yes_won":    req.YesWon,
		"error":      err.Error(),
	}
	var serr *settlement.Error
	if errors.As(err, &serr) {
		detail["op"] = serr.Op
		detail["attempts"] = serr.Attempts
	}
	s.logAudit(ctx, notify.EventSettlementFailed, detail)
	s.publish(ctx, notify.EventSettlementFailed, detail)

	title, msg := notify.FormatSettlementFailure(keyHex, err)
	_ = s.notifier.Notify(ctx, notify.EventSettlementFailed, title, msg) // logged

	s.logger.ErrorContext(ctx, "settlement_service: resolve failed",
		slog.String("mirror_key", keyHex),
		slog.String("error", err.Error()),
	)
}

func (s *SettlementService) logAudit(ctx context.Context, event string, detail map[string]any) {
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.logger.WarnContext(ctx, "settlement_service: audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (s *SettlementService) publish(ctx context.Context, event string, detail map[string]any) {
	if s.bus == nil {
		return
	}
	payload := make(map[string]any, len(detail)+1)
	for k, v := range detail {
		payload[k] = v
	}
	payload["event"] = event
	evt, _ := json.Marshal(payload)
	if err := s.bus.Publish(ctx, domain.ChannelSettlement, evt); err != nil {
		s.logger.WarnContext(ctx, "settlement_service: publish event failed", slog.String("error", err.Error()))
	}
}
