package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given
// connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)

// A re-detected row keeps its identity and, once executed, its status. Only
// prices, scores and timestamps are refreshed.
const upsertOpportunitySQL = `
	INSERT INTO arbitrage_opportunities (
		id,
		market1_source, market1_id, market1_question, market1_yes, market1_no,
		market2_source, market2_id, market2_question, market2_yes, market2_no,
		strategy, spread, potential_profit, confidence,
		status, detected_at, expires_at, updated_at
	) VALUES (
		$1,
		$2, $3, $4, $5, $6,
		$7, $8, $9, $10, $11,
		$12, $13, $14, $15,
		$16, $17, $18, NOW()
	)
	ON CONFLICT (id) DO UPDATE SET
		market1_yes      = EXCLUDED.market1_yes,
		market1_no       = EXCLUDED.market1_no,
		market2_yes      = EXCLUDED.market2_yes,
		market2_no       = EXCLUDED.market2_no,
		strategy         = EXCLUDED.strategy,
		spread           = EXCLUDED.spread,
		potential_profit = EXCLUDED.potential_profit,
		confidence       = EXCLUDED.confidence,
		detected_at      = EXCLUDED.detected_at,
		expires_at       = EXCLUDED.expires_at,
		status           = CASE
			WHEN arbitrage_opportunities.status = 'executed' THEN 'executed'
			ELSE 'active'
		END,
		updated_at       = NOW()`

func opportunityArgs(o domain.ArbitrageOpportunity) []any {
	return []any{
		o.ID,
		string(o.Market1.Source), o.Market1.ID, o.Market1.Question, o.Market1.YesPrice, o.Market1.NoPrice,
		string(o.Market2.Source), o.Market2.ID, o.Market2.Question, o.Market2.YesPrice, o.Market2.NoPrice,
		string(o.Strategy), o.Spread, o.PotentialProfit, o.Confidence,
		string(o.Status), o.DetectedAt, o.ExpiresAt,
	}
}

// opportunityWriter is the subset of *pgxpool.Pool the upsert path uses.
type opportunityWriter interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// UpsertBatch writes every opportunity in one batch. A duplicate-key error
// (two scans racing on the same id) is treated as success. The batch runs as
// one implicit transaction, so the error rolls back every earlier item too
// and the whole set is rewritten one row at a time.
func (s *OpportunityStore) UpsertBatch(ctx context.Context, opps []domain.ArbitrageOpportunity) error {
	return upsertOpportunities(ctx, s.pool, opps)
}

func upsertOpportunities(ctx context.Context, db opportunityWriter, opps []domain.ArbitrageOpportunity) error {
	if len(opps) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, o := range opps {
		batch.Queue(upsertOpportunitySQL, opportunityArgs(o)...)
	}

	br := db.SendBatch(ctx, batch)
	for i := range opps {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			if isUniqueViolation(err) {
				return upsertEach(ctx, db, opps)
			}
			return fmt.Errorf("postgres: upsert opportunity batch item %d (%s): %w", i, opps[i].ID, err)
		}
	}
	return br.Close()
}

func upsertEach(ctx context.Context, db opportunityWriter, opps []domain.ArbitrageOpportunity) error {
	for _, o := range opps {
		if _, err := db.Exec(ctx, upsertOpportunitySQL, opportunityArgs(o)...); err != nil && !isUniqueViolation(err) {
			return fmt.Errorf("postgres: upsert opportunity %s: %w", o.ID, err)
		}
	}
	return nil
}

const opportunityCols = `id,
	market1_source, market1_id, market1_question, market1_yes, market1_no,
	market2_source, market2_id, market2_question, market2_yes, market2_no,
	strategy, spread, potential_profit, confidence,
	status, detected_at, expires_at`

func scanOpportunity(row pgx.Row) (domain.ArbitrageOpportunity, error) {
	var (
		o                      domain.ArbitrageOpportunity
		src1, src2, kind, stat string
	)
	err := row.Scan(
		&o.ID,
		&src1, &o.Market1.ID, &o.Market1.Question, &o.Market1.YesPrice, &o.Market1.NoPrice,
		&src2, &o.Market2.ID, &o.Market2.Question, &o.Market2.YesPrice, &o.Market2.NoPrice,
		&kind, &o.Spread, &o.PotentialProfit, &o.Confidence,
		&stat, &o.DetectedAt, &o.ExpiresAt,
	)
	if err != nil {
		return domain.ArbitrageOpportunity{}, err
	}
	o.Market1.Source = domain.Venue(src1)
	o.Market2.Source = domain.Venue(src2)
	o.Strategy = domain.StrategyKind(kind)
	o.Status = domain.OpportunityStatus(stat)
	return o, nil
}

func (s *OpportunityStore) list(ctx context.Context, op, query string, args ...any) ([]domain.ArbitrageOpportunity, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", op, err)
	}
	defer rows.Close()

	var opps []domain.ArbitrageOpportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opps = append(opps, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", op, err)
	}
	return opps, nil
}

// ListActive returns active, unexpired opportunities with spread >= MinSpread,
// most profitable first.
func (s *OpportunityStore) ListActive(ctx context.Context, f domain.OpportunityFilter) ([]domain.ArbitrageOpportunity, error) {
	query := `SELECT ` + opportunityCols + ` FROM arbitrage_opportunities
		WHERE status = 'active' AND expires_at > NOW() AND spread >= $1
		ORDER BY potential_profit DESC, id`
	args := []any{f.MinSpread}
	if f.Limit > 0 {
		query += " LIMIT $2"
		args = append(args, f.Limit)
	}
	return s.list(ctx, "list active opportunities", query, args...)
}

// ExpireSuperseded expires every active row a fresh scan did not re-detect.
func (s *OpportunityStore) ExpireSuperseded(ctx context.Context, keep []string) (int64, error) {
	if keep == nil {
		keep = []string{}
	}
	const query = `
		UPDATE arbitrage_opportunities SET
			status     = 'expired',
			updated_at = NOW()
		WHERE status = 'active' AND NOT (id = ANY($1))`

	tag, err := s.pool.Exec(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("postgres: expire superseded opportunities: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ExpireStale expires active rows whose expires_at is before now.
func (s *OpportunityStore) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE arbitrage_opportunities SET
			status     = 'expired',
			updated_at = NOW()
		WHERE status = 'active' AND expires_at < $1`

	tag, err := s.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("postgres: expire stale opportunities: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MarkExecuted flags an opportunity as acted upon.
func (s *OpportunityStore) MarkExecuted(ctx context.Context, id string) error {
	const query = `
		UPDATE arbitrage_opportunities SET
			status     = 'executed',
			updated_at = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: mark opportunity executed %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListExpiredBefore returns expired rows whose expires_at is before the cutoff.
func (s *OpportunityStore) ListExpiredBefore(ctx context.Context, before time.Time) ([]domain.ArbitrageOpportunity, error) {
	query := `SELECT ` + opportunityCols + ` FROM arbitrage_opportunities
		WHERE status = 'expired' AND expires_at < $1
		ORDER BY expires_at, id`
	return s.list(ctx, "list expired opportunities", query, before)
}

// DeleteByIDs removes non-active rows by id.
func (s *OpportunityStore) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `DELETE FROM arbitrage_opportunities WHERE id = ANY($1) AND status <> 'active'`

	tag, err := s.pool.Exec(ctx, query, ids)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Get returns a single opportunity.
func (s *OpportunityStore) Get(ctx context.Context, id string) (domain.ArbitrageOpportunity, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+opportunityCols+` FROM arbitrage_opportunities WHERE id = $1`, id)
	o, err := scanOpportunity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ArbitrageOpportunity{}, domain.ErrNotFound
		}
		return domain.ArbitrageOpportunity{}, fmt.Errorf("postgres: get opportunity %s: %w", id, err)
	}
	return o, nil
}
