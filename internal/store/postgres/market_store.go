package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

var _ domain.MarketStore = (*MarketStore)(nil)

const upsertMarketSQL = `
	INSERT INTO markets (
		id, external_id, source, question, yes_price, no_price,
		volume, liquidity, end_time, category, status, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10, $11, NOW()
	)
	ON CONFLICT (id) DO UPDATE SET
		question   = EXCLUDED.question,
		yes_price  = EXCLUDED.yes_price,
		no_price   = EXCLUDED.no_price,
		volume     = EXCLUDED.volume,
		liquidity  = EXCLUDED.liquidity,
		end_time   = EXCLUDED.end_time,
		category   = EXCLUDED.category,
		status     = EXCLUDED.status,
		updated_at = NOW()`

func marketArgs(m domain.UnifiedMarket) []any {
	return []any{
		m.ID, m.ExternalID, string(m.Source), m.Question, m.YesPrice, m.NoPrice,
		m.Volume, m.Liquidity, m.EndTime, m.Category, string(m.Status),
	}
}

// UpsertBatch inserts or updates multiple markets in a single batch operation.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.UnifiedMarket) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(upsertMarketSQL, marketArgs(m)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch item %d (%s): %w", i, markets[i].ID, err)
		}
	}
	return nil
}

const marketCols = `id, external_id, source, question, yes_price, no_price,
	volume, liquidity, end_time, category, status`

// scanMarket scans a single market row into a domain.UnifiedMarket.
func scanMarket(row pgx.Row) (domain.UnifiedMarket, error) {
	var (
		m              domain.UnifiedMarket
		source, status string
	)
	err := row.Scan(
		&m.ID, &m.ExternalID, &source, &m.Question, &m.YesPrice, &m.NoPrice,
		&m.Volume, &m.Liquidity, &m.EndTime, &m.Category, &status,
	)
	if err != nil {
		return domain.UnifiedMarket{}, err
	}
	m.Source = domain.Venue(source)
	m.Status = domain.MarketStatus(status)
	return m, nil
}

// ListActive returns active markets, most recently refreshed first.
func (s *MarketStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.UnifiedMarket, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE status = 'active' ORDER BY updated_at DESC, id`
	args := []any{}
	argIdx := 1

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.UnifiedMarket
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list active markets rows: %w", err)
	}
	return markets, nil
}
