package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// ResolutionStore implements domain.ResolutionStore using PostgreSQL. It is
// the durable half of the resolved-key ledger.
type ResolutionStore struct {
	pool *pgxpool.Pool
}

// NewResolutionStore creates a new ResolutionStore backed by the given
// connection pool.
func NewResolutionStore(pool *pgxpool.Pool) *ResolutionStore {
	return &ResolutionStore{pool: pool}
}

var _ domain.ResolutionStore = (*ResolutionStore)(nil)

// Record inserts res. A second record for the same mirror key returns
// domain.ErrAlreadyResolved and leaves the first row untouched.
func (s *ResolutionStore) Record(ctx context.Context, res domain.Resolution) error {
	const query = `
		INSERT INTO resolutions (
			mirror_key, yes_won, source, oracle_signature,
			tx_hash, block_number, attempts, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (mirror_key) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		res.MirrorKey, res.YesWon, string(res.Source), res.OracleSignature,
		res.TxHash, int64(res.BlockNumber), res.Attempts, res.ResolvedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: record resolution %s: %w", res.MirrorKey, domain.ErrAlreadyResolved)
		}
		return fmt.Errorf("postgres: record resolution %s: %w", res.MirrorKey, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: record resolution %s: %w", res.MirrorKey, domain.ErrAlreadyResolved)
	}
	return nil
}

// Get returns the stored resolution for mirrorKey or domain.ErrNotFound.
func (s *ResolutionStore) Get(ctx context.Context, mirrorKey string) (domain.Resolution, error) {
	const query = `
		SELECT mirror_key, yes_won, source, oracle_signature,
			tx_hash, block_number, attempts, resolved_at
		FROM resolutions WHERE mirror_key = $1`

	var (
		res    domain.Resolution
		source string
		block  int64
	)
	err := s.pool.QueryRow(ctx, query, mirrorKey).Scan(
		&res.MirrorKey, &res.YesWon, &source, &res.OracleSignature,
		&res.TxHash, &block, &res.Attempts, &res.ResolvedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Resolution{}, domain.ErrNotFound
		}
		return domain.Resolution{}, fmt.Errorf("postgres: get resolution %s: %w", mirrorKey, err)
	}
	res.Source = domain.Venue(source)
	res.BlockNumber = uint64(block)
	return res, nil
}
