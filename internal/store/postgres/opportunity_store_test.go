package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alanyoungcy/mirrorarb/internal/domain"
)

// txDB commits a batch only when every item succeeds, like a pipelined batch
// without an explicit transaction. Ids in raced fail with 23505 inside a
// batch; on their own they report 23505 but the racing writer's row exists.
type txDB struct {
	rows   map[string]bool
	raced  map[string]bool
	broken map[string]bool
	execs  int
}

func newTxDB() *txDB {
	return &txDB{rows: map[string]bool{}, raced: map[string]bool{}, broken: map[string]bool{}}
}

func (db *txDB) itemErr(id string) error {
	switch {
	case db.raced[id]:
		return &pgconn.PgError{Code: "23505"}
	case db.broken[id]:
		return errors.New("connection reset")
	}
	return nil
}

func (db *txDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	ids := make([]string, 0, len(b.QueuedQueries))
	for _, q := range b.QueuedQueries {
		ids = append(ids, q.Arguments[0].(string))
	}
	return &txBatch{db: db, ids: ids}
}

func (db *txDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	db.execs++
	id := args[0].(string)
	if db.raced[id] {
		db.rows[id] = true
	}
	if err := db.itemErr(id); err != nil {
		return pgconn.CommandTag{}, err
	}
	db.rows[id] = true
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

type txBatch struct {
	db     *txDB
	ids    []string
	next   int
	failed bool
}

func (b *txBatch) Exec() (pgconn.CommandTag, error) {
	id := b.ids[b.next]
	b.next++
	if err := b.db.itemErr(id); err != nil {
		b.failed = true
		return pgconn.CommandTag{}, err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (b *txBatch) Query() (pgx.Rows, error) { return nil, errors.New("not supported") }
func (b *txBatch) QueryRow() pgx.Row          { return nil }

func (b *txBatch) Close() error {
	if b.failed || b.next < len(b.ids) {
		return nil
	}
	for _, id := range b.ids {
		b.db.rows[id] = true
	}
	return nil
}

func oppsWithIDs(ids ...string) []domain.ArbitrageOpportunity {
	out := make([]domain.ArbitrageOpportunity, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.ArbitrageOpportunity{ID: id, Status: domain.OpportunityActive})
	}
	return out
}

func TestUpsertOpportunitiesBatch(t *testing.T) {
	t.Parallel()

	db := newTxDB()
	if err := upsertOpportunities(context.Background(), db, oppsWithIDs("o0", "o1", "o2")); err != nil {
		t.Fatalf("upsertOpportunities: %v", err)
	}
	if len(db.rows) != 3 {
		t.Errorf("rows = %v, want o0 o1 o2", db.rows)
	}
	if db.execs != 0 {
		t.Errorf("single-row execs = %d, want 0", db.execs)
	}
}

func TestUpsertOpportunitiesDuplicateKeyKeepsEveryRow(t *testing.T) {
	t.Parallel()

	db := newTxDB()
	db.raced["o1"] = true
	if err := upsertOpportunities(context.Background(), db, oppsWithIDs("o0", "o1", "o2")); err != nil {
		t.Fatalf("upsertOpportunities: %v", err)
	}
	for _, id := range []string{"o0", "o1", "o2"} {
		if !db.rows[id] {
			t.Errorf("row %s missing after duplicate-key recovery", id)
		}
	}
	if db.execs != 3 {
		t.Errorf("single-row execs = %d, want 3", db.execs)
	}
}

func TestUpsertOpportunitiesOtherErrorPropagates(t *testing.T) {
	t.Parallel()

	db := newTxDB()
	db.broken["o1"] = true
	err := upsertOpportunities(context.Background(), db, oppsWithIDs("o0", "o1"))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(db.rows) != 0 {
		t.Errorf("rows = %v, want none committed", db.rows)
	}
}
