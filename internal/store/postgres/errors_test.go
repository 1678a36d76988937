package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"unique", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped_unique", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"}), true},
		{"fk_violation", &pgconn.PgError{Code: "23503"}, false},
	}
	for _, tt := range tests {
		if got := isUniqueViolation(tt.err); got != tt.want {
			t.Errorf("%s: isUniqueViolation = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDSN(t *testing.T) {
	t.Parallel()

	if got := DSN(ClientConfig{DSN: "postgres://x"}); got != "postgres://x" {
		t.Errorf("explicit DSN = %q", got)
	}
	got := DSN(ClientConfig{Host: "db", User: "u", Password: "p", Database: "arb"})
	if got != "postgres://u:p@db:5432/arb?sslmode=disable" {
		t.Errorf("built DSN = %q", got)
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	t.Parallel()

	data, err := migrationsFS.ReadFile("migrations/001_init.sql")
	if err != nil {
		t.Fatalf("read embedded migration: %v", err)
	}
	for _, table := range []string{"markets", "arbitrage_opportunities", "resolutions", "audit_log"} {
		if !containsTable(string(data), table) {
			t.Errorf("migration does not create %s", table)
		}
	}
}

func containsTable(sql, table string) bool {
	return strings.Contains(sql, "CREATE TABLE IF NOT EXISTS "+table+" (")
}
