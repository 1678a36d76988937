package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Defaults().Validate() = %v, want nil", err)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.Matching.MinSimilarity = 1.5
	cfg.Arbitrage.MaxLimit = 500

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"unknown mode", "min_similarity", "max_limit"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestValidateSettlement(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SettlementConfig)
		wantErr string
	}{
		{
			name:    "bad_contract_address",
			mutate:  func(s *SettlementConfig) { s.ContractAddress = "0x1234" },
			wantErr: "contract_address",
		},
		{
			name:    "missing_key",
			mutate:  func(s *SettlementConfig) { s.OraclePrivateKey = "" },
			wantErr: "oracle_private_key",
		},
		{
			name: "encrypted_key_without_password",
			mutate: func(s *SettlementConfig) {
				s.OraclePrivateKey = ""
				s.EncryptedKeyPath = "/tmp/oracle.enc"
			},
			wantErr: "key_password",
		},
		{
			name:    "lock_ttl_shorter_than_resolve",
			mutate:  func(s *SettlementConfig) { s.LockTTL = duration{3 * time.Minute} },
			wantErr: "lock_ttl",
		},
		{
			name: "lock_ttl_follows_timeouts",
			mutate: func(s *SettlementConfig) {
				s.ReceiptTimeout = duration{5 * time.Minute}
			},
			wantErr: "lock_ttl",
		},
		{
			name:    "zero_request_timeout",
			mutate:  func(s *SettlementConfig) { s.RequestTimeout = duration{} },
			wantErr: "request_timeout",
		},
		{
			name:   "valid",
			mutate: func(s *SettlementConfig) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Settlement.Enabled = true
			cfg.Settlement.ContractAddress = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
			cfg.Settlement.PrimaryRPC = "https://testnet.evm.nodes.onflow.org"
			cfg.Settlement.FallbackRPC = "https://fallback.example"
			cfg.Settlement.OraclePrivateKey = "deadbeef"
			tt.mutate(&cfg.Settlement)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultLockOutlastsResolve(t *testing.T) {
	s := Defaults().Settlement
	budget := s.ResolveBudget()
	if budget != 3*30*time.Second+2*60*time.Second {
		t.Fatalf("ResolveBudget() = %v, want 3m30s", budget)
	}
	if s.LockTTL.Duration < budget+ResolveMargin {
		t.Errorf("LockTTL = %v, want >= %v", s.LockTTL.Duration, budget+ResolveMargin)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "scan"

[matching]
min_similarity = 0.55
config_ttl = "5m"

[arbitrage]
default_limit = 10
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("MIRRORARB_ARBITRAGE_DEFAULT_LIMIT", "25")
	t.Setenv("MIRRORARB_SERVER_CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("MIRRORARB_SETTLEMENT_CHAIN_ID", "747")
	t.Setenv("MIRRORARB_SCHEDULE_RESCAN", "@every 30s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Mode != "scan" {
		t.Errorf("Mode = %q, want scan", cfg.Mode)
	}
	if cfg.Matching.MinSimilarity != 0.55 {
		t.Errorf("MinSimilarity = %v, want 0.55", cfg.Matching.MinSimilarity)
	}
	if cfg.Matching.ConfigTTL.Duration != 5*time.Minute {
		t.Errorf("ConfigTTL = %v, want 5m", cfg.Matching.ConfigTTL.Duration)
	}
	if cfg.Arbitrage.DefaultLimit != 25 {
		t.Errorf("DefaultLimit = %d, want env override 25", cfg.Arbitrage.DefaultLimit)
	}
	if got := cfg.Server.CORSOrigins; len(got) != 2 || got[1] != "https://b.example" {
		t.Errorf("CORSOrigins = %v", got)
	}
	if cfg.Settlement.ChainID != 747 {
		t.Errorf("ChainID = %d, want 747", cfg.Settlement.ChainID)
	}
	if cfg.Schedule.Rescan != "@every 30s" {
		t.Errorf("Rescan = %q", cfg.Schedule.Rescan)
	}
	// Untouched sections keep their defaults.
	if cfg.Arbitrage.MaxLimit != 100 {
		t.Errorf("MaxLimit = %d, want default 100", cfg.Arbitrage.MaxLimit)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Settlement.OraclePrivateKey = "secret-key"
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.Server.APIKey = "api"

	out := RedactedConfig(&cfg)
	if out.Settlement.OraclePrivateKey != redacted || out.Postgres.DSN != redacted || out.Server.APIKey != redacted {
		t.Fatalf("secrets not redacted: %+v", out.Settlement)
	}
	if out.Redis.Password != "" {
		t.Errorf("empty secret should stay empty, got %q", out.Redis.Password)
	}
	if cfg.Settlement.OraclePrivateKey != "secret-key" {
		t.Fatal("original config mutated")
	}

	out.Server.CORSOrigins[0] = "mutated"
	if cfg.Server.CORSOrigins[0] == "mutated" {
		t.Fatal("CORSOrigins shares backing array with original")
	}
}
