package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_EnvOnlyDefaults(t *testing.T) {
	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.Ledger.MaxAttempts != 3 {
		t.Fatalf("max_attempts=%d want 3", cfg.Ledger.MaxAttempts)
	}
	if cfg.Ledger.RetryBackoff != time.Second {
		t.Fatalf("retry_backoff=%s want 1s", cfg.Ledger.RetryBackoff)
	}
	if cfg.Keeper.Cooldown != 5*time.Second {
		t.Fatalf("cooldown=%s want 5s", cfg.Keeper.Cooldown)
	}
	if cfg.Keeper.RoundDuration != 300*time.Second {
		t.Fatalf("round_duration=%s want 300s", cfg.Keeper.RoundDuration)
	}
	if cfg.Oracle.CacheTTL != time.Second {
		t.Fatalf("cache_ttl=%s want 1s", cfg.Oracle.CacheTTL)
	}
	if cfg.Ledger.ChainID != 0 || cfg.Keeper.Address != "" {
		t.Fatalf("chain_id=%d address=%q want unset", cfg.Ledger.ChainID, cfg.Keeper.Address)
	}
	if cfg.Keeper.FeeBasisPoints != 200 {
		t.Fatalf("fee_basis_points=%d want 200", cfg.Keeper.FeeBasisPoints)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KEEPER_LEDGER_MAX_ATTEMPTS", "5")
	t.Setenv("KEEPER_KEEPER_COOLDOWN", "2s")
	t.Setenv("KEEPER_KEEPER_ADDRESS", "0xa11ce")
	t.Setenv("KEEPER_LEDGER_CHAIN_ID", "2")
	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.Ledger.MaxAttempts != 5 {
		t.Fatalf("max_attempts=%d want 5", cfg.Ledger.MaxAttempts)
	}
	if cfg.Keeper.Cooldown != 2*time.Second {
		t.Fatalf("cooldown=%s want 2s", cfg.Keeper.Cooldown)
	}
	if cfg.Keeper.Address != "0xa11ce" || cfg.Ledger.ChainID != 2 {
		t.Fatalf("address=%q chain_id=%d", cfg.Keeper.Address, cfg.Ledger.ChainID)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := []byte("ledger:\n  module_address: \"0xabc\"\noracle:\n  feed_id: \"feed-1\"\n")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.Ledger.ModuleAddress != "0xabc" {
		t.Fatalf("module_address=%q", cfg.Ledger.ModuleAddress)
	}
	if cfg.Oracle.FeedID != "feed-1" {
		t.Fatalf("feed_id=%q", cfg.Oracle.FeedID)
	}
	if cfg.Ledger.ModuleName != "betting" {
		t.Fatalf("module_name=%q want betting", cfg.Ledger.ModuleName)
	}
}
