package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Terminal.Host != "localhost" || cfg.Terminal.Port != "9910" {
		t.Errorf("unexpected terminal defaults: %+v", cfg.Terminal)
	}
	if cfg.Locate.MaxTotalCost != "2.50" || cfg.Locate.BlockSize != 100 {
		t.Errorf("unexpected locate defaults: %+v", cfg.Locate)
	}
	if cfg.MarketData.TapeDepth != 1000 {
		t.Errorf("tape depth = %d; want 1000", cfg.MarketData.TapeDepth)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
terminal:
  host: trading-gw
  port: "9920"
  tls: true
  timeout: 10s
market_data:
  tape_depth: 500
locate:
  max_total_cost: "5.00"
recorder:
  enabled: true
  path: /tmp/ticks.db
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Terminal.Host != "trading-gw" || !cfg.Terminal.TLS {
		t.Errorf("unexpected terminal: %+v", cfg.Terminal)
	}
	if cfg.Terminal.Timeout.Std() != 10*time.Second {
		t.Errorf("timeout = %s; want 10s", cfg.Terminal.Timeout.Std())
	}
	if cfg.MarketData.TapeDepth != 500 {
		t.Errorf("tape depth = %d; want 500", cfg.MarketData.TapeDepth)
	}
	if cfg.Locate.MaxTotalCost != "5.00" {
		t.Errorf("max total cost = %s", cfg.Locate.MaxTotalCost)
	}
	// Untouched sections keep their defaults.
	if cfg.Locate.BlockSize != 100 {
		t.Errorf("block size lost its default: %d", cfg.Locate.BlockSize)
	}
	if !cfg.Recorder.Enabled || cfg.Recorder.Path != "/tmp/ticks.db" {
		t.Errorf("unexpected recorder: %+v", cfg.Recorder)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TERMINAL_HOST", "env-host")
	t.Setenv("TERMINAL_ACCOUNT", "ACCT9")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Terminal.Host != "env-host" || cfg.Terminal.Account != "ACCT9" {
		t.Errorf("env overrides not applied: %+v", cfg.Terminal)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %s; want debug", cfg.Logging.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
