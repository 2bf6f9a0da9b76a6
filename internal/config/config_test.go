package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"backtester/internal/domain"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

const validYAML = `
backtest:
  start: "2023-01-02"
  end: "2023-12-29"
  instruments: ["AAPL", "MSFT"]
  initial_cash: 100000
  max_gap_days: 3
  on_quality_violation: "warn"
strategy:
  name: "mean-reversion"
  params:
    window: 100
    qty: 50
execution:
  slippage_bps: 5
  fee_per_share: 0.005
  fee_minimum: 1.0
  max_position_pct: 0.1
storage:
  data_dir: "/tmp/backtester/data"
  sqlite_path: "/tmp/backtester/results.db"
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  batch_size: 200
  rate_limit_per_min: 200
logging:
  level: "info"
  format: "json"
`

func TestLoad(t *testing.T) {
	// Clear any environment overrides that might interfere.
	for _, k := range []string{"ALPACA_API_KEY", "ALPACA_API_SECRET", "APCA_API_KEY_ID", "APCA_API_SECRET_KEY", "DATA_DIR", "LOG_LEVEL"} {
		os.Unsetenv(k)
	}

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Backtest --
	if cfg.Backtest.Start != "2023-01-02" {
		t.Errorf("Backtest.Start = %q, want %q", cfg.Backtest.Start, "2023-01-02")
	}
	if len(cfg.Backtest.Instruments) != 2 {
		t.Errorf("Backtest.Instruments = %v, want 2 instruments", cfg.Backtest.Instruments)
	}
	if cfg.Backtest.InitialCash != 100000 {
		t.Errorf("Backtest.InitialCash = %v, want 100000", cfg.Backtest.InitialCash)
	}
	if cfg.Backtest.OnQualityViolation != "warn" {
		t.Errorf("Backtest.OnQualityViolation = %q, want warn", cfg.Backtest.OnQualityViolation)
	}
	if got := cfg.MaxGap(); got != 3*24*time.Hour {
		t.Errorf("MaxGap() = %v, want 72h", got)
	}

	// -- Strategy --
	if cfg.Strategy.Name != "mean-reversion" {
		t.Errorf("Strategy.Name = %q, want mean-reversion", cfg.Strategy.Name)
	}
	if cfg.Strategy.Params["window"] != 100 {
		t.Errorf("Strategy.Params[window] = %v, want 100", cfg.Strategy.Params["window"])
	}

	// -- Execution --
	if cfg.Execution.SlippageBps != 5 {
		t.Errorf("Execution.SlippageBps = %v, want 5", cfg.Execution.SlippageBps)
	}
	if cfg.Execution.MaxPositionPct != 0.1 {
		t.Errorf("Execution.MaxPositionPct = %v, want 0.1", cfg.Execution.MaxPositionPct)
	}

	// -- Storage / Alpaca / Logging --
	if cfg.Storage.DataDir != "/tmp/backtester/data" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want test-key", cfg.Alpaca.APIKey)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v, want info/json", cfg.Logging)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on valid config: %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("APCA_API_KEY_ID", "apca-key")

	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// Canonical SDK variable wins over the ALPACA_ alias.
	if cfg.Alpaca.APIKey != "apca-key" {
		t.Errorf("Alpaca.APIKey = %q, want apca-key", cfg.Alpaca.APIKey)
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want /env/data", cfg.Storage.DataDir)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"inverted window", func(c *Config) { c.Backtest.Start, c.Backtest.End = c.Backtest.End, c.Backtest.Start }, "backtest.end"},
		{"bad start date", func(c *Config) { c.Backtest.Start = "not-a-date" }, "backtest.start"},
		{"no instruments", func(c *Config) { c.Backtest.Instruments = nil }, "backtest.instruments"},
		{"zero cash", func(c *Config) { c.Backtest.InitialCash = 0 }, "backtest.initial_cash"},
		{"bad quality policy", func(c *Config) { c.Backtest.OnQualityViolation = "panic" }, "backtest.on_quality_violation"},
		{"no strategy", func(c *Config) { c.Strategy.Name = "" }, "strategy.name"},
		{"both slippage models", func(c *Config) { c.Execution.SlippageAmount = 0.01 }, "execution"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validYAML))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tc.mutate(cfg)

			err = cfg.Validate()
			var cfgErr *domain.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Validate() = %v, want ConfigError", err)
			}
			if cfgErr.Field != tc.field {
				t.Errorf("field = %q, want %q", cfgErr.Field, tc.field)
			}
		})
	}
}
