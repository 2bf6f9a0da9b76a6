// Package config loads the YAML configuration file and applies environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"backtester/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the backtester.
type Config struct {
	Backtest  BacktestConfig  `yaml:"backtest"`
	Strategy  StrategyConfig  `yaml:"strategy"`
	Execution ExecutionConfig `yaml:"execution"`
	Storage   Storage         `yaml:"storage"`
	Alpaca    Alpaca          `yaml:"alpaca"`
	Logging   Logging         `yaml:"logging"`
}

// BacktestConfig defines the simulation window and replay behaviour.
type BacktestConfig struct {
	Start              string   `yaml:"start"` // YYYY-MM-DD
	End                string   `yaml:"end"`   // YYYY-MM-DD
	Instruments        []string `yaml:"instruments"`
	InitialCash        float64  `yaml:"initial_cash"`
	MaxGapDays         int      `yaml:"max_gap_days"`         // zero means one trading day
	OnQualityViolation string   `yaml:"on_quality_violation"` // abort | warn
	StepBudget         int      `yaml:"step_budget"`
}

// StrategyConfig selects the order generator and its parameters.
type StrategyConfig struct {
	Name   string             `yaml:"name"`
	Params map[string]float64 `yaml:"params"`
}

// ExecutionConfig defines the fill model.
type ExecutionConfig struct {
	SlippageBps    float64 `yaml:"slippage_bps"`
	SlippageAmount float64 `yaml:"slippage_amount"` // per-share, mutually exclusive with bps
	FeePerShare    float64 `yaml:"fee_per_share"`
	FeeNotionalBps float64 `yaml:"fee_notional_bps"`
	FeeMinimum     float64 `yaml:"fee_minimum"`
	AllowShort     bool    `yaml:"allow_short"`
	MaxPositionPct float64 `yaml:"max_position_pct"` // zero disables the risk check
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey          string `yaml:"api_key"`
	APISecret       string `yaml:"api_secret"`
	DataURL         string `yaml:"data_url"`
	BatchSize       int    `yaml:"batch_size"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	Feed            string `yaml:"feed"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate checks the configuration before any data is loaded, so a bad run
// fails at startup rather than mid-simulation.
func (c *Config) Validate() error {
	start, err := c.StartTime()
	if err != nil {
		return err
	}
	end, err := c.EndTime()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return &domain.ConfigError{
			Field: "backtest.end",
			Err:   fmt.Errorf("end %s precedes start %s", c.Backtest.End, c.Backtest.Start),
		}
	}
	if len(c.Backtest.Instruments) == 0 {
		return &domain.ConfigError{Field: "backtest.instruments", Err: fmt.Errorf("at least one instrument required")}
	}
	if c.Backtest.InitialCash <= 0 {
		return &domain.ConfigError{Field: "backtest.initial_cash", Err: fmt.Errorf("must be positive, got %v", c.Backtest.InitialCash)}
	}
	switch c.Backtest.OnQualityViolation {
	case "", "abort", "warn":
	default:
		return &domain.ConfigError{
			Field: "backtest.on_quality_violation",
			Err:   fmt.Errorf("must be abort or warn, got %q", c.Backtest.OnQualityViolation),
		}
	}
	if c.Strategy.Name == "" {
		return &domain.ConfigError{Field: "strategy.name", Err: fmt.Errorf("required")}
	}
	if c.Execution.SlippageBps != 0 && c.Execution.SlippageAmount != 0 {
		return &domain.ConfigError{
			Field: "execution",
			Err:   fmt.Errorf("slippage_bps and slippage_amount are mutually exclusive"),
		}
	}
	return nil
}

// StartTime parses the configured window start.
func (c *Config) StartTime() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.Backtest.Start)
	if err != nil {
		return time.Time{}, &domain.ConfigError{Field: "backtest.start", Err: err}
	}
	return t, nil
}

// EndTime parses the configured window end.
func (c *Config) EndTime() (time.Time, error) {
	t, err := time.Parse("2006-01-02", c.Backtest.End)
	if err != nil {
		return time.Time{}, &domain.ConfigError{Field: "backtest.end", Err: err}
	}
	return t, nil
}

// MaxGap converts the configured gap tolerance into a duration; zero keeps
// the validator default of one sampling period.
func (c *Config) MaxGap() time.Duration {
	return time.Duration(c.Backtest.MaxGapDays) * 24 * time.Hour
}
