package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"backtester/internal/config"
	"backtester/internal/data"
	"backtester/internal/store"
	"backtester/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/backtest.yaml", "path to YAML config")
	symbols := flag.String("symbols", "", "comma-separated symbols; defaults to the configured instruments")
	flag.Parse()

	if p := os.Getenv("BACKTESTER_CONFIG"); p != "" {
		*cfgPath = p
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)

	instruments := cfg.Backtest.Instruments
	if *symbols != "" {
		instruments = strings.Split(*symbols, ",")
		for i := range instruments {
			instruments[i] = strings.ToUpper(strings.TrimSpace(instruments[i]))
		}
	}

	start, _ := cfg.StartTime()
	end, _ := cfg.EndTime()

	cache := store.NewParquetStore(cfg.Storage.DataDir)
	loader := data.NewAlpacaLoader(data.AlpacaConfig{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		BatchSize:       cfg.Alpaca.BatchSize,
		RateLimitPerMin: cfg.Alpaca.RateLimitPerMin,
		Feed:            cfg.Alpaca.Feed,
	}, cache, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("fetching bars",
		"instruments", len(instruments),
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"),
	)
	series, err := loader.Load(ctx, instruments, start, end)
	if err != nil {
		log.Fatalf("fetch failed: %v", err)
	}
	logger.Info("cache populated",
		"instruments", len(series.Symbols()),
		"data_dir", cfg.Storage.DataDir,
	)
}
