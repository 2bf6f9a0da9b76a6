package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"backtester/internal/backtest"
	"backtester/internal/config"
	"backtester/internal/data"
	"backtester/internal/marketdata"
	"backtester/internal/metrics"
	"backtester/internal/store"
	"backtester/internal/strategy"
	"backtester/internal/strategy/builtins"
	"backtester/internal/util"
)

func main() {
	cfgPath := flag.String("config", "config/backtest.yaml", "path to YAML config")
	listStrategies := flag.Bool("list-strategies", false, "print registered strategies and exit")
	noSave := flag.Bool("no-save", false, "skip archiving the result to SQLite")
	flag.Parse()

	if p := os.Getenv("BACKTESTER_CONFIG"); p != "" {
		*cfgPath = p
	}

	registry := strategy.NewRegistry()
	builtins.RegisterAll(registry)

	if *listStrategies {
		for _, name := range registry.List() {
			fmt.Println(name)
		}
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level)

	gen, err := registry.Create(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		log.Fatalf("creating strategy: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start, _ := cfg.StartTime()
	end, _ := cfg.EndTime()

	loader := data.NewStoreLoader(store.NewParquetStore(cfg.Storage.DataDir))
	series, err := loader.Load(ctx, cfg.Backtest.Instruments, start, end)
	if err != nil {
		log.Fatalf("loading bars: %v", err)
	}
	logger.Info("series loaded",
		"instruments", len(series.Symbols()),
		"start", series.Start().Format("2006-01-02"),
		"end", series.End().Format("2006-01-02"),
	)

	var slippage backtest.SlippageModel
	switch {
	case cfg.Execution.SlippageBps != 0:
		slippage = backtest.MultiplicativeSlippage{Bps: cfg.Execution.SlippageBps}
	case cfg.Execution.SlippageAmount != 0:
		slippage = backtest.AdditiveSlippage{Amount: cfg.Execution.SlippageAmount}
	}
	fees := backtest.FeeSchedule{
		PerShare:    cfg.Execution.FeePerShare,
		NotionalBps: cfg.Execution.FeeNotionalBps,
		Minimum:     cfg.Execution.FeeMinimum,
	}
	var risk *backtest.RiskManager
	if cfg.Execution.MaxPositionPct > 0 {
		risk = backtest.NewRiskManager(cfg.Execution.MaxPositionPct)
	}
	sim := backtest.NewSimulator(slippage, fees, cfg.Execution.AllowShort, risk)

	quality := backtest.QualityAbort
	if cfg.Backtest.OnQualityViolation == "warn" {
		quality = backtest.QualityWarn
	}
	validator := marketdata.NewValidator(cfg.MaxGap(), util.NewTradingCalendar(nil))

	bt := backtest.NewBacktester(series, validator, gen, sim, backtest.Config{
		Start:       start,
		End:         end,
		InitialCash: cfg.Backtest.InitialCash,
		OnQuality:   quality,
		StepBudget:  cfg.Backtest.StepBudget,
	}, logger)

	res, err := bt.Run(ctx)
	if err != nil {
		log.Fatalf("run failed: %v", err)
	}

	fmt.Print(metrics.Analyze(res, nil))

	if !*noSave && cfg.Storage.SQLitePath != "" {
		rs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			log.Fatalf("opening result store: %v", err)
		}
		defer rs.Close()

		id, err := rs.SaveResult(ctx, store.RunRecord{
			Strategy:    res.Strategy,
			Start:       start,
			End:         end,
			InitialCash: cfg.Backtest.InitialCash,
		}, res)
		if err != nil {
			log.Fatalf("archiving result: %v", err)
		}
		logger.Info("result archived", "run_id", id)
	}
}
