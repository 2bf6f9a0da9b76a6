// Package store defines the storage interfaces for cached market data and
// completed run results, with a Parquet-backed bar cache and a SQLite-backed
// result archive.
package store

import (
	"context"
	"time"

	"backtester/internal/backtest"
	"backtester/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars, merging with any already stored.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given instrument within [start, end].
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListInstruments returns all instruments with cached data, sorted.
	ListInstruments(ctx context.Context) ([]string, error)
}

// RunRecord identifies one archived run.
type RunRecord struct {
	ID          int64
	Strategy    string
	Start       time.Time
	End         time.Time
	InitialCash float64
	FinalEquity float64
	CreatedAt   time.Time
}

// ResultStore archives completed runs with their full snapshot and fill
// history.
type ResultStore interface {
	// SaveResult archives a completed run and returns its assigned ID.
	SaveResult(ctx context.Context, rec RunRecord, res *backtest.Result) (int64, error)

	// ListRuns returns archived run records, newest first.
	ListRuns(ctx context.Context) ([]RunRecord, error)

	// LoadResult reconstructs an archived run's snapshots and fills.
	LoadResult(ctx context.Context, id int64) (*backtest.Result, error)
}
