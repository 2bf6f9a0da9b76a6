// Package data loads historical bar data into a marketdata.Series, either
// from the local Parquet cache or from the Alpaca market-data API.
package data

import (
	"context"
	"fmt"
	"time"

	"backtester/internal/domain"
	"backtester/internal/marketdata"
	"backtester/internal/store"
)

// Loader produces a Series covering [start, end] for a set of instruments.
type Loader interface {
	Load(ctx context.Context, instruments []string, start, end time.Time) (*marketdata.Series, error)
}

// Compile-time interface check.
var _ Loader = (*StoreLoader)(nil)

// StoreLoader reads bars from a local BarStore.
type StoreLoader struct {
	store store.BarStore
}

// NewStoreLoader creates a StoreLoader over the given store.
func NewStoreLoader(s store.BarStore) *StoreLoader {
	return &StoreLoader{store: s}
}

// Load reads cached bars for each instrument and assembles them into a
// daily Series. Instruments with no cached data contribute nothing; range
// and coverage problems are left to the validator.
func (l *StoreLoader) Load(ctx context.Context, instruments []string, start, end time.Time) (*marketdata.Series, error) {
	var all []domain.Bar
	for _, sym := range instruments {
		bars, err := l.store.ReadBars(ctx, sym, start, end)
		if err != nil {
			return nil, fmt.Errorf("reading bars for %s: %w", sym, err)
		}
		all = append(all, bars...)
	}
	return marketdata.NewSeries(all, marketdata.Daily), nil
}
