package data

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"backtester/internal/domain"
	md "backtester/internal/marketdata"
	"backtester/internal/store"
	"backtester/internal/util"
)

// Compile-time interface check.
var _ Loader = (*AlpacaLoader)(nil)

// AlpacaLoader fetches daily bars from the Alpaca market-data API and writes
// them through to the local cache, so subsequent runs can use a StoreLoader.
type AlpacaLoader struct {
	client    *marketdata.Client
	store     store.BarStore
	batchSize int
	feed      string
	limiter   *util.RateLimiter
	log       *slog.Logger
}

// AlpacaConfig carries credentials and fetch parameters for the Alpaca
// market-data API.
type AlpacaConfig struct {
	APIKey          string
	APISecret       string
	DataURL         string // override for testing; empty uses the default
	BatchSize       int    // symbols per API call; defaults to 200
	RateLimitPerMin int    // API calls per minute; defaults to 200
	Feed            string // defaults to "sip"
}

// NewAlpacaLoader creates an AlpacaLoader. cache may be nil to skip the
// write-through; logger may be nil for silent operation.
func NewAlpacaLoader(cfg AlpacaConfig, cache store.BarStore, logger *slog.Logger) *AlpacaLoader {
	opts := marketdata.ClientOpts{
		APIKey:    cfg.APIKey,
		APISecret: cfg.APISecret,
	}
	if cfg.DataURL != "" {
		opts.BaseURL = cfg.DataURL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.RateLimitPerMin <= 0 {
		cfg.RateLimitPerMin = 200
	}
	if cfg.Feed == "" {
		cfg.Feed = "sip"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &AlpacaLoader{
		client:    marketdata.NewClient(opts),
		store:     cache,
		batchSize: cfg.BatchSize,
		feed:      cfg.Feed,
		limiter:   util.NewRateLimiter(cfg.RateLimitPerMin),
		log:       logger.With("loader", "alpaca"),
	}
}

// Load fetches daily bars for the instruments in batches, writes them to
// the cache, and assembles the Series. Each batch is retried with backoff
// before the load fails.
func (l *AlpacaLoader) Load(ctx context.Context, instruments []string, start, end time.Time) (*md.Series, error) {
	var all []domain.Bar
	for i := 0; i < len(instruments); i += l.batchSize {
		batch := instruments[i:min(i+l.batchSize, len(instruments))]

		if err := l.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		var bars []domain.Bar
		err := util.Retry(ctx, 3, time.Second, func() error {
			var ferr error
			bars, ferr = l.fetchMultiBars(batch, start, end)
			return ferr
		})
		if err != nil {
			return nil, fmt.Errorf("fetching batch starting at %s: %w", batch[0], err)
		}
		l.log.Info("fetched bars", "symbols", len(batch), "bars", len(bars))

		if l.store != nil {
			if err := l.store.WriteBars(ctx, bars); err != nil {
				return nil, fmt.Errorf("caching bars: %w", err)
			}
		}
		all = append(all, bars...)
	}
	return md.NewSeries(all, md.Daily), nil
}

// fetchMultiBars fetches daily bars for multiple symbols in a single API call.
func (l *AlpacaLoader) fetchMultiBars(symbols []string, start, end time.Time) ([]domain.Bar, error) {
	multiBars, err := l.client.GetMultiBars(symbols, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
		Feed:      marketdata.Feed(l.feed),
	})
	if err != nil {
		return nil, fmt.Errorf("GetMultiBars: %w", err)
	}

	var bars []domain.Bar
	for symbol, alpacaBars := range multiBars {
		for _, ab := range alpacaBars {
			bars = append(bars, domain.Bar{
				Symbol:     strings.ToUpper(symbol),
				Timestamp:  ab.Timestamp,
				Open:       ab.Open,
				High:       ab.High,
				Low:        ab.Low,
				Close:      ab.Close,
				Volume:     int64(ab.Volume),
				TradeCount: int64(ab.TradeCount),
				VWAP:       ab.VWAP,
			})
		}
	}
	return bars, nil
}
