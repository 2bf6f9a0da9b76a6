// Package builtins provides built-in order-generator implementations that
// ship with the backtester.
package builtins

import (
	"errors"

	"backtester/internal/domain"
	"backtester/internal/marketdata"
	"backtester/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Generator = (*SMACross)(nil)

// SMACross generates a buy when the short-period SMA crosses above the
// long-period SMA, and a sell when it crosses below. It keeps the previous
// step's SMA values per symbol as its only internal state.
type SMACross struct {
	shortPeriod int
	longPeriod  int
	qty         float64

	prevShort map[string]float64
	prevLong  map[string]float64
}

// NewSMACross creates an SMACross strategy. It fails with a ConfigError if
// the short period is not strictly less than the long period.
func NewSMACross(short, long int, qty float64) (*SMACross, error) {
	if short < 1 || short >= long {
		return nil, &domain.ConfigError{
			Field: "short_period",
			Err:   errors.New("short period must be >= 1 and < long period"),
		}
	}
	if qty <= 0 {
		return nil, &domain.ConfigError{
			Field: "qty",
			Err:   errors.New("qty must be positive"),
		}
	}
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
		qty:         qty,
		prevShort:   make(map[string]float64),
		prevLong:    make(map[string]float64),
	}, nil
}

// Name returns "sma-cross".
func (s *SMACross) Name() string { return "sma-cross" }

// Generate emits a market buy on a golden cross and a market sell on a dead
// cross, per symbol.
func (s *SMACross) Generate(view *marketdata.View, _ domain.Snapshot) ([]domain.Order, error) {
	var orders []domain.Order

	for _, sym := range view.Symbols() {
		bars := view.Bars(sym)
		if len(bars) < s.longPeriod {
			continue
		}

		short := smaClose(bars, s.shortPeriod)
		long := smaClose(bars, s.longPeriod)
		prevShort, prevLong := s.prevShort[sym], s.prevLong[sym]

		if prevShort != 0 && prevLong != 0 {
			switch {
			case prevShort <= prevLong && short > long:
				orders = append(orders, domain.Order{
					Symbol:   sym,
					Side:     domain.OrderSideBuy,
					Type:     domain.OrderTypeMarket,
					Qty:      s.qty,
					IssuedAt: view.At(),
				})
			case prevShort >= prevLong && short < long:
				orders = append(orders, domain.Order{
					Symbol:   sym,
					Side:     domain.OrderSideSell,
					Type:     domain.OrderTypeMarket,
					Qty:      s.qty,
					IssuedAt: view.At(),
				})
			}
		}

		s.prevShort[sym] = short
		s.prevLong[sym] = long
	}

	return orders, nil
}

// smaClose averages the closes of the last n bars. Callers guarantee
// len(bars) >= n.
func smaClose(bars []domain.Bar, n int) float64 {
	sum := 0.0
	for _, b := range bars[len(bars)-n:] {
		sum += b.Close
	}
	return sum / float64(n)
}
