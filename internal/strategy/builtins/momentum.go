package builtins

import (
	"errors"

	"backtester/internal/domain"
	"backtester/internal/marketdata"
	"backtester/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Generator = (*Momentum)(nil)

// Momentum buys instruments whose trailing return over the lookback window
// exceeds the threshold and sells those below the negative threshold.
type Momentum struct {
	window    int
	threshold float64
	qty       float64
}

// NewMomentum creates a Momentum strategy. threshold is a fractional return
// (0.05 means 5% over the window).
func NewMomentum(window int, threshold, qty float64) (*Momentum, error) {
	if window < 1 {
		return nil, &domain.ConfigError{
			Field: "window",
			Err:   errors.New("window must be at least 1"),
		}
	}
	if threshold <= 0 {
		return nil, &domain.ConfigError{
			Field: "threshold",
			Err:   errors.New("threshold must be positive"),
		}
	}
	if qty <= 0 {
		return nil, &domain.ConfigError{
			Field: "qty",
			Err:   errors.New("qty must be positive"),
		}
	}
	return &Momentum{window: window, threshold: threshold, qty: qty}, nil
}

// Name returns "momentum".
func (m *Momentum) Name() string { return "momentum" }

// Generate compares each symbol's close against its close window bars ago
// and emits a market order when the trailing return breaches the threshold.
func (m *Momentum) Generate(view *marketdata.View, _ domain.Snapshot) ([]domain.Order, error) {
	var orders []domain.Order

	for _, sym := range view.Symbols() {
		bars := view.Bars(sym)
		if len(bars) < m.window+1 {
			continue
		}

		base := bars[len(bars)-1-m.window].Close
		if base == 0 {
			continue
		}
		ret := bars[len(bars)-1].Close/base - 1

		var side domain.OrderSide
		switch {
		case ret > m.threshold:
			side = domain.OrderSideBuy
		case ret < -m.threshold:
			side = domain.OrderSideSell
		default:
			continue
		}

		orders = append(orders, domain.Order{
			Symbol:   sym,
			Side:     side,
			Type:     domain.OrderTypeMarket,
			Qty:      m.qty,
			IssuedAt: view.At(),
		})
	}

	return orders, nil
}
