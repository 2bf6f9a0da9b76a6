package builtins

import (
	"errors"

	"backtester/internal/domain"
	"backtester/internal/marketdata"
	"backtester/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Generator = (*MeanReversion)(nil)

// MeanReversion buys when the latest close is below its rolling mean and
// sells when it is above. It is stateless: the rolling mean is recomputed
// from the visible history each step.
type MeanReversion struct {
	window int
	qty    float64
}

// NewMeanReversion creates a MeanReversion strategy with the given rolling
// window and per-signal order quantity.
func NewMeanReversion(window int, qty float64) (*MeanReversion, error) {
	if window < 2 {
		return nil, &domain.ConfigError{
			Field: "window",
			Err:   errors.New("window must be at least 2"),
		}
	}
	if qty <= 0 {
		return nil, &domain.ConfigError{
			Field: "qty",
			Err:   errors.New("qty must be positive"),
		}
	}
	return &MeanReversion{window: window, qty: qty}, nil
}

// Name returns "mean-reversion".
func (m *MeanReversion) Name() string { return "mean-reversion" }

// Generate emits one market order per symbol whose close deviates from its
// rolling mean. Symbols with fewer bars than the window are skipped; a close
// exactly on the mean yields no order.
func (m *MeanReversion) Generate(view *marketdata.View, _ domain.Snapshot) ([]domain.Order, error) {
	var orders []domain.Order

	for _, sym := range view.Symbols() {
		bars := view.Bars(sym)
		if len(bars) < m.window {
			continue
		}

		mean := smaClose(bars, m.window)
		close := bars[len(bars)-1].Close

		var side domain.OrderSide
		switch {
		case close < mean:
			side = domain.OrderSideBuy
		case close > mean:
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
