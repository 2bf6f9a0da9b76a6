// Package backtest contains the simulation core: the portfolio aggregate,
// the execution simulator, and the replay engine that drives a strategy
// over historical data.
package backtest

import (
	"math"
	"time"

	"backtester/internal/domain"
)

// Portfolio tracks cash, positions, and realized P&L for a single backtest
// run. It is owned exclusively by the replay loop and mutated only through
// Apply; everything else sees immutable snapshots.
type Portfolio struct {
	cash      float64
	positions map[string]*domain.Position
	realized  float64
}

// NewPortfolio creates a Portfolio with the given starting cash and no
// positions.
func NewPortfolio(initialCash float64) *Portfolio {
	return &Portfolio{
		cash:      initialCash,
		positions: make(map[string]*domain.Position),
	}
}

// Cash returns the current cash balance.
func (p *Portfolio) Cash() float64 { return p.cash }

// RealizedPnL returns the accumulated realized profit and loss.
func (p *Portfolio) RealizedPnL() float64 { return p.realized }

// Position returns the current position for symbol, or a zero position.
func (p *Portfolio) Position(symbol string) domain.Position {
	if pos, ok := p.positions[symbol]; ok {
		return *pos
	}
	return domain.Position{Symbol: symbol}
}

// Apply mutates cash and the relevant position according to the fill.
// Rejected (zero-quantity) fills are a no-op. Average cost is maintained
// with weighted-average accounting and excludes fees: fees on exposure-
// increasing fills reduce cash only, while fees on position-reducing fills
// are netted against the realized P&L they book. Short positions carry
// negative quantity; their average cost is the average entry price.
func (p *Portfolio) Apply(f domain.Fill) {
	if f.Qty == 0 {
		return
	}

	pos, ok := p.positions[f.Symbol]
	if !ok {
		pos = &domain.Position{Symbol: f.Symbol}
		p.positions[f.Symbol] = pos
	}

	signed := f.Qty
	if f.Side == domain.OrderSideSell {
		signed = -f.Qty
		p.cash += f.Qty*f.Price - f.Fees
	} else {
		p.cash -= f.Qty*f.Price + f.Fees
	}

	if pos.Qty == 0 || (pos.Qty > 0) == (signed > 0) {
		// Exposure-increasing fill: fold into the weighted average.
		newQty := pos.Qty + signed
		pos.AvgCost = (math.Abs(pos.Qty)*pos.AvgCost + f.Qty*f.Price) / math.Abs(newQty)
		pos.Qty = newQty
		return
	}

	// Position-reducing fill, possibly crossing through zero.
	reduce := math.Min(f.Qty, math.Abs(pos.Qty))
	if pos.Qty > 0 {
		p.realized += reduce * (f.Price - pos.AvgCost)
	} else {
		p.realized += reduce * (pos.AvgCost - f.Price)
	}
	p.realized -= f.Fees

	pos.Qty += signed
	switch {
	case pos.Qty == 0:
		delete(p.positions, f.Symbol)
	case (pos.Qty > 0) == (signed > 0):
		// Crossed through zero: the overshoot opens a fresh position at
		// the fill price.
		pos.AvgCost = f.Price
	}
}

// Snapshot returns an immutable deep copy of the portfolio state at t,
// valuing positions at the supplied closing prices. The returned snapshot
// maintains the equity identity cash + Σ qty×close. Positions without a
// price in closes are valued at their last average cost.
func (p *Portfolio) Snapshot(t time.Time, closes map[string]float64) domain.Snapshot {
	snap := domain.Snapshot{
		Timestamp:   t,
		Cash:        p.cash,
		Positions:   make(map[string]domain.Position, len(p.positions)),
		RealizedPnL: p.realized,
		Equity:      p.cash,
	}
	for sym, pos := range p.positions {
		snap.Positions[sym] = *pos
		price, ok := closes[sym]
		if !ok {
			price = pos.AvgCost
		}
		snap.Equity += pos.Qty * price
	}
	return snap
}
