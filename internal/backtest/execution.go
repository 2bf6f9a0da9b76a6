package backtest

import (
	"fmt"

	"backtester/internal/domain"
)

// SlippageModel adjusts an execution price against the trader: up for buys,
// down for sells.
type SlippageModel interface {
	Adjust(price float64, side domain.OrderSide) float64
}

// AdditiveSlippage shifts the price by a fixed amount per share.
type AdditiveSlippage struct {
	Amount float64
}

func (s AdditiveSlippage) Adjust(price float64, side domain.OrderSide) float64 {
	if side == domain.OrderSideBuy {
		return price + s.Amount
	}
	return price - s.Amount
}

// MultiplicativeSlippage shifts the price by a fraction of itself, expressed
// in basis points (10 bps = 0.1%).
type MultiplicativeSlippage struct {
	Bps float64
}

func (s MultiplicativeSlippage) Adjust(price float64, side domain.OrderSide) float64 {
	delta := price * s.Bps / 10000
	if side == domain.OrderSideBuy {
		return price + delta
	}
	return price - delta
}

// FeeSchedule computes commission for a fill: a per-share component plus a
// fraction of notional, floored at Minimum.
type FeeSchedule struct {
	PerShare    float64
	NotionalBps float64
	Minimum     float64
}

// Fee returns the commission for qty shares at price. Zero-quantity fills
// carry no fee.
func (f FeeSchedule) Fee(price, qty float64) float64 {
	if qty == 0 {
		return 0
	}
	fee := f.PerShare*qty + price*qty*f.NotionalBps/10000
	if fee < f.Minimum {
		fee = f.Minimum
	}
	return fee
}

// Simulator executes orders against the next bar's data and mutates the
// portfolio in place. Orders generated at step t always execute against the
// bar at t+1: market orders at that bar's open, limit orders at their limit
// price when it lies within the bar's range. Unfilled limit orders lapse.
type Simulator struct {
	slippage   SlippageModel
	fees       FeeSchedule
	allowShort bool
	risk       *RiskManager
}

// NewSimulator creates a Simulator. risk may be nil to disable pre-trade
// checks; slippage may be nil for frictionless fills.
func NewSimulator(slippage SlippageModel, fees FeeSchedule, allowShort bool, risk *RiskManager) *Simulator {
	if slippage == nil {
		slippage = AdditiveSlippage{}
	}
	return &Simulator{
		slippage:   slippage,
		fees:       fees,
		allowShort: allowShort,
		risk:       risk,
	}
}

// Execute attempts each order against its instrument's next bar and applies
// the resulting fills to the portfolio. Every order produces exactly one
// Fill: rejections and lapses are recorded as zero-quantity fills with a
// reason code and never stop the run.
func (s *Simulator) Execute(orders []domain.Order, nextBars map[string]domain.Bar, pf *Portfolio) []domain.Fill {
	fills := make([]domain.Fill, 0, len(orders))
	for _, o := range orders {
		fills = append(fills, s.executeOne(o, nextBars, pf))
	}
	return fills
}

func (s *Simulator) executeOne(o domain.Order, nextBars map[string]domain.Bar, pf *Portfolio) domain.Fill {
	reject := func(ts domain.Bar, reason string) domain.Fill {
		return domain.Fill{
			OrderID:   o.ID,
			Symbol:    o.Symbol,
			Side:      o.Side,
			Timestamp: ts.Timestamp,
			Reason:    reason,
		}
	}

	bar, ok := nextBars[o.Symbol]
	if !ok {
		f := reject(domain.Bar{}, domain.RejectNoMarketData)
		f.Timestamp = o.IssuedAt
		return f
	}

	if o.Qty <= 0 {
		return reject(bar, domain.RejectInvalidQty)
	}

	var price float64
	switch o.Type {
	case domain.OrderTypeLimit:
		// A limit order fills at its limit price only if the next bar
		// traded through it; otherwise it lapses.
		if o.LimitPrice < bar.Low || o.LimitPrice > bar.High {
			return reject(bar, domain.RejectLimitNotReached)
		}
		price = o.LimitPrice
	default:
		price = s.slippage.Adjust(bar.Open, o.Side)
	}

	fees := s.fees.Fee(price, o.Qty)

	switch o.Side {
	case domain.OrderSideBuy:
		if cost := o.Qty*price + fees; cost > pf.Cash() {
			return reject(bar, domain.RejectInsufficientCash)
		}
	case domain.OrderSideSell:
		if !s.allowShort && o.Qty > pf.Position(o.Symbol).Qty {
			return reject(bar, domain.RejectInsufficientPosition)
		}
	default:
		return reject(bar, fmt.Sprintf("unknown side %q", o.Side))
	}

	if s.risk != nil {
		if err := s.risk.CheckOrder(o, price, pf); err != nil {
			return reject(bar, domain.RejectRiskLimit)
		}
	}

	fill := domain.Fill{
		OrderID:   o.ID,
		Symbol:    o.Symbol,
		Side:      o.Side,
		Qty:       o.Qty,
		Price:     price,
		Fees:      fees,
		Timestamp: bar.Timestamp,
	}
	pf.Apply(fill)
	return fill
}
