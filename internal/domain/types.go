// Package domain defines the core data types shared across the backtester:
// bars, orders, fills, positions, and portfolio snapshots.
package domain

import "time"

// Bar is a single OHLCV observation for one instrument at one timestamp.
// Bars are value types and are never mutated after they are produced.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// OrderSide distinguishes buys from sells.
type OrderSide string

// OrderType distinguishes market orders from limit orders.
type OrderType string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"

	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// Order is a request to trade, emitted by an order generator. An Order is
// never mutated after issuance; a cancel/replace is a new Order that points
// at the original through ReplacesID. Each order is consumed exactly once by
// the execution simulator at the next eligible bar.
type Order struct {
	ID         string
	Symbol     string
	Side       OrderSide
	Type       OrderType
	Qty        float64
	LimitPrice float64 // only meaningful for OrderTypeLimit
	IssuedAt   time.Time
	ReplacesID string
}

// Reason codes recorded on zero-quantity fills. An empty Reason means the
// order executed normally.
const (
	RejectInsufficientCash     = "insufficient cash"
	RejectInsufficientPosition = "insufficient position"
	RejectLimitNotReached      = "limit not reached"
	RejectRiskLimit            = "risk limit"
	RejectNoMarketData         = "no market data"
	RejectEndOfData            = "end of data"
	RejectInvalidQty           = "invalid quantity"
)

// Fill is the realized execution of an Order, or the terminal record of its
// rejection. Rejections carry Qty == 0 and a non-empty Reason; they are an
// expected runtime outcome, not an error.
type Fill struct {
	OrderID   string
	Symbol    string
	Side      OrderSide
	Qty       float64
	Price     float64
	Fees      float64
	Timestamp time.Time
	Reason    string
}

// Rejected reports whether the fill records a rejection rather than an
// execution.
func (f Fill) Rejected() bool {
	return f.Qty == 0 && f.Reason != ""
}

// Position is the holding in a single instrument. AvgCost is maintained with
// weighted-average-cost accounting and excludes fees.
type Position struct {
	Symbol  string
	Qty     float64
	AvgCost float64
}

// Snapshot is an immutable point-in-time copy of portfolio state, taken once
// per simulated step. Positions is a deep copy and never aliases live state.
type Snapshot struct {
	Timestamp   time.Time
	Cash        float64
	Positions   map[string]Position
	RealizedPnL float64
	Equity      float64
}

// Position returns the snapshot's position for symbol, or a zero position if
// none is held.
func (s Snapshot) Position(symbol string) Position {
	if p, ok := s.Positions[symbol]; ok {
		return p
	}
	return Position{Symbol: symbol}
}
