package backtest

import (
	"fmt"

	"backtester/internal/domain"
)

// RiskManager enforces pre-trade limits inside the execution simulator.
// Orders that breach a limit are rejected as zero-quantity fills; a risk
// rejection never halts the run.
type RiskManager struct {
	maxPositionPct float64
}

// NewRiskManager creates a RiskManager that caps any single order's
// notional value at maxPositionPct of book equity (e.g. 0.10 for 10%).
// A non-positive fraction disables the check.
func NewRiskManager(maxPositionPct float64) *RiskManager {
	return &RiskManager{maxPositionPct: maxPositionPct}
}

// CheckOrder evaluates whether the order's notional at the prospective
// execution price complies with the configured limit.
func (rm *RiskManager) CheckOrder(o domain.Order, price float64, pf *Portfolio) error {
	if rm.maxPositionPct <= 0 {
		return nil
	}

	equity := pf.Cash()
	for _, pos := range pf.positions {
		equity += pos.Qty * pos.AvgCost
	}

	notional := o.Qty * price
	if limit := rm.maxPositionPct * equity; notional > limit {
		return fmt.Errorf("order notional %.2f exceeds limit %.2f", notional, limit)
	}
	return nil
}
