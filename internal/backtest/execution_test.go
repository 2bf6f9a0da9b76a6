package backtest

import (
	"math"
	"testing"
	"time"

	"backtester/internal/domain"
)

var execDay = time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)

func nextBar(open, high, low, close float64) map[string]domain.Bar {
	return map[string]domain.Bar{
		"AAPL": {
			Symbol: "AAPL", Timestamp: execDay,
			Open: open, High: high, Low: low, Close: close,
			Volume: 1000,
		},
	}
}

func marketBuy(qty float64) domain.Order {
	return domain.Order{
		ID: "ord-1", Symbol: "AAPL",
		Side: domain.OrderSideBuy, Type: domain.OrderTypeMarket, Qty: qty,
	}
}

func TestMarketOrderFillsAtNextOpen(t *testing.T) {
	sim := NewSimulator(nil, FeeSchedule{}, false, nil)
	pf := NewPortfolio(10000)

	fills := sim.Execute([]domain.Order{marketBuy(10)}, nextBar(101, 105, 99, 104), pf)

	if len(fills) != 1 {
		t.Fatalf("got %d fills, want 1", len(fills))
	}
	f := fills[0]
	if f.Rejected() {
		t.Fatalf("fill rejected: %s", f.Reason)
	}
	if f.Price != 101 {
		t.Errorf("fill price = %v, want next bar open 101", f.Price)
	}
	if !f.Timestamp.Equal(execDay) {
		t.Errorf("fill timestamp = %v, want next bar's %v", f.Timestamp, execDay)
	}
	if pf.Cash() != 10000-1010 {
		t.Errorf("cash = %v, want %v", pf.Cash(), 10000-1010)
	}
	if pos := pf.Position("AAPL"); pos.Qty != 10 || pos.AvgCost != 101 {
		t.Errorf("position = %+v, want qty 10 at 101", pos)
	}
}

func TestSlippageAndFees(t *testing.T) {
	sim := NewSimulator(
		MultiplicativeSlippage{Bps: 10}, // 0.1%
		FeeSchedule{PerShare: 0.01, Minimum: 1},
		false, nil,
	)
	pf := NewPortfolio(100000)

	fills := sim.Execute([]domain.Order{marketBuy(100)}, nextBar(100, 101, 99, 100), pf)

	f := fills[0]
	wantPrice := 100 * (1 + 10.0/10000)
	if math.Abs(f.Price-wantPrice) > 1e-9 {
		t.Errorf("buy price = %v, want %v (slipped against the buyer)", f.Price, wantPrice)
	}
	if f.Fees != 1 {
		t.Errorf("fees = %v, want minimum 1 (per-share 0.01×100 = 1)", f.Fees)
	}

	// Sells slip downward.
	sellFills := sim.Execute([]domain.Order{{
		ID: "ord-2", Symbol: "AAPL", Side: domain.OrderSideSell,
		Type: domain.OrderTypeMarket, Qty: 50,
	}}, nextBar(100, 101, 99, 100), pf)
	wantSell := 100 * (1 - 10.0/10000)
	if math.Abs(sellFills[0].Price-wantSell) > 1e-9 {
		t.Errorf("sell price = %v, want %v", sellFills[0].Price, wantSell)
	}
}

func TestLimitOrderFillWindow(t *testing.T) {
	sim := NewSimulator(nil, FeeSchedule{}, false, nil)

	limit := func(px float64) domain.Order {
		return domain.Order{
			ID: "ord-1", Symbol: "AAPL",
			Side: domain.OrderSideBuy, Type: domain.OrderTypeLimit,
			Qty: 10, LimitPrice: px,
		}
	}

	// Limit inside the next bar's range fills at the limit price.
	pf := NewPortfolio(10000)
	fills := sim.Execute([]domain.Order{limit(100)}, nextBar(101, 105, 99, 104), pf)
	if fills[0].Rejected() {
		t.Fatalf("in-range limit rejected: %s", fills[0].Reason)
	}
	if fills[0].Price != 100 {
		t.Errorf("limit fill price = %v, want limit 100", fills[0].Price)
	}

	// Limit below the bar's low lapses with no carry-over.
	pf2 := NewPortfolio(10000)
	fills = sim.Execute([]domain.Order{limit(90)}, nextBar(101, 105, 99, 104), pf2)
	if !fills[0].Rejected() || fills[0].Reason != domain.RejectLimitNotReached {
		t.Errorf("out-of-range limit: %+v, want lapse with %q", fills[0], domain.RejectLimitNotReached)
	}
	if pf2.Cash() != 10000 {
		t.Errorf("lapsed limit moved cash: %v", pf2.Cash())
	}
}

func TestInsufficientCashRejection(t *testing.T) {
	// Buy requiring $10,000 against $500 cash: zero-quantity fill, cash
	// untouched, never a partial over-draft.
	sim := NewSimulator(nil, FeeSchedule{}, false, nil)
	pf := NewPortfolio(500)

	fills := sim.Execute([]domain.Order{marketBuy(100)}, nextBar(100, 101, 99, 100), pf)

	f := fills[0]
	if !f.Rejected() || f.Reason != domain.RejectInsufficientCash {
		t.Fatalf("fill = %+v, want rejection %q", f, domain.RejectInsufficientCash)
	}
	if f.Qty != 0 {
		t.Errorf("rejected fill qty = %v, want 0", f.Qty)
	}
	if pf.Cash() != 500 {
		t.Errorf("cash = %v, want unchanged 500", pf.Cash())
	}
}

func TestSellWithoutHoldingsRejected(t *testing.T) {
	sim := NewSimulator(nil, FeeSchedule{}, false, nil)
	pf := NewPortfolio(10000)

	fills := sim.Execute([]domain.Order{{
		ID: "ord-1", Symbol: "AAPL", Side: domain.OrderSideSell,
		Type: domain.OrderTypeMarket, Qty: 10,
	}}, nextBar(100, 101, 99, 100), pf)

	if !fills[0].Rejected() || fills[0].Reason != domain.RejectInsufficientPosition {
		t.Errorf("fill = %+v, want rejection %q", fills[0], domain.RejectInsufficientPosition)
	}
}

func TestShortSellAllowedWhenConfigured(t *testing.T) {
	sim := NewSimulator(nil, FeeSchedule{}, true, nil)
	pf := NewPortfolio(10000)

	fills := sim.Execute([]domain.Order{{
		ID: "ord-1", Symbol: "AAPL", Side: domain.OrderSideSell,
		Type: domain.OrderTypeMarket, Qty: 10,
	}}, nextBar(100, 101, 99, 100), pf)

	if fills[0].Rejected() {
		t.Errorf("short sell rejected with allowShort enabled: %s", fills[0].Reason)
	}
	if pos := pf.Position("AAPL"); pos.Qty != -10 {
		t.Errorf("short position qty = %v, want -10", pos.Qty)
	}
}

func TestMissingNextBarRejection(t *testing.T) {
	sim := NewSimulator(nil, FeeSchedule{}, false, nil)
	pf := NewPortfolio(10000)

	fills := sim.Execute([]domain.Order{{
		ID: "ord-1", Symbol: "MSFT", Side: domain.OrderSideBuy,
		Type: domain.OrderTypeMarket, Qty: 10,
	}}, nextBar(100, 101, 99, 100), pf) // next bars only cover AAPL

	if !fills[0].Rejected() || fills[0].Reason != domain.RejectNoMarketData {
		t.Errorf("fill = %+v, want rejection %q", fills[0], domain.RejectNoMarketData)
	}
}

func TestRiskLimitRejection(t *testing.T) {
	sim := NewSimulator(nil, FeeSchedule{}, false, NewRiskManager(0.10))
	pf := NewPortfolio(10000)

	// 50 shares at ~100 is half the book; limit is 10%.
	fills := sim.Execute([]domain.Order{marketBuy(50)}, nextBar(100, 101, 99, 100), pf)
	if !fills[0].Rejected() || fills[0].Reason != domain.RejectRiskLimit {
		t.Fatalf("fill = %+v, want rejection %q", fills[0], domain.RejectRiskLimit)
	}

	// 5 shares is 5% of the book and passes.
	fills = sim.Execute([]domain.Order{marketBuy(5)}, nextBar(100, 101, 99, 100), pf)
	if fills[0].Rejected() {
		t.Errorf("within-limit order rejected: %s", fills[0].Reason)
	}
}
