// Package metrics computes performance statistics from a completed run's
// equity curve and fill history.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"backtester/internal/backtest"
	"backtester/internal/domain"
)

const (
	tradingDaysPerYear = 252
	// Annual risk-free rate used for excess-return calculations.
	riskFreeRate = 0.0045
)

// Report holds the performance statistics of one run. Ratio-style fields
// are NaN when the underlying series is too short to compute them;
// InformationCoefficient is NaN when no benchmark was supplied.
type Report struct {
	DailyReturn            float64
	CumulativeReturn       float64
	LogReturn              float64
	Volatility             float64 // annualized, sqrt(252)
	SharpeRatio            float64
	MaxDrawdown            float64 // most negative peak-to-trough, e.g. -0.25
	VaR5                   float64 // 5% one-day value at risk
	InformationCoefficient float64
	TradeCount             int
	WinRate                float64
	Turnover               float64 // traded notional over mean equity
	FinalEquity            float64
}

// String renders the report as an aligned key/value block for terminal
// output.
func (r Report) String() string {
	var b strings.Builder
	line := func(name string, v float64) {
		if math.IsNaN(v) {
			fmt.Fprintf(&b, "%-24s n/a\n", name)
			return
		}
		fmt.Fprintf(&b, "%-24s %.4f\n", name, v)
	}
	line("daily return", r.DailyReturn)
	line("cumulative return", r.CumulativeReturn)
	line("log return", r.LogReturn)
	line("volatility (ann.)", r.Volatility)
	line("sharpe ratio", r.SharpeRatio)
	line("max drawdown", r.MaxDrawdown)
	line("VaR 5%", r.VaR5)
	line("information coeff.", r.InformationCoefficient)
	fmt.Fprintf(&b, "%-24s %d\n", "trades", r.TradeCount)
	line("win rate", r.WinRate)
	line("turnover", r.Turnover)
	fmt.Fprintf(&b, "%-24s %.2f\n", "final equity", r.FinalEquity)
	return b.String()
}

// Analyze computes a Report from a run result. benchmark, when non-nil,
// is a daily return series aligned with the run's own returns (one entry
// per snapshot-to-snapshot transition) and feeds the information
// coefficient.
func Analyze(res *backtest.Result, benchmark []float64) Report {
	equity := make([]float64, len(res.Snapshots))
	for i, s := range res.Snapshots {
		equity[i] = s.Equity
	}
	returns := dailyReturns(equity)

	rep := Report{
		DailyReturn:            mean(returns),
		CumulativeReturn:       cumulativeReturn(returns),
		LogReturn:              logReturn(returns),
		Volatility:             stddev(returns) * math.Sqrt(tradingDaysPerYear),
		SharpeRatio:            sharpe(returns),
		MaxDrawdown:            maxDrawdown(equity),
		VaR5:                   quantile(returns, 0.05),
		InformationCoefficient: correlation(returns, benchmark),
		FinalEquity:            res.FinalEquity(),
	}
	rep.TradeCount, rep.WinRate, rep.Turnover = tradeStats(res.Fills, mean(equity))
	return rep
}

func dailyReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		rets = append(rets, (equity[i]-equity[i-1])/equity[i-1])
	}
	return rets
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	m := mean(xs)
	variance := 0.0
	for _, x := range xs {
		d := x - m
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(xs)-1))
}

func cumulativeReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}
	prod := 1.0
	for _, r := range returns {
		prod *= 1 + r
	}
	return prod - 1
}

func logReturn(returns []float64) float64 {
	if len(returns) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, r := range returns {
		sum += math.Log(1 + r)
	}
	return sum / float64(len(returns))
}

func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return math.NaN()
	}
	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - riskFreeRate/tradingDaysPerYear
	}
	sd := stddev(excess)
	if sd == 0 {
		return math.NaN()
	}
	return mean(excess) / sd * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown returns the most negative equity-over-running-max ratio,
// zero for a monotonically rising curve.
func maxDrawdown(equity []float64) float64 {
	if len(equity) == 0 {
		return math.NaN()
	}
	peak := equity[0]
	worst := 0.0
	for _, e := range equity {
		if e > peak {
			peak = e
		}
		if dd := e/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

// quantile computes the q-th quantile with linear interpolation between
// order statistics.
func quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// correlation is the Pearson correlation of the overlapping prefix of the
// two series; NaN when either is too short or degenerate.
func correlation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return math.NaN()
	}
	a, b = a[:n], b[:n]

	ma, mb := mean(a), mean(b)
	var cov, va, vb float64
	for i := 0; i < n; i++ {
		da, db := a[i]-ma, b[i]-mb
		cov += da * db
		va += da * da
		vb += db * db
	}
	if va == 0 || vb == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(va*vb)
}

// tradeStats walks the fill history with weighted-average-cost accounting
// to classify each position-reducing fill as a win or loss, and totals
// traded notional for turnover.
func tradeStats(fills []domain.Fill, meanEquity float64) (count int, winRate, turnover float64) {
	type book struct {
		qty, avgCost float64
	}
	positions := make(map[string]*book)
	var wins, closes int
	var notional float64

	for _, f := range fills {
		if f.Rejected() {
			continue
		}
		count++
		notional += f.Qty * f.Price

		pos := positions[f.Symbol]
		if pos == nil {
			pos = &book{}
			positions[f.Symbol] = pos
		}
		signed := f.Qty
		if f.Side == domain.OrderSideSell {
			signed = -f.Qty
		}

		if pos.qty == 0 || (pos.qty > 0) == (signed > 0) {
			newQty := pos.qty + signed
			pos.avgCost = (math.Abs(pos.qty)*pos.avgCost + f.Qty*f.Price) / math.Abs(newQty)
			pos.qty = newQty
			continue
		}

		reduce := math.Min(f.Qty, math.Abs(pos.qty))
		pnl := reduce * (f.Price - pos.avgCost)
		if pos.qty < 0 {
			pnl = -pnl
		}
		pnl -= f.Fees
		closes++
		if pnl > 0 {
			wins++
		}
		pos.qty += signed
		if pos.qty != 0 && (pos.qty > 0) == (signed > 0) {
			pos.avgCost = f.Price
		}
	}

	winRate = math.NaN()
	if closes > 0 {
		winRate = float64(wins) / float64(closes)
	}
	turnover = math.NaN()
	if meanEquity != 0 && !math.IsNaN(meanEquity) {
		turnover = notional / meanEquity
	}
	return count, winRate, turnover
}
