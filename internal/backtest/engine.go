package backtest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"backtester/internal/domain"
	"backtester/internal/marketdata"
	"backtester/internal/strategy"
)

// State tracks the lifecycle of a backtest run.
type State int

const (
	StateInitialized State = iota
	StateValidating
	StateRunning
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateValidating:
		return "validating"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// QualityPolicy decides what happens when pre-run validation finds gap,
// duplicate, or ordering violations. Coverage violations always abort.
type QualityPolicy int

const (
	// QualityAbort treats any quality violation as fatal.
	QualityAbort QualityPolicy = iota
	// QualityWarn records violations in the result metadata and proceeds.
	QualityWarn
)

// Config holds the per-run parameters of the replay loop.
type Config struct {
	Start       time.Time
	End         time.Time
	InitialCash float64
	OnQuality   QualityPolicy
	// StepBudget caps the number of simulated steps; zero means unlimited.
	// It guards against runaway generator logic on very long series.
	StepBudget int
}

// Result is the outcome of a completed replay: the ordered snapshot series,
// the full fill history, and any warnings absorbed along the way. It is
// produced once at the end of a run and never mutated afterwards.
type Result struct {
	Strategy  string
	State     State
	Snapshots []domain.Snapshot
	Fills     []domain.Fill
	Warnings  []string
	// Truncated is set when the run ended before the requested final
	// timestamp (end of data or step budget).
	Truncated bool
}

// FinalEquity returns the equity of the last snapshot, or zero if the run
// produced none.
func (r *Result) FinalEquity() float64 {
	if len(r.Snapshots) == 0 {
		return 0
	}
	return r.Snapshots[len(r.Snapshots)-1].Equity
}

// Backtester drives the event-ordered replay loop. One Backtester owns one
// Portfolio and one Generator for the lifetime of a single run; independent
// runs use independent instances and share no mutable state.
type Backtester struct {
	series    *marketdata.Series
	validator *marketdata.Validator
	gen       strategy.Generator
	sim       *Simulator
	cfg       Config
	state     State
	log       *slog.Logger

	nextOrderID int
}

// NewBacktester wires a run. The series must already be loaded; it is never
// mutated. logger may be nil for silent operation.
func NewBacktester(
	series *marketdata.Series,
	validator *marketdata.Validator,
	gen strategy.Generator,
	sim *Simulator,
	cfg Config,
	logger *slog.Logger,
) *Backtester {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Backtester{
		series:    series,
		validator: validator,
		gen:       gen,
		sim:       sim,
		cfg:       cfg,
		state:     StateInitialized,
		log:       logger.With("strategy", gen.Name()),
	}
}

// State returns the run's current lifecycle state.
func (bt *Backtester) State() State { return bt.state }

// Run validates the series and replays it step by step. Validation and
// configuration failures propagate immediately with a nil result; per-step
// issues (rejections, end of data) are absorbed into the result so a single
// bad order or data edge never discards the run's history.
//
// Cancellation is honored only at step boundaries: a step that has started
// always finishes, so the portfolio is never left partially updated.
func (bt *Backtester) Run(ctx context.Context) (*Result, error) {
	bt.state = StateValidating
	bt.log.Info("validating series",
		"start", bt.cfg.Start.Format("2006-01-02"),
		"end", bt.cfg.End.Format("2006-01-02"),
	)

	report := bt.validator.Validate(bt.series, bt.cfg.Start, bt.cfg.End)

	if cov := report.Coverage(); len(cov) > 0 {
		bt.state = StateAborted
		return nil, &domain.DataRangeError{
			Start: bt.cfg.Start, End: bt.cfg.End,
			CoverageMin: bt.series.Start(), CoverageMax: bt.series.End(),
			Reason: cov[0].Detail,
		}
	}

	result := &Result{Strategy: bt.gen.Name()}
	if err := report.QualityError(); err != nil {
		if bt.cfg.OnQuality == QualityAbort {
			bt.state = StateAborted
			return nil, err
		}
		for _, v := range report.Quality() {
			bt.log.Warn("data quality violation", "violation", v.String())
			result.Warnings = append(result.Warnings, v.String())
		}
	}

	window, err := bt.series.Slice(bt.cfg.Start, bt.cfg.End)
	if err != nil {
		bt.state = StateAborted
		return nil, err
	}

	bt.state = StateRunning
	pf := NewPortfolio(bt.cfg.InitialCash)
	steps := window.Timestamps()
	lastClose := make(map[string]float64)
	var pending []domain.Order

	for i, t := range steps {
		select {
		case <-ctx.Done():
			bt.state = StateAborted
			return nil, ctx.Err()
		default:
		}

		if bt.cfg.StepBudget > 0 && i >= bt.cfg.StepBudget {
			bt.log.Warn("step budget exhausted", "steps", i)
			result.Warnings = append(result.Warnings, "step budget exhausted")
			result.Truncated = true
			break
		}

		for sym, bar := range window.BarsAt(t) {
			lastClose[sym] = bar.Close
		}

		// Orders issued at the previous step execute now, against this
		// bar's prices.
		if len(pending) > 0 {
			fills := bt.sim.Execute(pending, window.BarsAt(t), pf)
			result.Fills = append(result.Fills, fills...)
			pending = nil
		}

		// The generator sees history up to and including t and the
		// holdings as they stand after every prior fill; its orders wait
		// for the bar at t+1. This asymmetry is what keeps a strategy
		// from trading on data it has not seen.
		view := window.AsOf(t)
		snap := pf.Snapshot(t, lastClose)
		orders, genErr := bt.gen.Generate(view, snap)
		if genErr != nil {
			bt.log.Warn("generator error, truncating run", "step", i, "err", genErr)
			result.Warnings = append(result.Warnings, fmt.Sprintf("generator error at %s: %v", t.Format("2006-01-02"), genErr))
			result.Truncated = true
			break
		}
		for j := range orders {
			if orders[j].ID == "" {
				bt.nextOrderID++
				orders[j].ID = fmt.Sprintf("ord-%06d", bt.nextOrderID)
			}
		}
		pending = orders

		result.Snapshots = append(result.Snapshots, snap)
	}

	// Orders still pending when the data runs out have no bar to execute
	// against. They lapse as zero-quantity fills and the run truncates.
	if len(pending) > 0 {
		for _, o := range pending {
			result.Fills = append(result.Fills, domain.Fill{
				OrderID:   o.ID,
				Symbol:    o.Symbol,
				Side:      o.Side,
				Timestamp: o.IssuedAt,
				Reason:    domain.RejectEndOfData,
			})
		}
		result.Truncated = true
	}

	bt.state = StateCompleted
	result.State = StateCompleted
	bt.log.Info("run complete",
		"steps", len(result.Snapshots),
		"fills", len(result.Fills),
		"final_equity", result.FinalEquity(),
	)
	return result, nil
}
