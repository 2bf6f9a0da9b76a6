// Package marketdata provides the immutable, time-indexed container for
// historical price/volume observations and the pre-run quality validator
// that guards the simulation against incomplete or inconsistent datasets.
package marketdata

import (
	"sort"
	"time"

	"backtester/internal/domain"
)

// Series is an immutable collection of bars for one or more instruments,
// ordered by timestamp, with a declared sampling frequency. A Series is
// loaded once per run and never mutated; all simulation reads go through
// Slice and AsOf.
type Series struct {
	freq  time.Duration
	bars  map[string][]domain.Bar
	index []time.Time // sorted union of observed timestamps
	min   time.Time
	max   time.Time
}

// Daily is the sampling frequency for one-bar-per-trading-day series.
const Daily = 24 * time.Hour

// NewSeries groups bars by symbol, preserving input order, and records the
// observed coverage. It performs no sorting or deduplication: a series built
// from disordered or duplicated input is constructible but will fail
// validation, which is where those defects are reported.
func NewSeries(bars []domain.Bar, freq time.Duration) *Series {
	s := &Series{
		freq: freq,
		bars: make(map[string][]domain.Bar),
	}

	seen := make(map[time.Time]struct{})
	for _, b := range bars {
		s.bars[b.Symbol] = append(s.bars[b.Symbol], b)
		if _, ok := seen[b.Timestamp]; !ok {
			seen[b.Timestamp] = struct{}{}
			s.index = append(s.index, b.Timestamp)
		}
		if s.min.IsZero() || b.Timestamp.Before(s.min) {
			s.min = b.Timestamp
		}
		if b.Timestamp.After(s.max) {
			s.max = b.Timestamp
		}
	}
	sort.Slice(s.index, func(i, j int) bool { return s.index[i].Before(s.index[j]) })

	return s
}

// Freq returns the declared sampling frequency.
func (s *Series) Freq() time.Duration { return s.freq }

// Start returns the earliest observed timestamp. Zero for an empty series.
func (s *Series) Start() time.Time { return s.min }

// End returns the latest observed timestamp. Zero for an empty series.
func (s *Series) End() time.Time { return s.max }

// Empty reports whether the series holds no bars.
func (s *Series) Empty() bool { return len(s.index) == 0 }

// Symbols returns the instruments present in the series, sorted.
func (s *Series) Symbols() []string {
	syms := make([]string, 0, len(s.bars))
	for sym := range s.bars {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

// Timestamps returns the sorted union of observed timestamps.
func (s *Series) Timestamps() []time.Time {
	out := make([]time.Time, len(s.index))
	copy(out, s.index)
	return out
}

// Bars returns all bars for symbol in input order. The returned slice is the
// series' own storage; callers must not modify it.
func (s *Series) Bars(symbol string) []domain.Bar {
	return s.bars[symbol]
}

// BarAt returns the bar for symbol exactly at t.
func (s *Series) BarAt(symbol string, t time.Time) (domain.Bar, bool) {
	for _, b := range s.bars[symbol] {
		if b.Timestamp.Equal(t) {
			return b, true
		}
	}
	return domain.Bar{}, false
}

// BarsAt returns the bar per symbol at t, for all symbols that have one.
func (s *Series) BarsAt(t time.Time) map[string]domain.Bar {
	out := make(map[string]domain.Bar)
	for sym := range s.bars {
		if b, ok := s.BarAt(sym, t); ok {
			out[sym] = b
		}
	}
	return out
}

// Slice returns the sub-series covering [start, end], inclusive of both
// bounds. It fails with a DataRangeError if start > end or if the requested
// range exceeds the loaded coverage.
func (s *Series) Slice(start, end time.Time) (*Series, error) {
	if start.After(end) {
		return nil, &domain.DataRangeError{
			Start: start, End: end,
			Reason: "start is after end",
		}
	}
	if s.Empty() || start.Before(s.min) || end.After(s.max) {
		return nil, &domain.DataRangeError{
			Start: start, End: end,
			CoverageMin: s.min, CoverageMax: s.max,
		}
	}

	var sub []domain.Bar
	for _, sym := range s.Symbols() {
		for _, b := range s.bars[sym] {
			if !b.Timestamp.Before(start) && !b.Timestamp.After(end) {
				sub = append(sub, b)
			}
		}
	}
	return NewSeries(sub, s.freq), nil
}

// AsOf returns a read view exposing only bars with timestamp ≤ t. This is
// the sole read path handed to order generators: a generator cannot observe
// a future bar because the view it receives never contains one.
func (s *Series) AsOf(t time.Time) *View {
	return &View{series: s, asOf: t}
}

// View is a restricted, point-in-time read handle over a Series. All
// accessors exclude bars after the view's cutoff.
type View struct {
	series *Series
	asOf   time.Time
}

// At returns the view's cutoff timestamp.
func (v *View) At() time.Time { return v.asOf }

// Symbols returns the instruments present in the underlying series, sorted.
func (v *View) Symbols() []string { return v.series.Symbols() }

// Bars returns the bars for symbol with timestamp ≤ the cutoff, in input
// order. Callers must not modify the returned slice.
func (v *View) Bars(symbol string) []domain.Bar {
	all := v.series.bars[symbol]
	n := 0
	for _, b := range all {
		if b.Timestamp.After(v.asOf) {
			break
		}
		n++
	}
	return all[:n]
}

// Last returns the most recent bar for symbol at or before the cutoff.
func (v *View) Last(symbol string) (domain.Bar, bool) {
	bars := v.Bars(symbol)
	if len(bars) == 0 {
		return domain.Bar{}, false
	}
	return bars[len(bars)-1], true
}
