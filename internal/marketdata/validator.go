package marketdata

import (
	"fmt"
	"time"

	"backtester/internal/domain"
	"backtester/internal/util"
)

// ViolationCode classifies a single data-quality finding.
type ViolationCode string

const (
	ViolationCoverage  ViolationCode = "coverage"
	ViolationDuplicate ViolationCode = "duplicate"
	ViolationGap       ViolationCode = "gap"
	ViolationOrdering  ViolationCode = "ordering"
)

// Violation is one data-quality finding. Coverage violations are always
// fatal; the run configuration decides whether the others abort the run or
// are downgraded to warnings.
type Violation struct {
	Code      ViolationCode
	Symbol    string
	Timestamp time.Time
	Detail    string
}

func (v Violation) String() string {
	if v.Symbol == "" {
		return fmt.Sprintf("%s: %s", v.Code, v.Detail)
	}
	return fmt.Sprintf("%s [%s]: %s", v.Code, v.Symbol, v.Detail)
}

// Report lists every violation found in a validation pass. Validation never
// stops at the first finding, so the caller sees the full picture before
// deciding to abort or proceed.
type Report struct {
	Violations []Violation
}

// OK reports whether the pass found no violations at all.
func (r *Report) OK() bool { return len(r.Violations) == 0 }

// Coverage returns the coverage violations, if any.
func (r *Report) Coverage() []Violation { return r.byCode(ViolationCoverage) }

// Quality returns the non-coverage violations (duplicates, gaps, ordering).
func (r *Report) Quality() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Code != ViolationCoverage {
			out = append(out, v)
		}
	}
	return out
}

func (r *Report) byCode(code ViolationCode) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Code == code {
			out = append(out, v)
		}
	}
	return out
}

// Validator checks a loaded series against a requested backtest window
// before simulation starts.
type Validator struct {
	maxGap time.Duration
	cal    *util.TradingCalendar
}

// NewValidator creates a Validator. maxGap is the largest tolerated distance
// between consecutive bars measured in tradable time; zero means one
// sampling period. For daily series the trading calendar absorbs weekends
// and configured holidays, so a Friday→Monday step is not a gap.
func NewValidator(maxGap time.Duration, cal *util.TradingCalendar) *Validator {
	if cal == nil {
		cal = util.NewTradingCalendar(nil)
	}
	return &Validator{maxGap: maxGap, cal: cal}
}

// Validate checks, in order: coverage of [reqStart, reqEnd], duplicate
// timestamps, gaps larger than the allowed maximum, and strictly ascending
// order, per instrument. Every violation found is reported.
func (val *Validator) Validate(s *Series, reqStart, reqEnd time.Time) *Report {
	report := &Report{}

	// (a) Coverage.
	if s.Empty() {
		report.Violations = append(report.Violations, Violation{
			Code:   ViolationCoverage,
			Detail: "series is empty",
		})
		return report
	}
	if s.Start().After(reqStart) {
		report.Violations = append(report.Violations, Violation{
			Code:      ViolationCoverage,
			Timestamp: s.Start(),
			Detail: fmt.Sprintf("series starts %s, after requested start %s",
				s.Start().Format("2006-01-02"), reqStart.Format("2006-01-02")),
		})
	}
	if s.End().Before(reqEnd) {
		report.Violations = append(report.Violations, Violation{
			Code:      ViolationCoverage,
			Timestamp: s.End(),
			Detail: fmt.Sprintf("series ends %s, before requested end %s",
				s.End().Format("2006-01-02"), reqEnd.Format("2006-01-02")),
		})
	}

	maxGap := val.maxGap
	if maxGap <= 0 {
		maxGap = s.Freq()
	}

	for _, sym := range s.Symbols() {
		bars := s.Bars(sym)

		// (b) Duplicate timestamps.
		seen := make(map[time.Time]struct{}, len(bars))
		for _, b := range bars {
			if _, dup := seen[b.Timestamp]; dup {
				report.Violations = append(report.Violations, Violation{
					Code:      ViolationDuplicate,
					Symbol:    sym,
					Timestamp: b.Timestamp,
					Detail:    fmt.Sprintf("duplicate bar at %s", b.Timestamp.Format("2006-01-02")),
				})
			}
			seen[b.Timestamp] = struct{}{}
		}

		// (c) Gaps between consecutive bars.
		for i := 1; i < len(bars); i++ {
			prev, cur := bars[i-1], bars[i]
			if !cur.Timestamp.After(prev.Timestamp) {
				continue // ordering violation, reported below
			}
			if val.gapExceeded(prev.Timestamp, cur.Timestamp, s.Freq(), maxGap) {
				report.Violations = append(report.Violations, Violation{
					Code:      ViolationGap,
					Symbol:    sym,
					Timestamp: cur.Timestamp,
					Detail: fmt.Sprintf("gap from %s to %s exceeds allowed maximum",
						prev.Timestamp.Format("2006-01-02"), cur.Timestamp.Format("2006-01-02")),
				})
			}
		}

		// (d) Strictly ascending order.
		for i := 1; i < len(bars); i++ {
			if !bars[i].Timestamp.After(bars[i-1].Timestamp) && !bars[i].Timestamp.Equal(bars[i-1].Timestamp) {
				report.Violations = append(report.Violations, Violation{
					Code:      ViolationOrdering,
					Symbol:    sym,
					Timestamp: bars[i].Timestamp,
					Detail: fmt.Sprintf("bar at %s appears after %s",
						bars[i].Timestamp.Format("2006-01-02"), bars[i-1].Timestamp.Format("2006-01-02")),
				})
			}
		}
	}

	return report
}

// gapExceeded decides whether the distance between two consecutive bars is a
// violation. Daily series count skipped trading days via the calendar;
// intraday series compare wall-clock distance directly.
func (val *Validator) gapExceeded(prev, cur time.Time, freq, maxGap time.Duration) bool {
	if freq >= Daily {
		allowedSkips := int(maxGap/freq) - 1 // a gap of one period skips nothing
		return val.cal.TradingDaysBetween(prev, cur) > allowedSkips
	}
	return cur.Sub(prev) > maxGap
}

// QualityError converts the report's non-coverage findings into a
// DataQualityError, or nil if there are none.
func (r *Report) QualityError() error {
	quality := r.Quality()
	if len(quality) == 0 {
		return nil
	}
	msgs := make([]string, len(quality))
	for i, v := range quality {
		msgs[i] = v.String()
	}
	return &domain.DataQualityError{Violations: msgs}
}
