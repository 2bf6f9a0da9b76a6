package marketdata

import (
	"testing"
	"time"

	"backtester/internal/domain"
)

func newValidatorForTest() *Validator {
	return NewValidator(0, nil) // default: one sampling period, weekends-only calendar
}

func TestValidatePasses(t *testing.T) {
	// Mon Jan 1 .. Fri Jan 5 2024, contiguous trading days.
	s := NewSeries(dailyBars("AAPL", map[int]float64{1: 100, 2: 101, 3: 102, 4: 103, 5: 104}), Daily)

	report := newValidatorForTest().Validate(s, day(1), day(5))
	if !report.OK() {
		t.Fatalf("expected clean report, got %v", report.Violations)
	}
}

func TestValidateWeekendGapTolerated(t *testing.T) {
	// Fri Jan 5 → Mon Jan 8: weekend skip, not a gap.
	s := NewSeries(dailyBars("AAPL", map[int]float64{4: 100, 5: 101, 8: 102, 9: 103}), Daily)

	report := newValidatorForTest().Validate(s, day(4), day(9))
	if !report.OK() {
		t.Fatalf("weekend skip flagged as violation: %v", report.Violations)
	}
}

func TestValidateCoverageViolation(t *testing.T) {
	// Requested [2020-01-01, 2020-01-10] but series covers [2020-01-03, 2020-01-10].
	var bars []domain.Bar
	for d := 3; d <= 10; d++ {
		ts := time.Date(2020, 1, d, 0, 0, 0, 0, time.UTC)
		if ts.Weekday() == time.Saturday || ts.Weekday() == time.Sunday {
			continue
		}
		bars = append(bars, domain.Bar{Symbol: "AAPL", Timestamp: ts, Open: 100, High: 100, Low: 100, Close: 100, Volume: 1})
	}
	s := NewSeries(bars, Daily)

	report := newValidatorForTest().Validate(s,
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC))

	if len(report.Coverage()) == 0 {
		t.Fatal("expected a coverage violation")
	}
}

func TestValidateDuplicate(t *testing.T) {
	bars := dailyBars("AAPL", map[int]float64{1: 100, 2: 101, 3: 102})
	bars = append(bars, bars[1]) // duplicate Jan 2 appended at the end

	report := newValidatorForTest().Validate(NewSeries(bars, Daily), day(1), day(3))

	var dup, ord bool
	for _, v := range report.Violations {
		switch v.Code {
		case ViolationDuplicate:
			dup = true
		case ViolationOrdering:
			ord = true
		}
	}
	if !dup {
		t.Error("expected a duplicate violation")
	}
	// The duplicate lands out of order too; both findings must be reported.
	if !ord {
		t.Error("expected an ordering violation alongside the duplicate")
	}
}

func TestValidateGap(t *testing.T) {
	// Mon Jan 1, Tue Jan 2, then Fri Jan 5: Wed+Thu missing.
	s := NewSeries(dailyBars("AAPL", map[int]float64{1: 100, 2: 101, 5: 102}), Daily)

	report := newValidatorForTest().Validate(s, day(1), day(5))
	gaps := report.byCode(ViolationGap)
	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap violation, got %d (%v)", len(gaps), report.Violations)
	}

	// A wider tolerance admits the same gap.
	relaxed := NewValidator(3*Daily, nil).Validate(s, day(1), day(5))
	if len(relaxed.byCode(ViolationGap)) != 0 {
		t.Errorf("3-period tolerance should admit a 2-day hole: %v", relaxed.Violations)
	}
}

func TestValidateReportsAllViolations(t *testing.T) {
	// Out-of-order bar AND a gap AND insufficient coverage, all at once.
	bars := []domain.Bar{
		{Symbol: "AAPL", Timestamp: day(3), Close: 102, Open: 102, High: 102, Low: 102, Volume: 1},
		{Symbol: "AAPL", Timestamp: day(2), Close: 101, Open: 101, High: 101, Low: 101, Volume: 1},
		{Symbol: "AAPL", Timestamp: day(9), Close: 103, Open: 103, High: 103, Low: 103, Volume: 1},
	}
	report := newValidatorForTest().Validate(NewSeries(bars, Daily), day(1), day(10))

	if len(report.Coverage()) == 0 {
		t.Error("expected coverage violation")
	}
	if len(report.byCode(ViolationOrdering)) == 0 {
		t.Error("expected ordering violation")
	}
	if len(report.byCode(ViolationGap)) == 0 {
		t.Error("expected gap violation")
	}
}

func TestReportQualityError(t *testing.T) {
	s := NewSeries(dailyBars("AAPL", map[int]float64{1: 100, 2: 101, 3: 102, 4: 103, 5: 104}), Daily)
	clean := newValidatorForTest().Validate(s, day(1), day(5))
	if err := clean.QualityError(); err != nil {
		t.Errorf("clean report produced quality error: %v", err)
	}

	gappy := NewSeries(dailyBars("AAPL", map[int]float64{1: 100, 5: 104}), Daily)
	report := newValidatorForTest().Validate(gappy, day(1), day(5))
	if err := report.QualityError(); err == nil {
		t.Error("gappy report should produce a quality error")
	}
}
