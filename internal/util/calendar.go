package util

import (
	"time"
)

// TradingCalendar answers which days count as tradable. Weekends are always
// closed; additional closures (exchange holidays) are supplied by the caller.
type TradingCalendar struct {
	holidays map[string]struct{} // keyed by YYYY-MM-DD
}

// NewTradingCalendar creates a TradingCalendar with the given holiday
// closures. A nil or empty slice yields a weekends-only calendar.
func NewTradingCalendar(holidays []time.Time) *TradingCalendar {
	hs := make(map[string]struct{}, len(holidays))
	for _, h := range holidays {
		hs[h.Format("2006-01-02")] = struct{}{}
	}
	return &TradingCalendar{holidays: hs}
}

// IsTradingDay reports whether t falls on a tradable day.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, closed := tc.holidays[t.Format("2006-01-02")]
	return !closed
}

// NextTradingDay returns the first tradable day strictly after t.
func (tc *TradingCalendar) NextTradingDay(t time.Time) time.Time {
	d := t.AddDate(0, 0, 1)
	for !tc.IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// TradingDaysBetween counts tradable days in the open interval (start, end).
// Adjacent daily bars separated only by a weekend or holiday count zero.
func (tc *TradingCalendar) TradingDaysBetween(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	n := 0
	for d := start.AddDate(0, 0, 1); d.Before(end); d = d.AddDate(0, 0, 1) {
		if tc.IsTradingDay(d) {
			n++
		}
	}
	return n
}
