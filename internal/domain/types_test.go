package domain

import (
	"errors"
	"testing"
	"time"
)

func TestFillRejected(t *testing.T) {
	ok := Fill{OrderID: "ord-1", Symbol: "AAPL", Qty: 10, Price: 101}
	if ok.Rejected() {
		t.Error("executed fill reported as rejected")
	}

	rej := Fill{OrderID: "ord-2", Symbol: "AAPL", Qty: 0, Reason: RejectInsufficientCash}
	if !rej.Rejected() {
		t.Error("zero-qty fill with reason not reported as rejected")
	}
}

func TestSnapshotPosition(t *testing.T) {
	snap := Snapshot{
		Positions: map[string]Position{
			"AAPL": {Symbol: "AAPL", Qty: 10, AvgCost: 101},
		},
	}

	p := snap.Position("AAPL")
	if p.Qty != 10 || p.AvgCost != 101 {
		t.Errorf("Position(AAPL) = %+v, want qty 10 at 101", p)
	}

	zero := snap.Position("MSFT")
	if zero.Qty != 0 || zero.Symbol != "MSFT" {
		t.Errorf("Position(MSFT) = %+v, want zero position", zero)
	}
}

func TestDataRangeError(t *testing.T) {
	err := &DataRangeError{
		Start:       time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC),
		CoverageMin: time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC),
		CoverageMax: time.Date(2020, 1, 10, 0, 0, 0, 0, time.UTC),
	}

	var dre *DataRangeError
	if !errors.As(error(err), &dre) {
		t.Fatal("errors.As failed to match DataRangeError")
	}
	if err.Error() == "" {
		t.Error("DataRangeError.Error() is empty")
	}
}

func TestConfigErrorUnwrap(t *testing.T) {
	inner := errors.New("window must be positive")
	err := &ConfigError{Field: "window", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("ConfigError does not unwrap to inner error")
	}
}
