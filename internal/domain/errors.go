package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrEndOfData is returned when the series has no next bar to execute
// against. It is recoverable: the run truncates instead of failing.
var ErrEndOfData = errors.New("end of data")

// DataRangeError reports that a requested range is not covered by the loaded
// series. It is fatal and surfaces before any simulation work is done.
type DataRangeError struct {
	Start, End               time.Time
	CoverageMin, CoverageMax time.Time
	Reason                   string
}

func (e *DataRangeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("data range [%s, %s]: %s",
			e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"), e.Reason)
	}
	return fmt.Sprintf("data range [%s, %s] exceeds loaded coverage [%s, %s]",
		e.Start.Format("2006-01-02"), e.End.Format("2006-01-02"),
		e.CoverageMin.Format("2006-01-02"), e.CoverageMax.Format("2006-01-02"))
}

// DataQualityError reports gap, duplicate, or ordering violations found
// during pre-run validation. Fatal by default; the run configuration may
// downgrade it to a warning recorded in the result.
type DataQualityError struct {
	Violations []string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("data quality: %d violation(s), first: %s",
		len(e.Violations), e.Violations[0])
}

// ConfigError reports invalid strategy or run parameters detected at
// construction time, before any data is touched.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error [%s]: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
