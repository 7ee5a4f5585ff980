package domain

import (
	"errors"
	"fmt"
)

// ErrInsufficientHistory means a series had fewer than two points for the
// requested day.
var ErrInsufficientHistory = errors.New("not enough data points to analyze")

// ErrDayInProgress is returned when a daily reconstruction for the same day is
// already running.
var ErrDayInProgress = errors.New("daily reconstruction already running for this day")

// FormatError reports a value that could not be parsed as a number.
type FormatError struct {
	Column string
	Value  string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("invalid decimal %q: %v", e.Value, e.Err)
	}
	if errors.Is(e.Err, errMissingColumn) {
		return fmt.Sprintf("column %s: %v", e.Column, e.Err)
	}
	return fmt.Sprintf("column %s: invalid decimal %q: %v", e.Column, e.Value, e.Err)
}

func (e *FormatError) Unwrap() error { return e.Err }

// TimestampError reports a date/time pair that could not be resolved.
type TimestampError struct {
	Date string
	Time string
	Err  error
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("invalid timestamp %q %q: %v", e.Date, e.Time, e.Err)
}

func (e *TimestampError) Unwrap() error { return e.Err }
