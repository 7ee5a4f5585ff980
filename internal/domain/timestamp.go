package domain

import (
	"strings"
	"time"
	_ "time/tzdata"
)

// DefaultTimezone is the zone the station console records local time in.
const DefaultTimezone = "Europe/Madrid"

// sourceLayout matches "2024/03/15 3:05 PM".
const sourceLayout = "2006/01/02 3:04 PM"

// Resolver converts local console date/time pairs into absolute instants.
// Ambiguous or skipped wall-clock times around DST transitions resolve however
// time.Date does; they are not special-cased.
type Resolver struct {
	loc *time.Location
}

// NewResolver loads the named IANA zone.
func NewResolver(tz string) (*Resolver, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	return &Resolver{loc: loc}, nil
}

// NewResolverIn returns a Resolver for an already loaded location.
func NewResolverIn(loc *time.Location) *Resolver {
	return &Resolver{loc: loc}
}

// Location returns the source zone.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve parses a date ("2006/01/02") and a 12-hour time ("3:04 PM") in the
// source zone and returns the instant in UTC.
func (r *Resolver) Resolve(date, clock string) (time.Time, error) {
	value := strings.TrimSpace(date) + " " + strings.ToUpper(strings.TrimSpace(clock))
	t, err := time.ParseInLocation(sourceLayout, value, r.loc)
	if err != nil {
		return time.Time{}, &TimestampError{Date: date, Time: clock, Err: err}
	}
	return t.UTC(), nil
}

// ResolveNanos is Resolve expressed as nanoseconds since the Unix epoch.
func (r *Resolver) ResolveNanos(date, clock string) (int64, error) {
	t, err := r.Resolve(date, clock)
	if err != nil {
		return 0, err
	}
	return t.UnixNano(), nil
}
