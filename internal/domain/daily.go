package domain

import (
	"math"
	"sort"
	"time"
)

const (
	// RestartTolerance is how far (mm) the daily series may dip before the
	// drop counts as a restart.
	RestartTolerance = 0.5
	// RateWindow is the minimum spacing between recomputed rate points.
	RateWindow = 300 * time.Second
	// significantDiff is the smallest correction (mm) worth reporting.
	significantDiff = 0.1
	// measurableRate is the smallest rate (mm/h) reported as rain.
	measurableRate = 0.1
)

// SeriesPoint is one stored value of a single field. Tags identify the series
// it was read from so a rewrite lands on the same series.
type SeriesPoint struct {
	Time  time.Time         `json:"time"`
	Value float64           `json:"value"`
	Tags  map[string]string `json:"tags,omitempty"`
}

// Restart is a downward discontinuity in the daily rain series.
type Restart struct {
	Time     time.Time `json:"time"`
	Previous float64   `json:"previous"`
	Current  float64   `json:"current"`
}

// DetectRestarts returns every adjacent pair where the later value is lower
// than the earlier one by more than tolerance.
func DetectRestarts(daily []SeriesPoint, tolerance float64) []Restart {
	var restarts []Restart
	for i := 1; i < len(daily); i++ {
		prev, cur := daily[i-1].Value, daily[i].Value
		if cur < prev-tolerance {
			restarts = append(restarts, Restart{Time: daily[i].Time, Previous: prev, Current: cur})
		}
	}
	return restarts
}

// Nearest returns the value of the sample in truth closest in time to t.
// truth must be sorted by time. Ties go to the earlier sample.
func Nearest(truth []SeriesPoint, t time.Time) float64 {
	i := sort.Search(len(truth), func(i int) bool { return !truth[i].Time.Before(t) })
	switch {
	case i == 0:
		return truth[0].Value
	case i == len(truth):
		return truth[len(truth)-1].Value
	}
	before, after := truth[i-1], truth[i]
	if after.Time.Sub(t) < t.Sub(before.Time) {
		return after.Value
	}
	return before.Value
}

// RebuildDaily recomputes every daily point as the nearest ground-truth value
// minus the day's first ground-truth value, floored at zero.
func RebuildDaily(daily, truth []SeriesPoint) []SeriesPoint {
	baseline := truth[0].Value
	out := make([]SeriesPoint, len(daily))
	for i, p := range daily {
		out[i] = SeriesPoint{Time: p.Time, Value: math.Max(0, Nearest(truth, p.Time)-baseline), Tags: p.Tags}
	}
	return out
}

// WindowedRates derives a precipitation rate (mm/h) from a cumulative daily
// series. A rate is emitted only once at least window has passed since the
// previous emitted point; negative deltas yield zero.
func WindowedRates(points []SeriesPoint, window time.Duration) []SeriesPoint {
	if len(points) == 0 {
		return nil
	}
	var rates []SeriesPoint
	anchor := points[0]
	for _, p := range points[1:] {
		elapsed := p.Time.Sub(anchor.Time)
		if elapsed < window {
			continue
		}
		rate := 0.0
		if diff := p.Value - anchor.Value; diff > 0 {
			rate = diff / elapsed.Seconds() * 3600
		}
		rates = append(rates, SeriesPoint{Time: p.Time, Value: rate, Tags: p.Tags})
		anchor = p
	}
	return rates
}

// DailyCorrection is the outcome of reconstructing one day.
type DailyCorrection struct {
	Restarts  []Restart
	Baseline  float64
	Original  []SeriesPoint
	Corrected []SeriesPoint
	Rates     []SeriesPoint
}

// NeedsRewrite reports whether the stored day must be replaced.
func (d DailyCorrection) NeedsRewrite() bool {
	return len(d.Restarts) > 0
}

// ReconstructDay checks one day's daily rain series for restarts and, if any
// are found, rebuilds the whole day from the ground-truth cumulative series.
// Both series must be sorted by time. ErrInsufficientHistory is returned when
// either has fewer than two points.
func ReconstructDay(daily, truth []SeriesPoint) (DailyCorrection, error) {
	if len(daily) < 2 || len(truth) < 2 {
		return DailyCorrection{}, ErrInsufficientHistory
	}
	d := DailyCorrection{
		Restarts: DetectRestarts(daily, RestartTolerance),
		Baseline: truth[0].Value,
		Original: daily,
	}
	if !d.NeedsRewrite() {
		return d, nil
	}
	d.Corrected = RebuildDaily(daily, truth)
	d.Rates = WindowedRates(d.Corrected, RateWindow)
	return d, nil
}

// Adjustment is a single rebuilt point that moved noticeably.
type Adjustment struct {
	Time      time.Time
	Original  float64
	Corrected float64
}

// DailySummary describes a correction without applying it.
type DailySummary struct {
	Restarts     int
	Adjustments  []Adjustment
	MaxCorrected float64
	RainyPeriods []SeriesPoint
}

// Summary lists adjustments above 0.1 mm, the largest corrected value and
// the rate points above 0.1 mm/h.
func (d DailyCorrection) Summary() DailySummary {
	s := DailySummary{Restarts: len(d.Restarts)}
	for i, p := range d.Corrected {
		if math.Abs(p.Value-d.Original[i].Value) > significantDiff {
			s.Adjustments = append(s.Adjustments, Adjustment{
				Time:      p.Time,
				Original:  d.Original[i].Value,
				Corrected: p.Value,
			})
		}
		s.MaxCorrected = math.Max(s.MaxCorrected, p.Value)
	}
	for _, r := range d.Rates {
		if r.Value > measurableRate {
			s.RainyPeriods = append(s.RainyPeriods, r)
		}
	}
	return s
}
