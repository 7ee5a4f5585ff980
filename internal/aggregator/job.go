// Package aggregator repairs the stored "rain today" series after station
// restarts, one local calendar day at a time.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/observability"
)

// SeriesStore reads and overwrites single-field series in the sink.
type SeriesStore interface {
	QueryField(ctx context.Context, measurement, field string, start, stop time.Time) ([]domain.SeriesPoint, error)
	WriteField(ctx context.Context, measurement, field string, points []domain.SeriesPoint) error
}

// Run outcomes, used as the aggregator_runs_total label.
const (
	OutcomeRewritten    = "rewritten"
	OutcomeClean        = "clean"
	OutcomeInsufficient = "insufficient"
	OutcomeDryRun       = "dry_run"
	OutcomeError        = "error"
)

// Result describes one daily run.
type Result struct {
	Day        string
	Outcome    string
	Correction domain.DailyCorrection
	Summary    domain.DailySummary
}

// Job runs the daily reconstruction against a SeriesStore.
type Job struct {
	store       SeriesStore
	measurement string
	loc         *time.Location
	dryRun      bool
	logger      *slog.Logger
	metrics     *observability.Metrics

	mu      sync.Mutex
	running map[string]struct{}
}

// NewJob creates a Job that interprets days in loc.
func NewJob(store SeriesStore, measurement string, loc *time.Location, dryRun bool, logger *slog.Logger, metrics *observability.Metrics) *Job {
	return &Job{
		store:       store,
		measurement: measurement,
		loc:         loc,
		dryRun:      dryRun,
		logger:      logger,
		metrics:     metrics,
		running:     make(map[string]struct{}),
	}
}

// RunYesterday reconstructs the local day before today.
func (j *Job) RunYesterday(ctx context.Context) (Result, error) {
	return j.RunDay(ctx, domain.Now().In(j.loc).AddDate(0, 0, -1))
}

// RunDay reconstructs the local calendar day containing day. A day with fewer
// than two points in either series is a successful no-op. Runs for the same
// day never overlap; a second concurrent call gets ErrDayInProgress.
func (j *Job) RunDay(ctx context.Context, day time.Time) (Result, error) {
	local := day.In(j.loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, j.loc)
	stop := start.AddDate(0, 0, 1)
	res := Result{Day: start.Format(time.DateOnly)}

	if !j.acquire(res.Day) {
		return res, domain.ErrDayInProgress
	}
	defer j.release(res.Day)

	log := j.logger.With("day", res.Day, "measurement", j.measurement)
	res.Outcome = OutcomeError
	defer func() { j.metrics.AggregatorRuns.WithLabelValues(res.Outcome).Inc() }()

	daily, err := j.store.QueryField(ctx, j.measurement, domain.FieldDailyRainCurrent, start, stop)
	if err != nil {
		return res, fmt.Errorf("query %s: %w", domain.FieldDailyRainCurrent, err)
	}
	truth, err := j.store.QueryField(ctx, j.measurement, domain.FieldRainMM, start, stop)
	if err != nil {
		return res, fmt.Errorf("query %s: %w", domain.FieldRainMM, err)
	}

	res.Correction, err = domain.ReconstructDay(daily, truth)
	if errors.Is(err, domain.ErrInsufficientHistory) {
		log.Info("not enough data to analyze", "daily_points", len(daily), "truth_points", len(truth))
		res.Outcome = OutcomeInsufficient
		return res, nil
	}
	if err != nil {
		return res, err
	}
	res.Summary = res.Correction.Summary()
	j.metrics.RestartsDetected.Add(float64(len(res.Correction.Restarts)))

	if !res.Correction.NeedsRewrite() {
		log.Info("no restarts detected", "points", len(daily))
		res.Outcome = OutcomeClean
		return res, nil
	}
	for _, r := range res.Correction.Restarts {
		log.Info("restart detected", "time", r.Time, "previous", r.Previous, "current", r.Current)
	}
	if j.dryRun {
		log.Info("dry run, leaving series unchanged",
			"restarts", res.Summary.Restarts,
			"adjustments", len(res.Summary.Adjustments),
			"max_corrected", res.Summary.MaxCorrected,
		)
		res.Outcome = OutcomeDryRun
		return res, nil
	}

	if err := j.store.WriteField(ctx, j.measurement, domain.FieldDailyRainCurrent, res.Correction.Corrected); err != nil {
		return res, fmt.Errorf("write %s: %w", domain.FieldDailyRainCurrent, err)
	}
	if err := j.store.WriteField(ctx, j.measurement, domain.FieldPrecipRate, res.Correction.Rates); err != nil {
		return res, fmt.Errorf("write %s: %w", domain.FieldPrecipRate, err)
	}
	log.Info("daily series rewritten",
		"points", len(res.Correction.Corrected),
		"rates", len(res.Correction.Rates),
		"max_corrected", res.Summary.MaxCorrected,
	)
	res.Outcome = OutcomeRewritten
	return res, nil
}

func (j *Job) acquire(day string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, busy := j.running[day]; busy {
		return false
	}
	j.running[day] = struct{}{}
	return true
}

func (j *Job) release(day string) {
	j.mu.Lock()
	delete(j.running, day)
	j.mu.Unlock()
}
