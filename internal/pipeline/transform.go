package pipeline

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/observability"
)

// PassResult is the output of one reconciliation pass.
type PassResult struct {
	Records []domain.Record
	Events  []domain.CorrectionEvent
	Stats   domain.Stats
	Skipped int
}

// StreamState carries reconciliation context from one pass into the next
// batch of the same stream. The zero value starts a new stream.
type StreamState struct {
	Counter  domain.CounterState
	Outliers domain.OutlierState
}

// Reconciler runs the reconciliation pass: parse, sort, counter
// reconciliation, outlier correction and assembly.
type Reconciler struct {
	resolver    *domain.Resolver
	outliers    domain.OutlierConfig
	tags        domain.Tags
	measurement string
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// NewReconciler creates a Reconciler that assembles records with the given
// tags into measurement.
func NewReconciler(resolver *domain.Resolver, outliers domain.OutlierConfig, tags domain.Tags, measurement string, logger *slog.Logger, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{
		resolver:    resolver,
		outliers:    outliers,
		tags:        tags,
		measurement: measurement,
		logger:      logger,
		metrics:     metrics,
	}
}

// Pass reconciles one batch of rows. Rows that fail to parse are logged and
// skipped. state carries the counter offset and the correction context and
// may be reused for the next batch of the same stream; it must not be shared
// between concurrent passes.
func (r *Reconciler) Pass(rows []domain.RawRow, state *StreamState) PassResult {
	readings := make([]domain.Reading, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		reading, err := domain.ParseRow(row, r.resolver)
		if err != nil {
			r.logger.Warn("skipping unparsable row", "row", row.Line, "error", err, "columns", row.Columns)
			skipped++
			continue
		}
		if _, ok := domain.CompassToDegrees(row.Columns[domain.ColWindDirection]); !ok {
			r.logger.Debug("unknown wind direction, using 0", "row", row.Line, "wind", row.Columns[domain.ColWindDirection])
		}
		readings = append(readings, reading)
	}
	r.metrics.RowsParsed.Add(float64(len(readings)))
	r.metrics.RowsSkipped.Add(float64(skipped))

	slices.SortStableFunc(readings, func(a, b domain.Reading) int {
		return cmp.Compare(a.Timestamp.UnixNano(), b.Timestamp.UnixNano())
	})

	domain.ReconcileCounters(readings, &state.Counter)
	corrected, events, stats := domain.CorrectOutliers(readings, r.outliers, &state.Outliers)
	r.metrics.ObserveCorrections(stats.WindGust, stats.PrecipAccum, stats.PrecipRate)
	if stats.Total() > 0 {
		r.logger.Info("outliers corrected",
			"wind_gust", stats.WindGust,
			"precip_accum", stats.PrecipAccum,
			"precip_rate", stats.PrecipRate,
		)
	}

	return PassResult{
		Records: domain.AssembleAll(corrected, r.tags, r.measurement),
		Events:  events,
		Stats:   stats,
		Skipped: skipped,
	}
}
