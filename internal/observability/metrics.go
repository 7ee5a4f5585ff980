package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion,
// reconciliation and the daily aggregator.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	RowsParsed       prometheus.Counter
	RowsSkipped      prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Reconciliation metrics.
	Corrections *prometheus.CounterVec // labels: kind={wind_gust,precip_accum,precip_rate}

	// Sink metrics.
	PointsWritten   prometheus.Counter
	PointsExisting  prometheus.Counter
	DedupeFallbacks prometheus.Counter

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Daily aggregator metrics.
	RestartsDetected prometheus.Counter
	AggregatorRuns   *prometheus.CounterVec // labels: outcome={rewritten,clean,insufficient,error}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total messages read from the live source.",
		}),
		RowsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_parsed_total",
			Help:      "Total rows parsed into readings.",
		}),
		RowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Total rows skipped because a value or timestamp failed to parse.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		Corrections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrections_total",
			Help:      "Outlier corrections applied, by kind.",
		}, []string{"kind"}),
		PointsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_written_total",
			Help:      "Total points written to the sink.",
		}),
		PointsExisting: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_existing_total",
			Help:      "Total points skipped because the sink already had the timestamp.",
		}),
		DedupeFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dedupe_fallbacks_total",
			Help:      "Existing-timestamp queries that failed and fell back to writing everything.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of readings per reconciliation pass.",
			Buckets:   []float64{1, 5, 10, 20, 50, 100, 250, 500, 1000},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete extract-reconcile-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		RestartsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "daily_restarts_detected_total",
			Help:      "Downward discontinuities found in the daily rain series.",
		}),
		AggregatorRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "aggregator_runs_total",
			Help:      "Daily reconstruction runs by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesConsumed,
		m.RowsParsed,
		m.RowsSkipped,
		m.PipelineRunning,
		m.Corrections,
		m.PointsWritten,
		m.PointsExisting,
		m.DedupeFallbacks,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.RestartsDetected,
		m.AggregatorRuns,
	}
}

// ObserveCorrections adds a pass's correction counts.
func (m *Metrics) ObserveCorrections(gust, accum, rate int) {
	m.Corrections.WithLabelValues("wind_gust").Add(float64(gust))
	m.Corrections.WithLabelValues("precip_accum").Add(float64(accum))
	m.Corrections.WithLabelValues("precip_rate").Add(float64(rate))
}
