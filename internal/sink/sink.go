// Package sink opens the record sink selected by SINK.
package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/weather-station-etl/internal/adapter/influx"
	kafkaadapter "github.com/couchcryptid/weather-station-etl/internal/adapter/kafka"
	"github.com/couchcryptid/weather-station-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/weather-station-etl/internal/aggregator"
	"github.com/couchcryptid/weather-station-etl/internal/config"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/pipeline"
)

// Sink receives assembled records.
type Sink interface {
	WriteRecords(ctx context.Context, records []domain.Record) error
	CheckReadiness(ctx context.Context) error
	Close() error
}

var (
	_ Sink                      = (*influx.Store)(nil)
	_ Sink                      = (*sqlite.Store)(nil)
	_ Sink                      = (*kafkaadapter.Writer)(nil)
	_ aggregator.SeriesStore    = (*influx.Store)(nil)
	_ aggregator.SeriesStore    = (*sqlite.Store)(nil)
	_ pipeline.TimestampQuerier = (*influx.Store)(nil)
	_ pipeline.TimestampQuerier = (*sqlite.Store)(nil)
)

// Open creates the sink named by cfg.Sink.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Sink, error) {
	switch cfg.Sink {
	case config.SinkInflux:
		return influx.NewStore(cfg, logger), nil
	case config.SinkSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath, cfg.AggregatorHostTag, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite sink: %w", err)
		}
		return store, nil
	case config.SinkKafka:
		return kafkaadapter.NewWriter(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}
}

// SeriesStore returns s as an aggregator.SeriesStore when it stores series.
func SeriesStore(s Sink) (aggregator.SeriesStore, bool) {
	store, ok := s.(aggregator.SeriesStore)
	return store, ok
}

// Querier returns s as a pipeline.TimestampQuerier when it can report
// existing timestamps.
func Querier(s Sink) (pipeline.TimestampQuerier, bool) {
	q, ok := s.(pipeline.TimestampQuerier)
	return q, ok
}
