// Package influx stores assembled records and field series in InfluxDB 2.x.
package influx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/weather-station-etl/internal/config"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Store wraps an InfluxDB client bound to one org and bucket.
type Store struct {
	client  influxdb2.Client
	writer  api.WriteAPIBlocking
	query   api.QueryAPI
	bucket  string
	hostTag string
	logger  *slog.Logger
}

// NewStore creates a Store from the INFLUXDB_* settings.
func NewStore(cfg *config.Config, logger *slog.Logger) *Store {
	client := influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	return &Store{
		client:  client,
		writer:  client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket),
		query:   client.QueryAPI(cfg.InfluxOrg),
		bucket:  cfg.InfluxBucket,
		hostTag: cfg.AggregatorHostTag,
		logger:  logger,
	}
}

// CheckReadiness pings the server.
func (s *Store) CheckReadiness(ctx context.Context) error {
	ok, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influx ping: %w", err)
	}
	if !ok {
		return errors.New("influx ping: server not ready")
	}
	return nil
}

// WriteRecords writes one point per record in a single request.
func (s *Store) WriteRecords(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}
	points := make([]*write.Point, 0, len(records))
	for _, r := range records {
		points = append(points, influxdb2.NewPoint(r.Measurement, r.Tags.Map(), r.Fields.Map(), r.Time))
	}
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d points: %w", len(points), err)
	}
	s.logger.Debug("points written", "count", len(points))
	return nil
}

// ExistingTimestamps returns the instants in [start, stop) that already hold a
// point of the measurement, as Unix nanoseconds.
func (s *Store) ExistingTimestamps(ctx context.Context, measurement string, start, stop time.Time) (map[int64]struct{}, error) {
	q := s.rangeQuery(measurement, domain.FieldRainMM, start, stop) + `
  |> keep(columns: ["_time"])`

	result, err := s.query.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query existing timestamps: %w", err)
	}
	defer result.Close()

	existing := make(map[int64]struct{})
	for result.Next() {
		existing[result.Record().Time().UnixNano()] = struct{}{}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read existing timestamps: %w", err)
	}
	return existing, nil
}

// QueryField returns every value of one field in [start, stop), sorted by
// time, with the tags of the series each value belongs to.
func (s *Store) QueryField(ctx context.Context, measurement, field string, start, stop time.Time) ([]domain.SeriesPoint, error) {
	q := s.rangeQuery(measurement, field, start, stop) + `
  |> sort(columns: ["_time"])`

	result, err := s.query.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", field, err)
	}
	defer result.Close()

	var points []domain.SeriesPoint
	for result.Next() {
		rec := result.Record()
		v, ok := toFloat(rec.Value())
		if !ok {
			s.logger.Warn("skipping non-numeric value", "field", field, "time", rec.Time(), "value", rec.Value())
			continue
		}
		points = append(points, domain.SeriesPoint{Time: rec.Time(), Value: v, Tags: recordTags(rec.Values())})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", field, err)
	}
	return points, nil
}

// WriteField overwrites one field at each point's timestamp. Points without
// tags are written under the configured host tag.
func (s *Store) WriteField(ctx context.Context, measurement, field string, points []domain.SeriesPoint) error {
	if len(points) == 0 {
		return nil
	}
	batch := make([]*write.Point, 0, len(points))
	for _, p := range points {
		tags := p.Tags
		if len(tags) == 0 {
			tags = map[string]string{"host": s.hostTag}
		}
		batch = append(batch, influxdb2.NewPoint(measurement, tags, map[string]any{field: p.Value}, p.Time))
	}
	if err := s.writer.WritePoint(ctx, batch...); err != nil {
		return fmt.Errorf("write %s: %w", field, err)
	}
	return nil
}

// Close releases the client's resources.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}

func (s *Store) rangeQuery(measurement, field string, start, stop time.Time) string {
	return fmt.Sprintf(`from(bucket: %s)
  |> range(start: %s, stop: %s)
  |> filter(fn: (r) => r._measurement == %s and r._field == %s)
  |> group()`,
		strconv.Quote(s.bucket),
		start.UTC().Format(time.RFC3339Nano),
		stop.UTC().Format(time.RFC3339Nano),
		strconv.Quote(measurement),
		strconv.Quote(field),
	)
}

// recordTags extracts tag columns from a flux record, skipping the
// underscore-prefixed system columns and the result/table annotations.
func recordTags(values map[string]any) map[string]string {
	tags := make(map[string]string)
	for k, v := range values {
		if strings.HasPrefix(k, "_") || k == "result" || k == "table" {
			continue
		}
		if str, ok := v.(string); ok {
			tags[k] = str
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
