package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/observability"
)

// TimestampQuerier reports the timestamps already stored for a measurement in
// [start, stop).
type TimestampQuerier interface {
	ExistingTimestamps(ctx context.Context, measurement string, start, stop time.Time) (map[int64]struct{}, error)
}

// ImportOptions controls how an import writes to the sink.
type ImportOptions struct {
	// Overwrite writes every record, skipping the existing-timestamp query.
	Overwrite bool
	// DryRun runs everything except the write.
	DryRun bool
	// WriteBatchSize is the number of records per sink write.
	WriteBatchSize int
}

// ImportResult summarizes an import run.
type ImportResult struct {
	PassResult
	Start    time.Time
	Stop     time.Time
	Existing int
	Pending  []domain.Record
	Written  int
	Batches  int
}

// Importer reconciles a whole export in a single pass and writes the result.
type Importer struct {
	reconciler *Reconciler
	writer     RecordWriter
	existing   TimestampQuerier
	opts       ImportOptions
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewImporter creates an Importer. A nil existing querier disables
// de-duplication.
func NewImporter(r *Reconciler, w RecordWriter, existing TimestampQuerier, opts ImportOptions, logger *slog.Logger, metrics *observability.Metrics) *Importer {
	if opts.WriteBatchSize <= 0 {
		opts.WriteBatchSize = 1000
	}
	return &Importer{
		reconciler: r,
		writer:     w,
		existing:   existing,
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
	}
}

// Import runs the reconciliation pass over rows, drops records whose
// timestamps already exist in the sink and writes the rest in chunks. The
// first failed write aborts the remaining chunks; earlier chunks stay written.
func (im *Importer) Import(ctx context.Context, rows []domain.RawRow) (ImportResult, error) {
	var res ImportResult
	res.PassResult = im.reconciler.Pass(rows, &StreamState{})
	if len(res.Records) == 0 {
		im.logger.Warn("no valid readings to import", "rows", len(rows), "skipped", res.Skipped)
		return res, nil
	}
	res.Start = res.Records[0].Time
	res.Stop = res.Records[len(res.Records)-1].Time

	res.Pending = im.filterExisting(ctx, res.Records, res.Start, res.Stop)
	res.Existing = len(res.Records) - len(res.Pending)
	im.metrics.PointsExisting.Add(float64(res.Existing))

	im.logger.Info("import prepared",
		"start", res.Start,
		"stop", res.Stop,
		"records", len(res.Records),
		"existing", res.Existing,
		"pending", len(res.Pending),
		"skipped", res.Skipped,
	)
	if im.opts.DryRun || len(res.Pending) == 0 {
		return res, nil
	}

	for start := 0; start < len(res.Pending); start += im.opts.WriteBatchSize {
		end := min(start+im.opts.WriteBatchSize, len(res.Pending))
		if err := im.writer.WriteRecords(ctx, res.Pending[start:end]); err != nil {
			im.logger.Error("write batch failed", "error", err, "batch", res.Batches+1, "written", res.Written)
			return res, fmt.Errorf("write batch %d: %w", res.Batches+1, err)
		}
		res.Batches++
		res.Written += end - start
		im.metrics.PointsWritten.Add(float64(end - start))
	}
	im.logger.Info("import complete", "written", res.Written, "batches", res.Batches)
	return res, nil
}

// filterExisting drops records already in the sink. A failed lookup is not
// fatal: the import continues as if nothing were stored.
func (im *Importer) filterExisting(ctx context.Context, records []domain.Record, start, stop time.Time) []domain.Record {
	if im.opts.Overwrite || im.existing == nil {
		return records
	}
	existing, err := im.existing.ExistingTimestamps(ctx, im.reconciler.measurement, start, stop.Add(time.Nanosecond))
	if err != nil {
		im.logger.Warn("existing timestamp query failed, writing without de-duplication", "error", err)
		im.metrics.DedupeFallbacks.Inc()
		return records
	}
	pending := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		if _, ok := existing[rec.Time.UnixNano()]; ok {
			continue
		}
		pending = append(pending, rec)
	}
	return pending
}
