package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the live source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// RecordWriter writes assembled records to a sink.
type RecordWriter interface {
	WriteRecords(ctx context.Context, records []domain.Record) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Pipeline runs the live extract-reconcile-write loop. Each extracted batch
// is one reconciliation pass; the counter offset and correction context are
// carried across batches because they belong to the same continuous stream.
type Pipeline struct {
	extractor  BatchExtractor
	reconciler *Reconciler
	writer     RecordWriter
	logger     *slog.Logger
	metrics    *observability.Metrics
	ready      atomic.Bool
	batchSize  int

	state StreamState
	line  int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, r *Reconciler, w RecordWriter, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:  e,
		reconciler: r,
		writer:     w,
		logger:     logger,
		metrics:    metrics,
		batchSize:  batchSize,
		line:       domain.HeaderRows,
	}
}

// CheckReadiness returns nil if the pipeline has written at least one batch,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not written any readings yet")
	}
	return nil
}

// Ready reports whether a batch has been written.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff) {
			return nil
		}
	}
}

// processBatch runs one extract-reconcile-write cycle. Returns false if the
// pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration) bool {
	start := time.Now()

	rawBatch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		if len(rawBatch) == 0 {
			p.logger.Error("extract batch failed", "error", err)
			return p.backoffOrStop(ctx, backoff)
		}
		// The source has already moved past these events.
		p.logger.Warn("extract batch failed, processing partial batch", "error", err, "count", len(rawBatch))
	}
	if len(rawBatch) == 0 {
		return ctx.Err() == nil
	}

	p.metrics.MessagesConsumed.Add(float64(len(rawBatch)))
	p.metrics.BatchSize.Observe(float64(len(rawBatch)))
	*backoff = initialBackoff

	rows := p.decode(rawBatch)
	result := p.reconciler.Pass(rows, &p.state)
	if !p.writeWithRetry(ctx, result.Records, backoff) {
		return false
	}

	for _, raw := range rawBatch {
		p.commitOffset(ctx, raw)
	}
	if len(result.Records) > 0 {
		p.metrics.PointsWritten.Add(float64(len(result.Records)))
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	return true
}

// decode turns events into rows, numbering them in arrival order. Events that
// are not valid payloads are logged and dropped.
func (p *Pipeline) decode(batch []domain.RawEvent) []domain.RawRow {
	rows := make([]domain.RawRow, 0, len(batch))
	for _, raw := range batch {
		p.line++
		row, err := domain.DecodePayload(p.line, raw.Value)
		if err != nil {
			p.logger.Warn("decode failed, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.RowsSkipped.Inc()
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// writeWithRetry retries the write of an already reconciled batch until it
// succeeds or the context ends, so the counter state never runs ahead of what
// the sink holds.
func (p *Pipeline) writeWithRetry(ctx context.Context, records []domain.Record, backoff *time.Duration) bool {
	if len(records) == 0 {
		return true
	}
	for {
		err := p.writer.WriteRecords(ctx, records)
		if err == nil {
			*backoff = initialBackoff
			return true
		}
		p.logger.Error("write batch failed", "error", err, "batch_size", len(records))
		if !p.backoffOrStop(ctx, backoff) {
			return false
		}
	}
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !retry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
