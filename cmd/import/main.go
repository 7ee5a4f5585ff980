// Command import reconciles a station console CSV export and writes the
// corrected readings to the configured sink.
//
// Usage:
//
//	go run ./cmd/import -file data/mock/station_export.csv [-dry-run] [-overwrite] [-report]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/weather-station-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/weather-station-etl/internal/config"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/observability"
	"github.com/couchcryptid/weather-station-etl/internal/pipeline"
	"github.com/couchcryptid/weather-station-etl/internal/sink"
)

func main() {
	file := flag.String("file", "", "path to the console CSV export")
	dryRun := flag.Bool("dry-run", false, "reconcile and report without writing")
	overwrite := flag.Bool("overwrite", false, "write every reading, even timestamps already stored")
	report := flag.Bool("report", false, "print every correction applied")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := pipeline.ImportOptions{Overwrite: *overwrite, DryRun: *dryRun}
	if err := run(ctx, *file, opts, *report, observability.NewMetrics(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, file string, opts pipeline.ImportOptions, report bool, metrics *observability.Metrics, w io.Writer) error {
	config.LoadDotEnv(slog.Default())
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)
	opts.WriteBatchSize = cfg.WriteBatchSize

	rows, err := csvfile.ReadFile(file)
	if err != nil {
		return err
	}

	resolver, err := domain.NewResolver(cfg.Timezone)
	if err != nil {
		return err
	}
	outliers := domain.DefaultOutlierConfig()
	outliers.Detailed = report
	reconciler := pipeline.NewReconciler(resolver, outliers, domain.CSVImportTags, cfg.Measurement, logger, metrics)

	out, err := sink.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer out.Close()

	var existing pipeline.TimestampQuerier
	if q, ok := sink.Querier(out); ok {
		existing = q
	}

	res, err := pipeline.NewImporter(reconciler, out, existing, opts, logger, metrics).Import(ctx, rows)
	printSummary(w, file, res, opts.DryRun)
	if report {
		printCorrections(w, res.Events)
	}
	return err
}

func printSummary(w io.Writer, file string, res pipeline.ImportResult, dryRun bool) {
	fmt.Fprintf(w, "File:        %s\n", file)
	fmt.Fprintf(w, "Readings:    %d (%d rows skipped)\n", len(res.Records), res.Skipped)
	if len(res.Records) == 0 {
		return
	}
	fmt.Fprintf(w, "Range:       %s .. %s\n", res.Start.Format("2006-01-02 15:04:05Z07:00"), res.Stop.Format("2006-01-02 15:04:05Z07:00"))
	fmt.Fprintf(w, "Corrections: %d wind gust, %d precip accum, %d precip rate\n",
		res.Stats.WindGust, res.Stats.PrecipAccum, res.Stats.PrecipRate)
	fmt.Fprintf(w, "Existing:    %d\n", res.Existing)

	if dryRun {
		fmt.Fprintf(w, "Dry run:     %d readings would be written\n", len(res.Pending))
		if len(res.Pending) > 0 {
			sample, err := json.MarshalIndent(res.Pending[0], "", "  ")
			if err == nil {
				fmt.Fprintf(w, "Sample record:\n%s\n", sample)
			}
		}
		return
	}
	fmt.Fprintf(w, "Written:     %d in %d batches\n", res.Written, res.Batches)
}

func printCorrections(w io.Writer, events []domain.CorrectionEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No corrections.")
		return
	}
	fmt.Fprintln(w, "Corrections:")
	for _, ev := range events {
		fmt.Fprintf(w, "  row %-6d %s  %-12s %8.2f -> %8.2f  %s/%s\n",
			ev.Row, ev.Timestamp.Format("2006-01-02 15:04"), ev.Kind, ev.Original, ev.Corrected, ev.Rule, ev.Method)
	}
}
