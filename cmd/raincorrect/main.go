// Command raincorrect rebuilds one day's "rain today" series after station
// restarts, using the stored historical cumulative series as ground truth.
//
// Usage:
//
//	go run ./cmd/raincorrect [-date 2024-05-01] [-dry-run]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/couchcryptid/weather-station-etl/internal/aggregator"
	"github.com/couchcryptid/weather-station-etl/internal/config"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/observability"
	"github.com/couchcryptid/weather-station-etl/internal/sink"
)

func main() {
	date := flag.String("date", "", "local day to process as YYYY-MM-DD (default: yesterday)")
	dryRun := flag.Bool("dry-run", false, "report the correction without writing")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *date, *dryRun, observability.NewMetrics(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "raincorrect failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, date string, dryRun bool, metrics *observability.Metrics, w io.Writer) error {
	config.LoadDotEnv(slog.Default())
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)

	resolver, err := domain.NewResolver(cfg.Timezone)
	if err != nil {
		return err
	}
	loc := resolver.Location()

	day := domain.Now().In(loc).AddDate(0, 0, -1)
	if date != "" {
		day, err = time.ParseInLocation(time.DateOnly, date, loc)
		if err != nil {
			return fmt.Errorf("invalid -date %q: must be YYYY-MM-DD", date)
		}
	}

	out, err := sink.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer out.Close()

	store, ok := sink.SeriesStore(out)
	if !ok {
		return fmt.Errorf("sink %q does not store series", cfg.Sink)
	}

	res, err := aggregator.NewJob(store, cfg.Measurement, loc, dryRun, logger, metrics).RunDay(ctx, day)
	if err != nil {
		return err
	}
	printResult(w, res, loc)
	return nil
}

func printResult(w io.Writer, res aggregator.Result, loc *time.Location) {
	fmt.Fprintf(w, "Day:      %s\n", res.Day)
	fmt.Fprintf(w, "Outcome:  %s\n", res.Outcome)
	switch res.Outcome {
	case aggregator.OutcomeInsufficient:
		fmt.Fprintln(w, "Not enough data points to analyze.")
		return
	case aggregator.OutcomeClean:
		fmt.Fprintln(w, "No restarts detected.")
		return
	}

	fmt.Fprintf(w, "Restarts: %d\n", len(res.Correction.Restarts))
	for _, r := range res.Correction.Restarts {
		fmt.Fprintf(w, "  %s  %.2f -> %.2f\n", r.Time.In(loc).Format(time.TimeOnly), r.Previous, r.Current)
	}
	fmt.Fprintf(w, "Baseline: %.2f mm\n", res.Correction.Baseline)

	fmt.Fprintf(w, "Significant corrections: %d\n", len(res.Summary.Adjustments))
	for _, a := range res.Summary.Adjustments {
		fmt.Fprintf(w, "  %s  %.2f -> %.2f mm\n", a.Time.In(loc).Format(time.TimeOnly), a.Original, a.Corrected)
	}
	fmt.Fprintf(w, "Max corrected: %.2f mm\n", res.Summary.MaxCorrected)

	fmt.Fprintf(w, "Rainy periods: %d\n", len(res.Summary.RainyPeriods))
	for _, p := range res.Summary.RainyPeriods {
		fmt.Fprintf(w, "  %s  %.2f mm/h\n", p.Time.In(loc).Format(time.TimeOnly), p.Value)
	}
}
