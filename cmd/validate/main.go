// Command validate runs the reconciliation engine over a console CSV export
// and checks the properties the corrected series must hold on real data:
// monotonic counters, non-decreasing corrected accumulation, idempotent
// outlier correction, untouched rates on uncorrected rows and in-range
// derived metrics.
//
// Usage:
//
//	go run ./cmd/validate -file data/mock/station_export.csv [-tz Europe/Madrid]
package main

import (
	"cmp"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/couchcryptid/weather-station-etl/internal/adapter/csvfile"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// maxErrors caps the errors printed per phase.
const maxErrors = 20

func main() {
	file := flag.String("file", "", "path to the console CSV export")
	tz := flag.String("tz", domain.DefaultTimezone, "station time zone")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*file, *tz, os.Stdout); code != 0 {
		os.Exit(code)
	}
}

// pass holds every intermediate series of one reconciliation run.
type pass struct {
	rows       int
	skipped    int
	raw        []domain.Reading
	reconciled []domain.Reading
	corrected  []domain.Reading
	events     []domain.CorrectionEvent
	stats      domain.Stats
	records    []domain.Record
}

func run(file, tz string, w io.Writer) int {
	fmt.Fprintln(w, "=== Station Data Reconciliation Validation ===")
	fmt.Fprintln(w)

	rows, err := csvfile.ReadFile(file)
	if err != nil {
		fmt.Fprintf(w, "FATAL: %v\n", err)
		return 1
	}
	res, err := domain.NewResolver(tz)
	if err != nil {
		fmt.Fprintf(w, "FATAL: %v\n", err)
		return 1
	}

	ps := reconcile(rows, res)

	phases := []*phase{
		validateParsing(ps),
		validateCounterMonotonic(ps),
		validateCorrectedAccumulation(ps),
		validateIdempotence(ps),
		validateRatesUntouched(ps),
		validateDerivedMetrics(ps),
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(w, "  %-46s %s\n", p.name, status)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Rows: %d read, %d parsed, %d skipped\n", ps.rows, len(ps.raw), ps.skipped)
	fmt.Fprintf(w, "Corrections: %d wind gust, %d precip accum, %d precip rate\n",
		ps.stats.WindGust, ps.stats.PrecipAccum, ps.stats.PrecipRate)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(w, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxErrors {
				fmt.Fprintf(w, "  ... %d more\n", len(p.errors)-maxErrors)
				break
			}
			fmt.Fprintf(w, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(w, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(w, "\nValidation FAILED.")
	return 1
}

func reconcile(rows []domain.RawRow, res *domain.Resolver) pass {
	ps := pass{rows: len(rows)}
	for _, row := range rows {
		r, err := domain.ParseRow(row, res)
		if err != nil {
			ps.skipped++
			continue
		}
		ps.raw = append(ps.raw, r)
	}
	slices.SortStableFunc(ps.raw, func(a, b domain.Reading) int {
		return cmp.Compare(a.Timestamp.UnixNano(), b.Timestamp.UnixNano())
	})

	ps.reconciled = slices.Clone(ps.raw)
	domain.ReconcileCounters(ps.reconciled, &domain.CounterState{})

	cfg := domain.DefaultOutlierConfig()
	cfg.Detailed = true
	ps.corrected, ps.events, ps.stats = domain.CorrectOutliers(ps.reconciled, cfg, nil)
	ps.records = domain.AssembleAll(ps.corrected, domain.CSVImportTags, domain.DefaultMeasurement)
	return ps
}

// ── Validation phases ──

func validateParsing(ps pass) *phase {
	p := &phase{name: "Phase 1: Parsing"}
	if len(ps.raw) == 0 {
		p.errorf("no row could be parsed out of %d", ps.rows)
	}
	for i := 1; i < len(ps.raw); i++ {
		if ps.raw[i].Timestamp.Equal(ps.raw[i-1].Timestamp) {
			p.errorf("row %d: duplicate timestamp %s (row %d)", ps.raw[i].Line, ps.raw[i].Timestamp, ps.raw[i-1].Line)
		}
	}
	return p
}

func validateCounterMonotonic(ps pass) *phase {
	p := &phase{name: "Phase 2: Counter Reconciliation Monotonic"}
	for i := 1; i < len(ps.reconciled); i++ {
		prev, cur := ps.reconciled[i-1], ps.reconciled[i]
		if cur.RainMM < prev.RainMM {
			p.errorf("row %d: cumulative %.2f < previous %.2f", cur.Line, cur.RainMM, prev.RainMM)
		}
		if cur.DailyRainMM != ps.raw[i].DailyRainMM {
			p.errorf("row %d: daily value changed %.2f -> %.2f", cur.Line, ps.raw[i].DailyRainMM, cur.DailyRainMM)
		}
	}
	return p
}

func validateCorrectedAccumulation(ps pass) *phase {
	p := &phase{name: "Phase 3: Corrected Accumulation Non-decreasing"}
	for i := 1; i < len(ps.corrected); i++ {
		prev, cur := ps.corrected[i-1].RainMM, ps.corrected[i].RainMM
		if cur < prev && ps.reconciled[i].RainMM >= ps.reconciled[i-1].RainMM {
			p.errorf("row %d: corrected %.2f < previous %.2f", ps.corrected[i].Line, cur, prev)
		}
	}
	return p
}

func validateIdempotence(ps pass) *phase {
	p := &phase{name: "Phase 4: Outlier Correction Idempotent"}
	cfg := domain.DefaultOutlierConfig()
	cfg.Detailed = true
	_, events, _ := domain.CorrectOutliers(ps.corrected, cfg, nil)
	for _, ev := range events {
		p.errorf("row %d: second pass corrected %s %.2f -> %.2f (%s)", ev.Row, ev.Kind, ev.Original, ev.Corrected, ev.Rule)
	}
	return p
}

func validateRatesUntouched(ps pass) *phase {
	p := &phase{name: "Phase 5: Rates Untouched Without Correction"}
	corrected := make(map[int]bool)
	for _, ev := range ps.events {
		if ev.Kind == domain.KindPrecipAccum {
			corrected[ev.Row] = true
		}
	}
	for i, r := range ps.corrected {
		orig := ps.reconciled[i].PrecipRateMMH
		if corrected[r.Line] {
			if r.PrecipRateMMH < 0 || r.PrecipRateMMH > 60 {
				p.errorf("row %d: recomputed rate %.2f outside [0, 60]", r.Line, r.PrecipRateMMH)
			}
			continue
		}
		if r.PrecipRateMMH != orig {
			p.errorf("row %d: rate changed %.2f -> %.2f without an accumulation correction", r.Line, orig, r.PrecipRateMMH)
		}
	}
	return p
}

func validateDerivedMetrics(ps pass) *phase {
	p := &phase{name: "Phase 6: Derived Metrics In Range"}
	for i, rec := range ps.records {
		f := rec.Fields
		line := ps.corrected[i].Line
		if f.WindBeaufort < 0 || f.WindBeaufort > 12 {
			p.errorf("row %d: beaufort %d out of range", line, f.WindBeaufort)
		}
		if f.UVRiskLevel < 0 || f.UVRiskLevel > 4 {
			p.errorf("row %d: uv risk %d out of range", line, f.UVRiskLevel)
		}
		if f.LightLux != domain.Round2(f.SolarRadiationWM2*126.7) {
			p.errorf("row %d: light_lux %.2f does not match irradiance %.2f", line, f.LightLux, f.SolarRadiationWM2)
		}
		if math.IsNaN(f.FeelsLikeC) || math.IsInf(f.FeelsLikeC, 0) {
			p.errorf("row %d: feels-like is not finite", line)
		}
		cold := f.TemperatureC < 10 && f.WindAvgKmh > 4.8
		hot := f.TemperatureC > 27 && f.Humidity > 40
		if !cold && !hot && f.FeelsLikeC != f.TemperatureC {
			p.errorf("row %d: feels-like %.2f differs from temperature %.2f", line, f.FeelsLikeC, f.TemperatureC)
		}
	}
	return p
}
