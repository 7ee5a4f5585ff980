// Command genmock writes a synthetic station console export for exercising
// the reconciliation engine. Readings are taken every five minutes, the daily
// rain counter resets at local midnight, and a fixed number of wind-gust and
// precipitation spikes are injected at seeded random positions.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/synthetic.csv -days 7 -gust-spikes 3 -precip-spikes 2
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
)

const (
	interval   = 5 * time.Minute
	perDay     = int(24 * time.Hour / interval)
	rainPerRow = 0.2
	rainRate   = 2.4
	precipJump = 15.0
)

var header = []string{
	domain.ColDate, domain.ColTime, domain.ColTemperature, domain.ColDewPoint,
	domain.ColHumidity, domain.ColWindDirection, domain.ColWindSpeed, domain.ColWindGust,
	domain.ColPressure, domain.ColPrecipRate, domain.ColPrecipAccum, domain.ColUV,
	domain.ColSolarRadiation,
}

var compass = []string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE", "S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}

type options struct {
	start        time.Time
	days         int
	gustSpikes   int
	precipSpikes int
	seed         uint64
}

type summary struct {
	rows         int
	gustSpikes   []int
	precipSpikes []int
}

func main() {
	out := flag.String("out", "", "output CSV path")
	start := flag.String("start", "2024-05-01", "first local day (YYYY-MM-DD)")
	tz := flag.String("tz", domain.DefaultTimezone, "station time zone")
	days := flag.Int("days", 7, "number of days to generate")
	gust := flag.Int("gust-spikes", 3, "wind-gust spikes to inject")
	precip := flag.Int("precip-spikes", 2, "precipitation spikes to inject")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *out == "" || *days < 1 {
		flag.Usage()
		os.Exit(1)
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		log.Fatalf("invalid -tz: %v", err)
	}
	day, err := time.ParseInLocation(time.DateOnly, *start, loc)
	if err != nil {
		log.Fatalf("invalid -start: %v", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	s, err := generate(f, options{start: day, days: *days, gustSpikes: *gust, precipSpikes: *precip, seed: *seed})
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("wrote %d rows to %s (%d gust spikes, %d precip spikes)", s.rows, *out, len(s.gustSpikes), len(s.precipSpikes))
}

func generate(w io.Writer, opts options) (summary, error) {
	rng := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	total := opts.days * perDay
	s := summary{
		rows:         total,
		gustSpikes:   pickIndices(rng, total, opts.gustSpikes),
		precipSpikes: pickIndices(rng, total, opts.precipSpikes),
	}
	gustAt := toSet(s.gustSpikes)
	precipAt := toSet(s.precipSpikes)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return s, err
	}

	accum := 0.0
	for i := range total {
		ts := opts.start.Add(time.Duration(i) * interval)
		slot := i % perDay
		if slot == 0 {
			accum = 0
		}

		hour := float64(slot) / float64(perDay) * 24
		temp := 15 + 8*math.Sin((hour-9)/24*2*math.Pi)
		humidity := 65 - 15*math.Sin((hour-9)/24*2*math.Pi)
		avg := 1 + rng.Float64()*3
		gust := avg + rng.Float64()*4
		if gustAt[i] {
			gust = 95 + rng.Float64()*25
		}

		rate := 0.0
		if hour >= 14 && hour < 16 {
			accum += rainPerRow
			rate = rainRate
		}
		if precipAt[i] {
			accum += precipJump
		}

		solar := math.Max(0, 800*math.Sin((hour-6)/12*math.Pi))
		rec := []string{
			ts.Format("2006/01/02"),
			ts.Format("3:04 PM"),
			fmtFloat(temp, 1),
			fmtFloat(temp-6, 1),
			fmtFloat(humidity, 0),
			compass[rng.IntN(len(compass))],
			fmtFloat(avg, 1),
			fmtFloat(gust, 1),
			fmtFloat(1013+3*math.Sin(float64(i)/200), 1),
			fmtFloat(rate, 1),
			fmtFloat(accum, 1),
			fmtFloat(solar/100, 0),
			fmtFloat(solar, 0),
		}
		if err := cw.Write(rec); err != nil {
			return s, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return s, fmt.Errorf("flush csv: %w", err)
	}
	return s, nil
}

// pickIndices returns n distinct row indices, never the first row of a day,
// in ascending order.
func pickIndices(rng *rand.Rand, total, n int) []int {
	seen := make(map[int]bool, n)
	var out []int
	for len(out) < n && len(seen) < total-total/perDay {
		i := rng.IntN(total)
		if i%perDay == 0 || seen[i] {
			continue
		}
		seen[i] = true
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}

func toSet(xs []int) map[int]bool {
	m := make(map[int]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}

func fmtFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
