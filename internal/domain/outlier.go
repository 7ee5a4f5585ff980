package domain

import (
	"math"
	"slices"
	"time"
)

// CorrectionKind identifies the signal a correction was applied to.
type CorrectionKind string

const (
	KindWindGust    CorrectionKind = "wind_gust"
	KindPrecipAccum CorrectionKind = "precip_accum"
	KindPrecipRate  CorrectionKind = "precip_rate"
)

// Correction methods recorded on events.
const (
	MethodCalmNeighborMean = "calm_neighbor_mean"
	MethodWindAverage      = "wind_average"
	MethodZeroDelta        = "zero_delta"
	MethodRecomputedRate   = "recomputed_rate"
)

// Gust detection rules.
const (
	RuleGustCeiling  = "ceiling"
	RuleCalmNeighbor = "calm_neighbors"
	RuleTrendBreak   = "trend_break"
	RuleNoTrend      = "no_trend"
)

// CorrectionEvent records one value overwritten during a pass.
type CorrectionEvent struct {
	Kind      CorrectionKind     `json:"kind"`
	Row       int                `json:"row"`
	Timestamp time.Time          `json:"timestamp"`
	Original  float64            `json:"original"`
	Corrected float64            `json:"corrected"`
	Method    string             `json:"method"`
	Rule      string             `json:"rule,omitempty"`
	Context   map[string]float64 `json:"context,omitempty"`
}

// Stats counts corrections per kind for one pass.
type Stats struct {
	WindGust    int `json:"wind_gust"`
	PrecipAccum int `json:"precip_accum"`
	PrecipRate  int `json:"precip_rate"`
}

// Total returns the number of corrections of any kind.
func (s Stats) Total() int {
	return s.WindGust + s.PrecipAccum + s.PrecipRate
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.WindGust += other.WindGust
	s.PrecipAccum += other.PrecipAccum
	s.PrecipRate += other.PrecipRate
}

func (s *Stats) count(k CorrectionKind) {
	switch k {
	case KindWindGust:
		s.WindGust++
	case KindPrecipAccum:
		s.PrecipAccum++
	case KindPrecipRate:
		s.PrecipRate++
	}
}

// OutlierConfig holds the detection thresholds.
type OutlierConfig struct {
	// GustCeiling is the absolute gust limit in km/h for the ceiling rule.
	GustCeiling float64
	// GustAverageRatio is the multiple of average wind a ceiling breach must exceed.
	GustAverageRatio float64
	// GustSpikeFloor is the minimum gust for the calm-neighbor rule.
	GustSpikeFloor float64
	// CalmGust is the gust below which a reading counts as calm.
	CalmGust float64
	// CalmAverageLimit is the calm-neighbor mean below which the rule applies.
	CalmAverageLimit float64
	// CalmRatio is the multiple of the calm mean a spike must exceed.
	CalmRatio float64
	// NeighborSpan is how many rows either side are searched for calm readings.
	NeighborSpan int
	// ReplacementLookback is how many prior rows feed a replacement gust.
	ReplacementLookback int
	// ReplacementSamples caps the calm values used per side for a replacement.
	ReplacementSamples int

	// PrecipPerFiveMinutes is the accumulation ceiling per five elapsed minutes.
	PrecipPerFiveMinutes float64
	// TrendWindow is the number of recent positive deltas kept.
	TrendWindow int
	// TrendFactor is the multiple of the trend mean a delta must exceed.
	TrendFactor float64
	// MaxRateMMH clamps recomputed precipitation rates.
	MaxRateMMH float64

	// Detailed enables CorrectionEvent collection.
	Detailed bool
}

// DefaultOutlierConfig returns the thresholds tuned for the station.
func DefaultOutlierConfig() OutlierConfig {
	return OutlierConfig{
		GustCeiling:          80,
		GustAverageRatio:     10,
		GustSpikeFloor:       15,
		CalmGust:             10,
		CalmAverageLimit:     5,
		CalmRatio:            5,
		NeighborSpan:         5,
		ReplacementLookback:  10,
		ReplacementSamples:   5,
		PrecipPerFiveMinutes: 5,
		TrendWindow:          5,
		TrendFactor:          6,
		MaxRateMMH:           60,
	}
}

// OutlierState carries correction context from one pass into the next when a
// stream is reconciled in consecutive batches. The zero value starts a new
// stream. It must not be shared between concurrent passes.
type OutlierState struct {
	started       bool
	prevRaw       float64
	prevCorrected float64
	prevTime      time.Time
	window        []float64
	// recent holds the last corrected gusts, oldest first.
	recent []float64
}

// CorrectOutliers returns a corrected copy of readings. Only WindGustKmh,
// RainMM and PrecipRateMMH are ever changed. Events are collected when
// cfg.Detailed is set; stats are always filled. Readings must be sorted by
// timestamp and already passed through [ReconcileCounters].
//
// state links the pass to the previous batch of the same stream: the first
// row is checked against the previous row's accumulation and the gust rules
// see the previous corrected gusts. A nil state makes the pass independent.
func CorrectOutliers(readings []Reading, cfg OutlierConfig, state *OutlierState) ([]Reading, []CorrectionEvent, Stats) {
	if state == nil {
		state = &OutlierState{}
	}
	c := &corrector{
		cfg:   cfg,
		raw:   readings,
		out:   make([]Reading, len(readings)),
		st:    state,
		prior: state.recent,
	}
	copy(c.out, readings)
	for i := range c.out {
		c.gust(i)
		c.precip(i)
	}
	state.recent = c.recentGusts()
	return c.out, c.events, c.stats
}

// corrector is the mutable state of one pass.
type corrector struct {
	cfg    OutlierConfig
	raw    []Reading
	out    []Reading
	events []CorrectionEvent
	stats  Stats

	st *OutlierState
	// prior is the corrected gust tail of the previous pass.
	prior []float64
}

// recentGusts returns the corrected gusts the next pass may look back on.
func (c *corrector) recentGusts() []float64 {
	keep := max(c.cfg.ReplacementLookback, c.cfg.NeighborSpan)
	tail := make([]float64, 0, len(c.prior)+len(c.out))
	tail = append(tail, c.prior...)
	for _, r := range c.out {
		tail = append(tail, r.WindGustKmh)
	}
	if len(tail) > keep {
		tail = tail[len(tail)-keep:]
	}
	return slices.Clip(tail)
}

func (c *corrector) record(ev CorrectionEvent) {
	c.stats.count(ev.Kind)
	if c.cfg.Detailed {
		c.events = append(c.events, ev)
	}
}

func (c *corrector) gust(i int) {
	cur := c.raw[i]
	g, avg := cur.WindGustKmh, cur.WindAvgKmh

	rule := ""
	ctx := map[string]float64{"wind_avg": avg}
	if g > c.cfg.GustCeiling && (avg < 1 || g > c.cfg.GustAverageRatio*avg) {
		rule = RuleGustCeiling
	} else if g > c.cfg.GustSpikeFloor {
		calm := c.calmGusts(i, c.cfg.NeighborSpan, c.cfg.NeighborSpan, 0)
		if len(calm) > 0 {
			calmAvg := mean(calm)
			ctx["calm_avg"] = calmAvg
			if calmAvg < c.cfg.CalmAverageLimit && g > c.cfg.CalmRatio*calmAvg {
				rule = RuleCalmNeighbor
			}
		}
	}
	if rule == "" {
		return
	}

	replacement, method := avg, MethodWindAverage
	if calm := c.calmGusts(i, c.cfg.ReplacementLookback, c.cfg.NeighborSpan, c.cfg.ReplacementSamples); len(calm) > 0 {
		replacement, method = mean(calm), MethodCalmNeighborMean
	}
	replacement = Round2(replacement)
	c.out[i].WindGustKmh = replacement
	c.record(CorrectionEvent{
		Kind:      KindWindGust,
		Row:       cur.Line,
		Timestamp: cur.Timestamp,
		Original:  g,
		Corrected: replacement,
		Method:    method,
		Rule:      rule,
		Context:   ctx,
	})
}

// calmGusts collects calm gust values from up to back prior rows (already
// corrected, reaching into the previous pass) and up to fwd following rows
// (raw), skipping non-calm ones. A positive limit caps the values taken from
// each side.
func (c *corrector) calmGusts(i, back, fwd, limit int) []float64 {
	var calm []float64
	taken := 0
	for j := i - 1; j >= i-back && j >= -len(c.prior); j-- {
		if limit > 0 && taken == limit {
			break
		}
		if v := c.correctedGust(j); v < c.cfg.CalmGust {
			calm = append(calm, v)
			taken++
		}
	}
	taken = 0
	for j := i + 1; j < len(c.raw) && j <= i+fwd; j++ {
		if limit > 0 && taken == limit {
			break
		}
		if v := c.raw[j].WindGustKmh; v < c.cfg.CalmGust {
			calm = append(calm, v)
			taken++
		}
	}
	return calm
}

// correctedGust returns the corrected gust at row j, where negative rows
// index the previous pass from its end.
func (c *corrector) correctedGust(j int) float64 {
	if j < 0 {
		return c.prior[len(c.prior)+j]
	}
	return c.out[j].WindGustKmh
}

func (c *corrector) precip(i int) {
	cur := c.raw[i]
	raw := cur.RainMM
	st := c.st
	defer func() {
		st.started = true
		st.prevRaw = raw
		st.prevTime = cur.Timestamp
		st.prevCorrected = c.out[i].RainMM
	}()

	if !st.started {
		return
	}

	delta := raw - st.prevRaw
	elapsed := cur.Timestamp.Sub(st.prevTime)
	switch {
	case delta < 0:
		c.out[i].RainMM = raw
		st.window = st.window[:0]
		return
	case elapsed <= 0:
		c.out[i].RainMM = Round2(st.prevCorrected + delta)
		return
	}

	minutes := elapsed.Minutes()
	ceiling := c.cfg.PrecipPerFiveMinutes * minutes / 5
	if delta > ceiling {
		rule := RuleNoTrend
		trend := 0.0
		if len(st.window) > 0 {
			trend = mean(st.window)
			rule = RuleTrendBreak
		}
		if len(st.window) == 0 || delta > c.cfg.TrendFactor*trend {
			c.correctPrecip(i, delta, ceiling, trend, minutes, rule)
			return
		}
	}

	c.out[i].RainMM = Round2(st.prevCorrected + delta)
	if delta > 0 {
		st.window = append(st.window, delta)
		if len(st.window) > c.cfg.TrendWindow {
			st.window = st.window[1:]
		}
	}
}

func (c *corrector) correctPrecip(i int, delta, ceiling, trend, minutes float64, rule string) {
	cur := c.raw[i]
	corrected := c.st.prevCorrected
	c.out[i].RainMM = corrected

	correctedDelta := corrected - c.st.prevCorrected
	rate := Round2(math.Min(math.Max(correctedDelta/(minutes/60), 0), c.cfg.MaxRateMMH))
	c.out[i].PrecipRateMMH = rate

	ctx := map[string]float64{
		"delta":       delta,
		"ceiling":     ceiling,
		"trend_avg":   trend,
		"elapsed_min": minutes,
	}
	c.record(CorrectionEvent{
		Kind:      KindPrecipAccum,
		Row:       cur.Line,
		Timestamp: cur.Timestamp,
		Original:  cur.RainMM,
		Corrected: corrected,
		Method:    MethodZeroDelta,
		Rule:      rule,
		Context:   ctx,
	})
	c.record(CorrectionEvent{
		Kind:      KindPrecipRate,
		Row:       cur.Line,
		Timestamp: cur.Timestamp,
		Original:  cur.PrecipRateMMH,
		Corrected: rate,
		Method:    MethodRecomputedRate,
		Rule:      rule,
		Context:   map[string]float64{"corrected_delta": correctedDelta, "elapsed_min": minutes},
	})
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
