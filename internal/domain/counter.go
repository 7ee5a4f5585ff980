package domain

// CounterState turns a daily-resetting accumulation into a historical
// cumulative value. It carries the running offset across calls, so one state
// must be used per continuous stream and never shared between concurrent
// passes.
type CounterState struct {
	offset  float64
	runMax  float64
	prev    float64
	started bool
}

// Next feeds one raw accumulation value and returns offset + value. A value
// below the previous raw value is treated as a reset: the maximum seen since
// the last reset is added to the offset.
func (s *CounterState) Next(v float64) float64 {
	switch {
	case !s.started:
		s.started = true
		s.runMax = v
	case v < s.prev:
		s.offset += s.runMax
		s.runMax = v
	default:
		s.runMax = max(s.runMax, v)
	}
	s.prev = v
	return Round2(s.offset + v)
}

// Offset returns the total contributed by completed periods.
func (s *CounterState) Offset() float64 {
	return s.offset
}

// ReconcileCounters rewrites RainMM of each reading in place with the
// historical cumulative derived from DailyRainMM. Readings must be sorted by
// timestamp.
func ReconcileCounters(readings []Reading, state *CounterState) {
	for i := range readings {
		readings[i].RainMM = state.Next(readings[i].DailyRainMM)
	}
}
