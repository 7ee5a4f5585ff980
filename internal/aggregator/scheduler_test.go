package aggregator

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/couchcryptid/weather-station-etl/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScheduler(t *testing.T) {
	job := NewJob(restartStore(), domain.DefaultMeasurement, madrid, true, slog.Default(), observability.NewMetricsForTesting())

	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{name: "daily after midnight", spec: "5 0 * * *"},
		{name: "hourly", spec: "0 * * * *"},
		{name: "descriptor", spec: "@daily"},
		{name: "too few fields", spec: "5 0 *", wantErr: true},
		{name: "garbage", spec: "sometimes", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScheduler(tt.spec, madrid, job, slog.Default())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, s.Next().After(time.Now()))
		})
	}
}

func TestScheduler_NextRunIsLocal(t *testing.T) {
	job := NewJob(restartStore(), domain.DefaultMeasurement, madrid, true, slog.Default(), observability.NewMetricsForTesting())
	s, err := NewScheduler("5 0 * * *", madrid, job, slog.Default())
	require.NoError(t, err)

	next := s.Next().In(madrid)
	assert.Equal(t, 0, next.Hour())
	assert.Equal(t, 5, next.Minute())
}

func TestScheduler_StartStop(t *testing.T) {
	job := NewJob(restartStore(), domain.DefaultMeasurement, madrid, true, slog.Default(), observability.NewMetricsForTesting())
	s, err := NewScheduler("5 0 * * *", madrid, job, slog.Default())
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	require.NoError(t, ctx.Err())
}
