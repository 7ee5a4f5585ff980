package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/weather-station-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/weather-station-etl/internal/aggregator"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockRunner struct {
	day time.Time
	res aggregator.Result
	err error
}

func (m *mockRunner) RunDay(_ context.Context, day time.Time) (aggregator.Result, error) {
	m.day = day
	m.res.Day = day.Format(time.DateOnly)
	return m.res, m.err
}

func newTestServer(readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("not ready yet"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestReadyzChecksEveryDependency(t *testing.T) {
	srv := httpadapter.NewServer(":0", httpadapter.AllReady(
		&mockReadiness{},
		&mockReadiness{err: errors.New("influx ping: connection refused")},
	), slog.Default())
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestReconcileDaily(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	tests := []struct {
		name     string
		query    string
		runErr   error
		wantCode int
		wantDay  string
	}{
		{name: "explicit date", query: "?date=2024-05-01", wantCode: http.StatusOK, wantDay: "2024-05-01"},
		{name: "defaults to yesterday", wantCode: http.StatusOK, wantDay: "2024-05-09"},
		{name: "bad date", query: "?date=01/05/2024", wantCode: http.StatusBadRequest},
		{name: "already running", query: "?date=2024-05-01", runErr: domain.ErrDayInProgress, wantCode: http.StatusConflict, wantDay: "2024-05-01"},
		{name: "store failure", query: "?date=2024-05-01", runErr: errors.New("timeout"), wantCode: http.StatusInternalServerError, wantDay: "2024-05-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, 5, 10, 6, 0, 0, 0, time.UTC)))
			t.Cleanup(func() { domain.SetClock(nil) })

			runner := &mockRunner{
				res: aggregator.Result{Outcome: aggregator.OutcomeRewritten, Summary: domain.DailySummary{Restarts: 2, MaxCorrected: 4.2}},
				err: tt.runErr,
			}
			srv := newTestServer(nil)
			srv.HandleDailyReconcile(runner, madrid)

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reconcile/daily"+tt.query, nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			if tt.wantDay != "" {
				assert.Equal(t, tt.wantDay, body["day"])
			}
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, aggregator.OutcomeRewritten, body["outcome"])
				assert.InDelta(t, 2, body["restarts"], 0)
				assert.InDelta(t, 4.2, body["max_corrected"], 1e-9)
			}
		})
	}
}

func TestReconcileDaily_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(nil)
	srv.HandleDailyReconcile(&mockRunner{}, time.UTC)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reconcile/daily", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
