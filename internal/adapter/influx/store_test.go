package influx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/couchcryptid/weather-station-etl/internal/config"
	"github.com/couchcryptid/weather-station-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const csvHeader = `#datatype,string,long,dateTime:RFC3339,dateTime:RFC3339,dateTime:RFC3339,double,string,string,string
#group,false,false,true,true,false,false,true,true,true
#default,_result,,,,,,,,
,result,table,_start,_stop,_time,_value,_field,_measurement,host
`

// fakeInflux records write bodies and query texts and answers queries with a
// canned annotated CSV response.
type fakeInflux struct {
	mu       sync.Mutex
	writes   []string
	queries  []string
	response string
	status   int
}

func (f *fakeInflux) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/write", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		f.mu.Lock()
		f.writes = append(f.writes, string(body))
		status := f.status
		f.mu.Unlock()
		if status != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"code":"internal error","message":"disk full"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v2/query", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query string `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.queries = append(f.queries, body.Query)
		status := f.status
		f.mu.Unlock()
		if status != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"code":"unavailable","message":"down"}`))
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = io.WriteString(w, f.response)
	})
	mux.HandleFunc("/ping", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newTestStore(t *testing.T, f *fakeInflux) *Store {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		InfluxURL:         srv.URL,
		InfluxToken:       "token",
		InfluxOrg:         "home",
		InfluxBucket:      "weather",
		AggregatorHostTag: "weather-station",
	}
	s := NewStore(cfg, slog.Default())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var day = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func TestWriteRecords(t *testing.T) {
	f := &fakeInflux{}
	s := newTestStore(t, f)

	rec := domain.Record{
		Measurement: "rtl433",
		Time:        day.Add(10 * time.Minute),
		Tags:        domain.CSVImportTags,
		Fields:      domain.Fields{RainMM: 12.5, WindBeaufort: 3},
	}
	require.NoError(t, s.WriteRecords(context.Background(), []domain.Record{rec, rec}))

	require.Len(t, f.writes, 1)
	lines := strings.Split(strings.TrimSpace(f.writes[0]), "\n")
	assert.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "rtl433,"))
	assert.Contains(t, lines[0], "model=CSV_Import")
	assert.Contains(t, lines[0], "rain_mm=12.5")
	assert.Contains(t, lines[0], "wind_speed_beaufort=3i")
	assert.True(t, strings.HasSuffix(lines[0], " 1714522200000000000"))
}

func TestWriteRecords_Empty(t *testing.T) {
	f := &fakeInflux{}
	s := newTestStore(t, f)
	require.NoError(t, s.WriteRecords(context.Background(), nil))
	assert.Empty(t, f.writes)
}

func TestWriteRecords_ServerError(t *testing.T) {
	f := &fakeInflux{status: http.StatusInternalServerError}
	s := newTestStore(t, f)

	err := s.WriteRecords(context.Background(), []domain.Record{{Measurement: "rtl433", Time: day, Tags: domain.CSVImportTags}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write 1 points")
}

func TestExistingTimestamps(t *testing.T) {
	f := &fakeInflux{response: csvHeader +
		",,0,2024-05-01T00:00:00Z,2024-05-02T00:00:00Z,2024-05-01T00:05:00Z,1.5,rain_mm,rtl433,import-script\n" +
		",,0,2024-05-01T00:00:00Z,2024-05-02T00:00:00Z,2024-05-01T00:10:00Z,1.7,rain_mm,rtl433,import-script\n\n"}
	s := newTestStore(t, f)

	got, err := s.ExistingTimestamps(context.Background(), "rtl433", day, day.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Len(t, got, 2)
	assert.Contains(t, got, day.Add(5*time.Minute).UnixNano())
	assert.Contains(t, got, day.Add(10*time.Minute).UnixNano())

	require.Len(t, f.queries, 1)
	q := f.queries[0]
	assert.Contains(t, q, `from(bucket: "weather")`)
	assert.Contains(t, q, "range(start: 2024-05-01T00:00:00Z, stop: 2024-05-02T00:00:00Z)")
	assert.Contains(t, q, `r._measurement == "rtl433"`)
	assert.Contains(t, q, `keep(columns: ["_time"])`)
}

func TestExistingTimestamps_QueryError(t *testing.T) {
	f := &fakeInflux{status: http.StatusServiceUnavailable}
	s := newTestStore(t, f)

	_, err := s.ExistingTimestamps(context.Background(), "rtl433", day, day.Add(time.Hour))
	assert.Error(t, err)
}

func TestQueryField(t *testing.T) {
	f := &fakeInflux{response: csvHeader +
		",,0,2024-05-01T00:00:00Z,2024-05-02T00:00:00Z,2024-05-01T00:05:00Z,0,daily_rain_current,rtl433,weather-station\n" +
		",,0,2024-05-01T00:00:00Z,2024-05-02T00:00:00Z,2024-05-01T00:10:00Z,0.8,daily_rain_current,rtl433,weather-station\n\n"}
	s := newTestStore(t, f)

	points, err := s.QueryField(context.Background(), "rtl433", domain.FieldDailyRainCurrent, day, day.Add(24*time.Hour))
	require.NoError(t, err)

	require.Len(t, points, 2)
	assert.Equal(t, day.Add(5*time.Minute), points[0].Time)
	assert.Equal(t, 0.8, points[1].Value)
	assert.Equal(t, map[string]string{"host": "weather-station"}, points[1].Tags)
	assert.Contains(t, f.queries[0], `r._field == "daily_rain_current"`)
	assert.Contains(t, f.queries[0], `sort(columns: ["_time"])`)
}

func TestWriteField(t *testing.T) {
	f := &fakeInflux{}
	s := newTestStore(t, f)

	points := []domain.SeriesPoint{
		{Time: day.Add(5 * time.Minute), Value: 1.25, Tags: map[string]string{"host": "import-script", "model": "CSV_Import"}},
		{Time: day.Add(10 * time.Minute), Value: 2},
	}
	require.NoError(t, s.WriteField(context.Background(), "rtl433", domain.FieldDailyRainCurrent, points))

	require.Len(t, f.writes, 1)
	lines := strings.Split(strings.TrimSpace(f.writes[0]), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "rtl433,host=import-script,model=CSV_Import daily_rain_current=1.25 1714521900000000000", lines[0])
	assert.Equal(t, "rtl433,host=weather-station daily_rain_current=2 1714522200000000000", lines[1])
}

func TestCheckReadiness(t *testing.T) {
	s := newTestStore(t, &fakeInflux{})
	assert.NoError(t, s.CheckReadiness(context.Background()))
}

func TestRecordTags(t *testing.T) {
	tags := recordTags(map[string]any{
		"result": "_result", "table": int64(0), "_time": day, "_value": 1.0,
		"_field": "rain_mm", "_measurement": "rtl433", "host": "pi", "id": "imported",
	})
	assert.Equal(t, map[string]string{"host": "pi", "id": "imported"}, tags)
	assert.Nil(t, recordTags(map[string]any{"_value": 1.0}))
}
