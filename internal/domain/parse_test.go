package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRow(line int, overrides map[string]string) RawRow {
	cols := map[string]string{
		ColDate:           "2024/03/15",
		ColTime:           "3:05 PM",
		ColTemperature:    "12,5",
		ColDewPoint:       "7.1",
		ColHumidity:       "68",
		ColWindDirection:  "SW",
		ColWindSpeed:      "8,3",
		ColWindGust:       "14.2",
		ColPressure:       "1013,2",
		ColPrecipRate:     "1.2",
		ColPrecipAccum:    "3,4",
		ColUV:             "2",
		ColSolarRadiation: "310.5",
	}
	for k, v := range overrides {
		if v == "" {
			delete(cols, k)
			continue
		}
		cols[k] = v
	}
	return RawRow{Line: line, Columns: cols}
}

func TestParseRow(t *testing.T) {
	res, err := NewResolver(DefaultTimezone)
	require.NoError(t, err)

	t.Run("valid row", func(t *testing.T) {
		r, err := ParseRow(testRow(2, nil), res)
		require.NoError(t, err)

		assert.Equal(t, 2, r.Line)
		assert.Equal(t, time.Date(2024, 3, 15, 14, 5, 0, 0, time.UTC), r.Timestamp)
		assert.Equal(t, 12.5, r.TemperatureC)
		assert.Equal(t, 7.1, r.DewPointC)
		assert.Equal(t, 68.0, r.Humidity)
		assert.Equal(t, 225.0, r.WindDirDeg)
		assert.Equal(t, 8.3, r.WindAvgKmh)
		assert.Equal(t, 14.2, r.WindGustKmh)
		assert.Equal(t, 1013.2, r.PressureHPa)
		assert.Equal(t, 1.2, r.PrecipRateMMH)
		assert.Equal(t, 3.4, r.DailyRainMM)
		assert.Equal(t, r.DailyRainMM, r.RainMM)
		assert.Equal(t, 2.0, r.UVI)
		assert.Equal(t, 310.5, r.SolarRadiation)
	})

	t.Run("unknown compass label defaults to north", func(t *testing.T) {
		r, err := ParseRow(testRow(3, map[string]string{ColWindDirection: "VAR"}), res)
		require.NoError(t, err)
		assert.Equal(t, 0.0, r.WindDirDeg)
	})

	t.Run("missing column", func(t *testing.T) {
		_, err := ParseRow(testRow(4, map[string]string{ColUV: ""}), res)
		var fe *FormatError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, ColUV, fe.Column)
		assert.Contains(t, err.Error(), "missing column")
	})

	t.Run("malformed value names the column", func(t *testing.T) {
		_, err := ParseRow(testRow(5, map[string]string{ColPressure: "n/a"}), res)
		var fe *FormatError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, ColPressure, fe.Column)
		assert.Equal(t, "n/a", fe.Value)
	})

	t.Run("malformed timestamp", func(t *testing.T) {
		_, err := ParseRow(testRow(6, map[string]string{ColTime: "25:99"}), res)
		var te *TimestampError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, "25:99", te.Time)
	})
}
