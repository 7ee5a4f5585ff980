package domain

import (
	"context"
	"time"
)

// Source column names as exported by the station console.
const (
	ColDate           = "Date"
	ColTime           = "Time"
	ColTemperature    = "Temperature_C"
	ColDewPoint       = "Dew_Point_C"
	ColHumidity       = "Humidity_%"
	ColWindDirection  = "Wind"
	ColWindSpeed      = "Speed_kmh"
	ColWindGust       = "Gust_kmh"
	ColPressure       = "Pressure_hPa"
	ColPrecipRate     = "Precip_Rate_mm"
	ColPrecipAccum    = "Precip_Accum_mm"
	ColUV             = "UV"
	ColSolarRadiation = "Solar_w/m2"
)

// HeaderRows is the number of rows preceding the first data row in a source
// file. Row numbers reported in errors and corrections include it.
const HeaderRows = 1

// RawRow is one row from the source feed before any parsing.
type RawRow struct {
	// Line is the 1-indexed position in the source, header included.
	Line    int
	Columns map[string]string
}

// RawReading holds the string values of one row, extracted by column.
type RawReading struct {
	Line           int
	Date           string
	Time           string
	Temperature    string
	DewPoint       string
	Humidity       string
	WindDirection  string
	WindSpeed      string
	WindGust       string
	Pressure       string
	PrecipAccum    string
	PrecipRate     string
	UV             string
	SolarRadiation string
}

// Reading is a parsed, numeric row. The same shape carries a reading through
// reconciliation: after [ReconcileCounters] RainMM holds the historical
// cumulative value, after [CorrectOutliers] WindGustKmh, RainMM and
// PrecipRateMMH may have been overwritten. No other field changes.
type Reading struct {
	Line      int
	Timestamp time.Time

	TemperatureC   float64
	DewPointC      float64
	Humidity       float64
	WindDirDeg     float64
	WindAvgKmh     float64
	WindGustKmh    float64
	PressureHPa    float64
	UVI            float64
	SolarRadiation float64
	PrecipRateMMH  float64

	// DailyRainMM is the raw "rain so far today" value and is never rewritten.
	DailyRainMM float64
	// RainMM starts equal to DailyRainMM and becomes the historical cumulative.
	RainMM float64
}

// Tags is the fixed tag set of an ingestion channel.
type Tags struct {
	Model     string `json:"model"`
	ID        string `json:"id"`
	Channel   string `json:"channel"`
	BatteryOK string `json:"battery_ok"`
	MIC       string `json:"mic"`
	Mod       string `json:"mod"`
	Topic     string `json:"topic"`
	Host      string `json:"host"`
}

// Map returns the tags keyed by sink tag name.
func (t Tags) Map() map[string]string {
	return map[string]string{
		"model":      t.Model,
		"id":         t.ID,
		"channel":    t.Channel,
		"battery_ok": t.BatteryOK,
		"mic":        t.MIC,
		"mod":        t.Mod,
		"topic":      t.Topic,
		"host":       t.Host,
	}
}

// CSVImportTags are the tags attached to points imported from console exports.
var CSVImportTags = Tags{
	Model:     "CSV_Import",
	ID:        "imported",
	Channel:   "0",
	BatteryOK: "1",
	MIC:       "CHECKSUM",
	Mod:       "CSV",
	Topic:     "import/csv",
	Host:      "import-script",
}

// LiveTags returns the tags for points ingested from a message bus topic.
func LiveTags(topic, host string) Tags {
	return Tags{
		Model:     "Live_Ingest",
		ID:        "live",
		Channel:   "0",
		BatteryOK: "1",
		MIC:       "CHECKSUM",
		Mod:       "STREAM",
		Topic:     topic,
		Host:      host,
	}
}

// Fields is the fixed field set written for every reading.
type Fields struct {
	TemperatureC      float64 `json:"temperature_C"`
	Humidity          float64 `json:"humidity"`
	WindAvgKmh        float64 `json:"wind_avg_km_h"`
	WindMaxKmh        float64 `json:"wind_max_km_h"`
	WindDirDeg        float64 `json:"wind_dir_deg"`
	RainMM            float64 `json:"rain_mm"`
	LightLux          float64 `json:"light_lux"`
	UVI               float64 `json:"uvi"`
	PressureHPa       float64 `json:"pressure_hPa"`
	DewPointC         float64 `json:"dew_point_C"`
	FeelsLikeC        float64 `json:"feels_like_C"`
	DailyRainCurrent  float64 `json:"daily_rain_current"`
	PrecipRateMMH     float64 `json:"precipitation_rate_mm_h"`
	SolarRadiationWM2 float64 `json:"solar_radiation_w_m2"`
	WindBeaufort      int     `json:"wind_speed_beaufort"`
	UVRiskLevel       int     `json:"uv_risk_level"`
}

// Sink field names shared with the daily aggregator.
const (
	FieldRainMM           = "rain_mm"
	FieldDailyRainCurrent = "daily_rain_current"
	FieldPrecipRate       = "precipitation_rate_mm_h"
)

// Map returns the fields keyed by sink field name, preserving integer types.
func (f Fields) Map() map[string]any {
	return map[string]any{
		"temperature_C":        f.TemperatureC,
		"humidity":             f.Humidity,
		"wind_avg_km_h":        f.WindAvgKmh,
		"wind_max_km_h":        f.WindMaxKmh,
		"wind_dir_deg":         f.WindDirDeg,
		FieldRainMM:            f.RainMM,
		"light_lux":            f.LightLux,
		"uvi":                  f.UVI,
		"pressure_hPa":         f.PressureHPa,
		"dew_point_C":          f.DewPointC,
		"feels_like_C":         f.FeelsLikeC,
		FieldDailyRainCurrent:  f.DailyRainCurrent,
		FieldPrecipRate:        f.PrecipRateMMH,
		"solar_radiation_w_m2": f.SolarRadiationWM2,
		"wind_speed_beaufort":  f.WindBeaufort,
		"uv_risk_level":        f.UVRiskLevel,
	}
}

// Record is an assembled point ready for a sink.
type Record struct {
	Measurement string    `json:"measurement"`
	Time        time.Time `json:"time"`
	Tags        Tags      `json:"tags"`
	Fields      Fields    `json:"fields"`
	ProcessedAt time.Time `json:"processed_at"`
}

// RawEvent is an unprocessed message from a live source.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Headers   map[string]string
	Commit    func(ctx context.Context) error
}
