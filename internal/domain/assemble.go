package domain

// DefaultMeasurement is the sink measurement readings are written to.
const DefaultMeasurement = "rtl433"

// Assemble combines a corrected reading with its derived metrics into a
// record for the sink.
func Assemble(r Reading, tags Tags, measurement string) Record {
	return Record{
		Measurement: measurement,
		Time:        r.Timestamp,
		Tags:        tags,
		Fields: Fields{
			TemperatureC:      r.TemperatureC,
			Humidity:          r.Humidity,
			WindAvgKmh:        r.WindAvgKmh,
			WindMaxKmh:        r.WindGustKmh,
			WindDirDeg:        r.WindDirDeg,
			RainMM:            r.RainMM,
			LightLux:          Illuminance(r.SolarRadiation),
			UVI:               r.UVI,
			PressureHPa:       r.PressureHPa,
			DewPointC:         r.DewPointC,
			FeelsLikeC:        FeelsLike(r.TemperatureC, r.Humidity, r.WindAvgKmh),
			DailyRainCurrent:  r.DailyRainMM,
			PrecipRateMMH:     r.PrecipRateMMH,
			SolarRadiationWM2: r.SolarRadiation,
			WindBeaufort:      Beaufort(r.WindAvgKmh),
			UVRiskLevel:       UVRisk(r.UVI),
		},
		ProcessedAt: Now(),
	}
}

// AssembleAll assembles every reading with the same tags.
func AssembleAll(readings []Reading, tags Tags, measurement string) []Record {
	records := make([]Record, 0, len(readings))
	for _, r := range readings {
		records = append(records, Assemble(r, tags, measurement))
	}
	return records
}
