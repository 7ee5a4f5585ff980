package domain

import "errors"

var errMissingColumn = errors.New("missing column")

// requiredColumns lists every column ParseRow reads.
var requiredColumns = []string{
	ColDate, ColTime, ColTemperature, ColDewPoint, ColHumidity, ColWindDirection,
	ColWindSpeed, ColWindGust, ColPressure, ColPrecipRate, ColPrecipAccum, ColUV,
	ColSolarRadiation,
}

// Extract pulls the required columns out of a row. A missing column is
// reported as a FormatError naming it.
func (r RawRow) Extract() (RawReading, error) {
	for _, col := range requiredColumns {
		if _, ok := r.Columns[col]; !ok {
			return RawReading{}, &FormatError{Column: col, Err: errMissingColumn}
		}
	}
	c := r.Columns
	return RawReading{
		Line:           r.Line,
		Date:           c[ColDate],
		Time:           c[ColTime],
		Temperature:    c[ColTemperature],
		DewPoint:       c[ColDewPoint],
		Humidity:       c[ColHumidity],
		WindDirection:  c[ColWindDirection],
		WindSpeed:      c[ColWindSpeed],
		WindGust:       c[ColWindGust],
		Pressure:       c[ColPressure],
		PrecipAccum:    c[ColPrecipAccum],
		PrecipRate:     c[ColPrecipRate],
		UV:             c[ColUV],
		SolarRadiation: c[ColSolarRadiation],
	}, nil
}

// ParseRow converts a raw row into a Reading. The first value that fails to
// parse aborts the row with a *FormatError or *TimestampError.
func ParseRow(row RawRow, res *Resolver) (Reading, error) {
	raw, err := row.Extract()
	if err != nil {
		return Reading{}, err
	}
	ts, err := res.Resolve(raw.Date, raw.Time)
	if err != nil {
		return Reading{}, err
	}

	p := decimalParser{}
	r := Reading{
		Line:           raw.Line,
		Timestamp:      ts,
		TemperatureC:   p.parse(ColTemperature, raw.Temperature),
		DewPointC:      p.parse(ColDewPoint, raw.DewPoint),
		Humidity:       p.parse(ColHumidity, raw.Humidity),
		WindAvgKmh:     p.parse(ColWindSpeed, raw.WindSpeed),
		WindGustKmh:    p.parse(ColWindGust, raw.WindGust),
		PressureHPa:    p.parse(ColPressure, raw.Pressure),
		PrecipRateMMH:  p.parse(ColPrecipRate, raw.PrecipRate),
		DailyRainMM:    p.parse(ColPrecipAccum, raw.PrecipAccum),
		UVI:            p.parse(ColUV, raw.UV),
		SolarRadiation: p.parse(ColSolarRadiation, raw.SolarRadiation),
	}
	if p.err != nil {
		return Reading{}, p.err
	}
	r.WindDirDeg, _ = CompassToDegrees(raw.WindDirection)
	r.RainMM = r.DailyRainMM
	return r, nil
}

// decimalParser keeps the first error so a row can be parsed field by field
// without checking after each one.
type decimalParser struct {
	err error
}

func (p *decimalParser) parse(col, s string) float64 {
	if p.err != nil {
		return 0
	}
	v, err := ParseDecimal(s)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Column = col
		}
		p.err = err
		return 0
	}
	return v
}
