package domain

import (
	"strconv"
	"strings"
)

// compassDegrees maps 16-point compass labels and full names of the principal
// points to degrees clockwise from north.
var compassDegrees = map[string]float64{
	"N":   0,
	"NNE": 22.5,
	"NE":  45,
	"ENE": 67.5,
	"E":   90,
	"ESE": 112.5,
	"SE":  135,
	"SSE": 157.5,
	"S":   180,
	"SSW": 202.5,
	"SW":  225,
	"WSW": 247.5,
	"W":   270,
	"WNW": 292.5,
	"NW":  315,
	"NNW": 337.5,

	"NORTH":     0,
	"NORTHEAST": 45,
	"EAST":      90,
	"SOUTHEAST": 135,
	"SOUTH":     180,
	"SOUTHWEST": 225,
	"WEST":      270,
	"NORTHWEST": 315,
}

// ParseDecimal parses a numeral using either "." or "," as the fractional
// separator. A comma counts as the separator only when no dot is present.
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &FormatError{Value: s, Err: err}
	}
	return v, nil
}

// CompassToDegrees converts a compass label to degrees. Unknown labels map to
// 0 and report ok=false so callers can log them.
func CompassToDegrees(label string) (deg float64, ok bool) {
	deg, ok = compassDegrees[strings.ToUpper(strings.TrimSpace(label))]
	return deg, ok
}
