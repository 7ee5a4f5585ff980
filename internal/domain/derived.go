package domain

import "math"

// Round2 rounds to two decimal places, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// WindChill applies the Environment Canada formula when temperature is below
// 10 °C and wind above 4.8 km/h; otherwise it returns the temperature.
func WindChill(tempC, windKmh float64) float64 {
	if !windChillApplies(tempC, windKmh) {
		return tempC
	}
	v := math.Pow(windKmh, 0.16)
	return Round2(13.12 + 0.6215*tempC - 11.37*v + 0.3965*tempC*v)
}

// HeatIndex applies the Rothfusz regression with Celsius coefficients when
// temperature is above 27 °C and humidity above 40%; otherwise it returns the
// temperature.
func HeatIndex(tempC, humidity float64) float64 {
	if !heatIndexApplies(tempC, humidity) {
		return tempC
	}
	const (
		c1 = -8.78469475556
		c2 = 1.61139411
		c3 = 2.33854883889
		c4 = -0.14611605
		c5 = -0.012308094
		c6 = -0.0164248277778
		c7 = 0.002211732
		c8 = 0.00072546
		c9 = -0.000003582
	)
	t, rh := tempC, humidity
	hi := c1 + c2*t + c3*rh + c4*t*rh + c5*t*t + c6*rh*rh +
		c7*t*t*rh + c8*t*rh*rh + c9*t*t*rh*rh
	return Round2(hi)
}

// FeelsLike picks wind chill in the cold, heat index in the heat, and the raw
// temperature otherwise.
func FeelsLike(tempC, humidity, windKmh float64) float64 {
	switch {
	case windChillApplies(tempC, windKmh):
		return WindChill(tempC, windKmh)
	case heatIndexApplies(tempC, humidity):
		return HeatIndex(tempC, humidity)
	default:
		return tempC
	}
}

func windChillApplies(tempC, windKmh float64) bool {
	return tempC < 10 && windKmh > 4.8
}

func heatIndexApplies(tempC, humidity float64) bool {
	return tempC > 27 && humidity > 40
}

// beaufortLimits are the exclusive upper bounds (km/h) of forces 0 through 11.
var beaufortLimits = [...]float64{1, 5, 11, 19, 28, 38, 49, 61, 74, 88, 102, 117}

// Beaufort maps an average wind speed in km/h to the Beaufort force 0–12.
func Beaufort(windKmh float64) int {
	for force, limit := range beaufortLimits {
		if windKmh < limit {
			return force
		}
	}
	return len(beaufortLimits)
}

// UV risk categories.
const (
	UVRiskLow = iota
	UVRiskModerate
	UVRiskHigh
	UVRiskVeryHigh
	UVRiskExtreme
)

// UVRisk maps a UV index to a risk category.
func UVRisk(uvi float64) int {
	switch {
	case uvi < 3:
		return UVRiskLow
	case uvi < 6:
		return UVRiskModerate
	case uvi < 8:
		return UVRiskHigh
	case uvi < 11:
		return UVRiskVeryHigh
	default:
		return UVRiskExtreme
	}
}

// luxPerWattM2 is the daylight efficacy used to estimate illuminance.
const luxPerWattM2 = 126.7

// Illuminance estimates lux from solar irradiance in W/m².
func Illuminance(solarWM2 float64) float64 {
	return Round2(solarWM2 * luxPerWattM2)
}
