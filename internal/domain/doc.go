// Package domain models readings from a personal weather station and the
// reconciliation rules that turn its noisy feed into a trustworthy series.
//
// # Data Source
//
// Historical readings arrive as CSV exports from the station console, one row
// per sample (typically every 5 minutes). Live readings arrive as flat JSON
// objects carrying the same column names. Either way a row is a mapping of
// column name to string, parsed by [ParseRow].
//
// # Station Data Conventions
//
// Decimal format:
//
//	Both "25.17" and "25,17" appear, depending on the console locale.
//	A comma is treated as the fractional separator only when no dot is
//	present. See [ParseDecimal].
//
// Wind direction:
//
//	16-point compass labels (N, NNE, ..., NNW) plus full names for the eight
//	principal points (NORTH, NORTHEAST, ...). Matching is case-insensitive.
//	Unknown labels map to 0° (north) instead of failing the row.
//
// Time format:
//
//	Date "2024/03/15" and 12-hour time "3:05 PM" in the station's local zone
//	(Europe/Madrid by default), resolved to an absolute UTC instant by
//	[Resolver].
//
// Cumulative counters:
//
//	Precip_Accum_mm is "rain so far today": it climbs during the day and
//	drops back to a low value at midnight, on console restarts, or on
//	glitches. [CounterState] turns it into a non-decreasing historical total
//	(rain_mm) by adding the previous day's maximum to a running offset at each
//	drop.
//
// # Outliers
//
// The anemometer and rain gauge occasionally report single-sample spikes.
// [CorrectOutliers] replaces them conservatively: a gust spike becomes the
// mean of nearby calm gusts, a precipitation spike contributes zero rain.
// No attempt is made to recover the true physical value. [OutlierState]
// carries the previous row and recent gusts into the next batch of a stream.
//
// Gust thresholds (km/h):
//
//	ceiling 80, with average wind < 1 or gust > 10x average
//	or gust > 15 next to calm (< 10) gusts averaging < 5, gust > 5x that average
//
// Precipitation thresholds:
//
//	5 mm per 5 minutes, scaled by elapsed minutes, and > 6x the mean of the
//	last 5 accepted positive deltas when that window is non-empty.
//
// # Daily Rain Restarts
//
// daily_rain_current is derived by the live bridge and restarts from zero
// whenever the bridge restarts mid-day. [ReconstructDay] detects such drops
// (> 0.5 mm) and rebuilds the whole day from rain_mm, the ground truth.
package domain
