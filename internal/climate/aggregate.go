package climate

import (
	"math"
	"sort"
)

// SmoothingWindow is the default number of samples in the centred rolling mean.
const SmoothingWindow = 7

// MonthlyRows turns the intervals returned for one (zone, year) into table rows.
// Intervals without a finite mean are dropped.
func MonthlyRows(zone Zone, year int, stats []IntervalStat) []MonthlyAggregate {
	rows := make([]MonthlyAggregate, 0, len(stats))
	for _, s := range stats {
		if !s.HasMean || math.IsNaN(s.Mean) || math.IsInf(s.Mean, 0) {
			continue
		}
		rows = append(rows, MonthlyAggregate{
			Label:         zone.Label,
			Latitude:      zone.Latitude,
			Longitude:     zone.Longitude,
			Year:          year,
			IntervalStart: s.From.UTC(),
			SurfaceTempC:  s.Mean,
		})
	}
	return rows
}

// GroupByYear splits samples by calendar year, each group ordered by date.
func GroupByYear(samples []DailySample) map[int][]DailySample {
	groups := make(map[int][]DailySample)
	for _, s := range samples {
		groups[s.Year()] = append(groups[s.Year()], s)
	}
	for y := range groups {
		g := groups[y]
		sort.SliceStable(g, func(i, j int) bool { return g[i].Date.Before(g[j].Date) })
	}
	return groups
}

// RollingMean returns the centred rolling mean of values over window samples.
// A position whose window runs off either end, or contains NaN, yields NaN.
func RollingMean(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 0 {
		window = 1
	}
	for i := range values {
		start := i - window/2
		end := start + window - 1
		if start < 0 || end >= len(values) {
			out[i] = math.NaN()
			continue
		}

		var sum float64
		valid := true
		for _, v := range values[start : end+1] {
			if math.IsNaN(v) {
				valid = false
				break
			}
			sum += v
		}
		if !valid {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(window)
	}
	return out
}

// YearCurves smooths each year of samples over day-of-year, ordered by year.
func YearCurves(samples []DailySample, window int) []YearCurve {
	groups := GroupByYear(samples)

	years := make([]int, 0, len(groups))
	for y := range groups {
		years = append(years, y)
	}
	sort.Ints(years)

	curves := make([]YearCurve, 0, len(years))
	for _, y := range years {
		g := groups[y]
		temps := make([]float64, len(g))
		for i, s := range g {
			temps[i] = s.TemperatureC
		}
		smooth := RollingMean(temps, window)

		curve := YearCurve{Year: y}
		for i, v := range smooth {
			if math.IsNaN(v) {
				continue
			}
			curve.X = append(curve.X, float64(g[i].DayOfYear()))
			curve.Y = append(curve.Y, v)
		}
		curves = append(curves, curve)
	}
	return curves
}
