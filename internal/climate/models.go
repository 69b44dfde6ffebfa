package climate

import (
	"math"
	"time"
)

// DateLayout is the calendar-date format used by the archive API and the CSV outputs.
const DateLayout = "2006-01-02"

// Zone represents a fixed point we track climate series for.
// Label is the join key across every table and must be unique within a run.
type Zone struct {
	Label     string  `json:"label" yaml:"label" validate:"required"`
	Latitude  float64 `json:"latitude" yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" yaml:"longitude" validate:"gte=-180,lte=180"`
}

// Key returns a canonical string key for indexing this zone in stores.
func (z Zone) Key() string {
	return z.Label
}

// DailySample is one day of the archive series for a zone.
// TemperatureC is NaN when the archive returned null for that day.
type DailySample struct {
	Zone         string    `json:"zone"`
	Date         time.Time `json:"date"` // midnight UTC
	TemperatureC float64   `json:"temperatureC"`
}

// Year returns the calendar year of the sample.
func (d DailySample) Year() int {
	return d.Date.Year()
}

// DayOfYear returns the 1-based day of the year of the sample.
func (d DailySample) DayOfYear() int {
	return d.Date.YearDay()
}

// Valid reports whether the sample carries a usable temperature.
func (d DailySample) Valid() bool {
	return !math.IsNaN(d.TemperatureC) && !math.IsInf(d.TemperatureC, 0)
}

// MonthlyAggregate is one monthly satellite surface-temperature statistic for a zone.
type MonthlyAggregate struct {
	Label         string    `json:"label"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	Year          int       `json:"year"`
	IntervalStart time.Time `json:"date"`
	SurfaceTempC  float64   `json:"s3TempCelsius"`
}

// IntervalStat is a single aggregation interval as returned by a statistics source.
// HasMean is false when the interval carried no mean; Mean may be NaN for the sentinel.
type IntervalStat struct {
	From    time.Time
	Mean    float64
	HasMean bool
}

// ZoneSeries groups the daily samples of one zone.
type ZoneSeries struct {
	Zone    Zone
	Samples []DailySample
}

// YearCurve is a smoothed day-of-year curve for a single year.
// X holds days of year, Y the smoothed temperatures; points with no value are omitted.
type YearCurve struct {
	Year int
	X    []float64
	Y    []float64
}
