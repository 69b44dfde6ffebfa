// Package plot renders year-over-year temperature charts.
package plot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/i474232898/climate-zones/internal/climate"
	"github.com/i474232898/climate-zones/internal/common"
)

const (
	Width  = 2000
	Height = 1200
	DPI    = 200

	Title  = "Daily Mean Temperature Comparison"
	XLabel = "Month"
	YLabel = "Temperature (°C)"
)

// ErrNoData is returned when no year has enough smoothed points to draw.
var ErrNoData = errors.New("no plottable data")

// Highlight draws one year on top of the others.
type Highlight struct {
	Year  int
	Color drawing.Color
}

// DefaultHighlights are the first and last years of the default archive window.
var DefaultHighlights = []Highlight{
	{Year: 2016, Color: drawing.ColorFromHex("1f77b4")},
	{Year: 2024, Color: drawing.ColorFromHex("d62728")},
}

// HighlightYears pairs years with the default highlight palette, cycling if needed.
func HighlightYears(years ...int) []Highlight {
	out := make([]Highlight, len(years))
	for i, y := range years {
		out[i] = Highlight{Year: y, Color: DefaultHighlights[i%len(DefaultHighlights)].Color}
	}
	return out
}

var (
	backgroundColor = drawing.ColorFromHex("808080").WithAlpha(31) // ~0.12 opacity
	monthStarts     = []float64{1, 32, 60, 91, 121, 152, 182, 213, 244, 274, 305, 335}
	monthNames      = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
)

// MonthTicks labels the first day of every month (non-leap year).
func MonthTicks() []chart.Tick {
	ticks := make([]chart.Tick, len(monthStarts))
	for i, v := range monthStarts {
		ticks[i] = chart.Tick{Value: v, Label: monthNames[i]}
	}
	return ticks
}

// FileName is the output name of a zone's overlay chart.
func FileName(label string, highlights []Highlight) string {
	name := "plot_" + common.FileSafe(label)
	for i, h := range highlights {
		if i == 0 {
			name += "_" + strconv.Itoa(h.Year)
			continue
		}
		name += "_vs_" + strconv.Itoa(h.Year)
	}
	return name + ".png"
}

// Overlay builds the chart: every year smoothed over day of year, faint gray,
// with the highlighted years drawn last and listed in the legend.
func Overlay(samples []climate.DailySample, highlights []Highlight) (*chart.Chart, error) {
	curves := climate.YearCurves(samples, climate.SmoothingWindow)

	byYear := make(map[int]drawing.Color, len(highlights))
	for _, h := range highlights {
		byYear[h.Year] = h.Color
	}

	var background, front []chart.Series
	for _, c := range curves {
		// go-chart cannot draw a line from fewer than two points.
		if len(c.X) < 2 {
			continue
		}
		s := chart.ContinuousSeries{
			Name:    strconv.Itoa(c.Year),
			XValues: c.X,
			YValues: c.Y,
		}
		if color, ok := byYear[c.Year]; ok {
			s.Style = chart.Style{StrokeColor: color, StrokeWidth: 2.8}
			front = append(front, s)
			continue
		}
		s.Style = chart.Style{StrokeColor: backgroundColor, StrokeWidth: 1}
		background = append(background, s)
	}
	if len(background)+len(front) == 0 {
		return nil, ErrNoData
	}

	graph := &chart.Chart{
		Title:  Title,
		Width:  Width,
		Height: Height,
		DPI:    DPI,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  XLabel,
			Range: &chart.ContinuousRange{Min: 1, Max: 366},
			Ticks: MonthTicks(),
		},
		YAxis: chart.YAxis{
			Name: YLabel,
		},
		Series: append(background, front...),
	}

	if len(front) > 0 {
		legend := &chart.Chart{Series: front}
		graph.Elements = []chart.Renderable{chart.Legend(legend)}
	}
	return graph, nil
}

// RenderOverlay writes the overlay chart as PNG to w.
func RenderOverlay(w io.Writer, samples []climate.DailySample, highlights []Highlight) error {
	graph, err := Overlay(samples, highlights)
	if err != nil {
		return err
	}
	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

// WriteZoneOverlay renders a zone's chart into dir and returns the file path.
func WriteZoneOverlay(dir string, series climate.ZoneSeries, highlights []Highlight) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	path := filepath.Join(dir, FileName(series.Zone.Label, highlights))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := RenderOverlay(f, series.Samples, highlights); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, f.Close()
}
