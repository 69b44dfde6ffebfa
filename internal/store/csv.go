package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/climate-zones/internal/climate"
	"github.com/i474232898/climate-zones/internal/common"
	"github.com/i474232898/climate-zones/internal/metrics"
)

var (
	// DailyHeader is the column layout of a per-zone daily series file.
	DailyHeader = []string{"date", "temp_celsius", "location", "latitude", "longitude"}
	// MonthlyHeader is the column layout of the shared monthly table.
	MonthlyHeader = []string{"label", "latitude", "longitude", "year", "date", "s3_temp_celsius"}
)

// CSVStore writes one daily file per zone under Dir and appends monthly rows
// to the shared table at MonthlyPath.
type CSVStore struct {
	Dir         string
	MonthlyPath string
}

func NewCSVStore(dir, monthlyPath string) *CSVStore {
	return &CSVStore{Dir: dir, MonthlyPath: monthlyPath}
}

// DailyPath returns the daily series file of a zone.
func (s *CSVStore) DailyPath(label string) string {
	return filepath.Join(s.Dir, common.FileSafe(label)+"_data.csv")
}

// SaveDaily (re)writes the zone's daily series file.
func (s *CSVStore) SaveDaily(_ context.Context, zone climate.Zone, samples []climate.DailySample) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", s.Dir, err)
	}

	path := s.DailyPath(zone.Label)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(DailyHeader); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	for _, d := range samples {
		rec := []string{
			d.Date.Format(climate.DateLayout),
			formatFloat(d.TemperatureC),
			zone.Label,
			formatFloat(zone.Latitude),
			formatFloat(zone.Longitude),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}

	metrics.RecordRows("daily", len(samples))
	return f.Close()
}

// EnsureMonthlyTable creates the monthly table with its header if it does not exist.
func (s *CSVStore) EnsureMonthlyTable() error {
	if _, err := os.Stat(s.MonthlyPath); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", s.MonthlyPath, err)
	}

	if dir := filepath.Dir(s.MonthlyPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	f, err := os.Create(s.MonthlyPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.MonthlyPath, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(MonthlyHeader); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

// AppendMonthly appends rows to the monthly table, creating it first if needed.
func (s *CSVStore) AppendMonthly(_ context.Context, rows []climate.MonthlyAggregate) error {
	if err := s.EnsureMonthlyTable(); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	f, err := os.OpenFile(s.MonthlyPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.MonthlyPath, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, r := range rows {
		rec := []string{
			r.Label,
			formatFloat(r.Latitude),
			formatFloat(r.Longitude),
			strconv.Itoa(r.Year),
			r.IntervalStart.Format(climate.DateLayout),
			formatFloat(r.SurfaceTempC),
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write %s: %w", s.MonthlyPath, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", s.MonthlyPath, err)
	}

	metrics.RecordRows("monthly", len(rows))
	return f.Close()
}

// ReadDaily loads a daily series file written by SaveDaily.
func ReadDaily(path string) (climate.Zone, []climate.DailySample, error) {
	recs, err := readRecords(path, DailyHeader)
	if err != nil {
		return climate.Zone{}, nil, err
	}

	var zone climate.Zone
	out := make([]climate.DailySample, 0, len(recs))
	for i, rec := range recs {
		d, err := time.Parse(climate.DateLayout, rec[0])
		if err != nil {
			return climate.Zone{}, nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
		}
		temp, err := parseFloat(rec[1])
		if err != nil {
			return climate.Zone{}, nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
		}
		if i == 0 {
			zone.Label = rec[2]
			if zone.Latitude, err = parseFloat(rec[3]); err != nil {
				return climate.Zone{}, nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
			}
			if zone.Longitude, err = parseFloat(rec[4]); err != nil {
				return climate.Zone{}, nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
			}
		}
		out = append(out, climate.DailySample{Zone: rec[2], Date: d, TemperatureC: temp})
	}
	return zone, out, nil
}

// ReadMonthly loads the shared monthly table.
func ReadMonthly(path string) ([]climate.MonthlyAggregate, error) {
	recs, err := readRecords(path, MonthlyHeader)
	if err != nil {
		return nil, err
	}

	out := make([]climate.MonthlyAggregate, 0, len(recs))
	for i, rec := range recs {
		var (
			r    climate.MonthlyAggregate
			errs []error
			err  error
		)
		r.Label = rec[0]
		r.Latitude, err = parseFloat(rec[1])
		errs = append(errs, err)
		r.Longitude, err = parseFloat(rec[2])
		errs = append(errs, err)
		r.Year, err = strconv.Atoi(rec[3])
		errs = append(errs, err)
		r.IntervalStart, err = time.Parse(climate.DateLayout, rec[4])
		errs = append(errs, err)
		r.SurfaceTempC, err = parseFloat(rec[5])
		errs = append(errs, err)

		if err := errors.Join(errs...); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, i+2, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func readRecords(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	got, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty file", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if strings.Join(got, ",") != strings.Join(header, ",") {
		return nil, fmt.Errorf("%s: unexpected header %v", path, got)
	}

	recs, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// formatFloat keeps a decimal point on whole numbers and writes NaN as an empty cell.
func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}
