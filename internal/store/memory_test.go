package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/i474232898/climate-zones/internal/climate"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TestMemoryStoreRetention verifies that only the newest maxDaily samples are kept
// and that re-saving a day replaces its value.
func TestMemoryStoreRetention(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)
	zone := climate.Zone{Label: "Worse_Zone_1", Latitude: 56.0, Longitude: 15.8}

	var samples []climate.DailySample
	for i := 1; i <= 5; i++ {
		samples = append(samples, climate.DailySample{Zone: zone.Label, Date: day(2020, time.January, i), TemperatureC: float64(i)})
	}
	if err := s.SaveDaily(ctx, zone, samples); err != nil {
		t.Fatalf("SaveDaily: %v", err)
	}
	if err := s.SaveDaily(ctx, zone, []climate.DailySample{{Zone: zone.Label, Date: day(2020, time.January, 5), TemperatureC: 50}}); err != nil {
		t.Fatalf("SaveDaily: %v", err)
	}

	got, err := s.GetDaily(ctx, zone.Label, day(2020, time.January, 1), day(2020, time.December, 31))
	if err != nil {
		t.Fatalf("GetDaily: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(got))
	}
	if !got[0].Date.Equal(day(2020, time.January, 3)) {
		t.Fatalf("expected oldest kept day to be Jan 3, got %s", got[0].Date)
	}
	if got[2].TemperatureC != 50 {
		t.Fatalf("expected replaced value 50, got %v", got[2].TemperatureC)
	}
}

func TestMemoryStoreRangeAndNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	zone := climate.Zone{Label: "Better_Zone_1"}

	if _, err := s.GetDaily(ctx, zone.Label, day(2020, 1, 1), day(2020, 1, 2)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_ = s.SaveDaily(ctx, zone, []climate.DailySample{
		{Zone: zone.Label, Date: day(2020, 1, 1), TemperatureC: 1},
		{Zone: zone.Label, Date: day(2020, 1, 2), TemperatureC: 2},
		{Zone: zone.Label, Date: day(2020, 1, 3), TemperatureC: 3},
	})

	got, err := s.GetDaily(ctx, zone.Label, day(2020, 1, 2), day(2020, 1, 3))
	if err != nil {
		t.Fatalf("GetDaily: %v", err)
	}
	if len(got) != 2 || got[0].TemperatureC != 2 {
		t.Fatalf("unexpected range result: %+v", got)
	}

	if _, err := s.GetDaily(ctx, zone.Label, day(2021, 1, 1), day(2021, 1, 2)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for empty range, got %v", err)
	}
}

func TestMemoryStoreMonthly(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	rows := []climate.MonthlyAggregate{
		{Label: "Worse_Zone_1", Year: 2021, IntervalStart: day(2021, 2, 1), SurfaceTempC: -1},
		{Label: "Worse_Zone_1", Year: 2020, IntervalStart: day(2020, 1, 1), SurfaceTempC: 2},
		{Label: "Worse_Zone_1", Year: 2021, IntervalStart: day(2021, 1, 1), SurfaceTempC: -3},
	}
	if err := s.AppendMonthly(ctx, rows); err != nil {
		t.Fatalf("AppendMonthly: %v", err)
	}
	// Same interval again replaces the previous value.
	if err := s.AppendMonthly(ctx, []climate.MonthlyAggregate{{Label: "Worse_Zone_1", Year: 2021, IntervalStart: day(2021, 1, 1), SurfaceTempC: -4}}); err != nil {
		t.Fatalf("AppendMonthly: %v", err)
	}

	all, err := s.GetMonthly(ctx, "Worse_Zone_1", 0)
	if err != nil {
		t.Fatalf("GetMonthly: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(all))
	}
	if !all[0].IntervalStart.Equal(day(2020, 1, 1)) {
		t.Fatalf("rows not ordered by interval: %+v", all)
	}

	y2021, err := s.GetMonthly(ctx, "Worse_Zone_1", 2021)
	if err != nil {
		t.Fatalf("GetMonthly: %v", err)
	}
	if len(y2021) != 2 || y2021[0].SurfaceTempC != -4 {
		t.Fatalf("unexpected 2021 rows: %+v", y2021)
	}

	if _, err := s.GetMonthly(ctx, "Worse_Zone_1", 2019); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
