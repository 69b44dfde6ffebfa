package store

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/i474232898/climate-zones/internal/climate"
	"github.com/i474232898/climate-zones/internal/metrics"
)

// InfluxConfig holds the InfluxDB v2 connection settings.
type InfluxConfig struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// InfluxSink exports series to InfluxDB v2 as points. It is write-only.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInfluxSink connects to InfluxDB and verifies the server is healthy.
func NewInfluxSink(ctx context.Context, cfg InfluxConfig) (*InfluxSink, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	if _, err := client.Health(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

// Close releases the client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

// SaveDaily writes one "daily_temperature" point per valid sample.
func (s *InfluxSink) SaveDaily(ctx context.Context, zone climate.Zone, samples []climate.DailySample) error {
	points := DailyPoints(zone, samples)
	if len(points) == 0 {
		return nil
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx write daily: %w", err)
	}
	metrics.RecordRows("influx_daily", len(points))
	return nil
}

// AppendMonthly writes one "surface_temperature" point per row.
func (s *InfluxSink) AppendMonthly(ctx context.Context, rows []climate.MonthlyAggregate) error {
	points := MonthlyPoints(rows)
	if len(points) == 0 {
		return nil
	}
	if err := s.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx write monthly: %w", err)
	}
	metrics.RecordRows("influx_monthly", len(points))
	return nil
}

// DailyPoints converts samples to points, skipping days without a value.
func DailyPoints(zone climate.Zone, samples []climate.DailySample) []*write.Point {
	points := make([]*write.Point, 0, len(samples))
	for _, d := range samples {
		if !d.Valid() {
			continue
		}
		points = append(points, write.NewPoint(
			"daily_temperature",
			map[string]string{"zone": zone.Label},
			map[string]interface{}{
				"temp_celsius": d.TemperatureC,
				"latitude":     zone.Latitude,
				"longitude":    zone.Longitude,
			},
			d.Date,
		))
	}
	return points
}

// MonthlyPoints converts monthly rows to points.
func MonthlyPoints(rows []climate.MonthlyAggregate) []*write.Point {
	points := make([]*write.Point, 0, len(rows))
	for _, r := range rows {
		points = append(points, write.NewPoint(
			"surface_temperature",
			map[string]string{"zone": r.Label},
			map[string]interface{}{
				"s3_temp_celsius": r.SurfaceTempC,
				"latitude":        r.Latitude,
				"longitude":       r.Longitude,
			},
			r.IntervalStart,
		))
	}
	return points
}
