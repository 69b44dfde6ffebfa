package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/climate-zones/internal/climate"
)

// Runner is the part of climate.Service the scheduler drives.
type Runner interface {
	RunArchive(ctx context.Context, zones []climate.Zone, start, end time.Time) ([]climate.ZoneSeries, error)
	RunMonthly(ctx context.Context, zones []climate.Zone, years []int) (climate.MonthlyReport, error)
}

// Job describes one refresh: the archive flow, then optionally the monthly flow.
type Job struct {
	Zones        []climate.Zone
	Years        []int
	ArchiveStart time.Time
	ArchiveEnd   time.Time
	// Monthly is false when no statistics credentials are configured.
	Monthly bool
}

// Scheduler periodically refreshes the stored climate series.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	job       Job
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler.
func New(job Job, interval time.Duration, runner Runner, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	// A refresh can outlast the interval; never run two at once.
	s.SingletonModeAll()
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		job:       job,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run starts immediately; ctx cancels a run in progress.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.job.Zones) == 0 {
		s.logger.Warn("scheduler: no zones configured; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce runs the archive flow and then the monthly flow, sequentially.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.logger.Info("scheduler: running refresh job", "zones", len(s.job.Zones))

	series, err := s.runner.RunArchive(ctx, s.job.Zones, s.job.ArchiveStart, s.job.ArchiveEnd)
	if err != nil {
		s.logger.Error("scheduler: archive run failed", "error", err)
	} else {
		s.logger.Info("scheduler: archive run finished", "zones_with_data", len(series))
	}

	if !s.job.Monthly || ctx.Err() != nil {
		return
	}

	report, err := s.runner.RunMonthly(ctx, s.job.Zones, s.job.Years)
	if err != nil {
		s.logger.Error("scheduler: monthly run failed", "error", err)
		return
	}
	s.logger.Info("scheduler: completed refresh job", "run", report.RunID, "rows", report.Rows, "skipped", report.Skipped, "interrupted", report.Interrupted)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
