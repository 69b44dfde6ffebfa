package climate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/climate-zones/internal/auth"
	"github.com/i474232898/climate-zones/internal/metrics"
	"github.com/i474232898/climate-zones/internal/progress"
)

// Flow names used in progress events and metrics.
const (
	FlowArchive = "archive"
	FlowMonthly = "monthly"
)

var (
	errNoArchive    = errors.New("no archive source configured")
	errNoStatistics = errors.New("no statistics source configured")
	errNoStore      = errors.New("no store configured")
)

// tableInitializer is implemented by sinks that must create their table
// before a monthly run starts.
type tableInitializer interface {
	EnsureMonthlyTable() error
}

// resetter is implemented by archive sources that keep per-run failure state.
type resetter interface {
	Reset()
}

// Deps wires a Service. Only the sources used by a flow are required for it.
type Deps struct {
	Archive     ArchiveSource
	Statistics  StatisticsSource
	Credentials auth.CredentialProvider
	// Store is written like any sink and also serves reads.
	Store    Store
	Sinks    []Sink
	Progress progress.Sink
	Logger   *slog.Logger
}

// Service runs the archive and monthly flows and persists their results.
// Runs are sequential: one unit of work at a time.
type Service struct {
	archive  ArchiveSource
	stats    StatisticsSource
	creds    auth.CredentialProvider
	store    Store
	sinks    []Sink
	progress progress.Sink
	logger   *slog.Logger

	mu    sync.Mutex
	runID string
	flow  string
}

// MonthlyReport summarises a monthly run.
type MonthlyReport struct {
	RunID       string
	Rows        int
	Skipped     int
	Interrupted bool
}

// NewService creates a new Service.
func NewService(d Deps) *Service {
	s := &Service{
		archive:  d.Archive,
		stats:    d.Statistics,
		creds:    d.Credentials,
		store:    d.Store,
		progress: d.Progress,
		logger:   d.Logger,
	}
	if s.progress == nil {
		s.progress = progress.Discard{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.sinks = append(s.sinks, d.Sinks...)
	if d.Store != nil {
		s.sinks = append(s.sinks, d.Store)
	}
	return s
}

func (s *Service) begin(flow string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runID = uuid.NewString()
	s.flow = flow
	return s.runID
}

func (s *Service) current() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID, s.flow
}

func (s *Service) emit(ctx context.Context, ev progress.Event) {
	if ev.RunID == "" {
		ev.RunID, ev.Flow = s.current()
	}
	ev.At = time.Now().UTC()
	s.progress.Emit(ctx, ev)
}

// ReportRetry forwards a retry of the running flow to the progress sink.
func (s *Service) ReportRetry(zone Zone, year, attempt int, outcome string, wait time.Duration, err error) {
	ev := progress.Event{
		Kind:    progress.KindRetry,
		Zone:    zone.Label,
		Year:    year,
		Attempt: attempt,
		Outcome: outcome,
		Wait:    wait,
	}
	if err != nil {
		ev.Err = err.Error()
	}
	s.emit(context.Background(), ev)
}

// RunArchive fetches the daily series of every zone over [start, end] and saves
// each one to the sinks. A zone whose fetch fails is reported and skipped.
func (s *Service) RunArchive(ctx context.Context, zones []Zone, start, end time.Time) ([]ZoneSeries, error) {
	if s.archive == nil {
		return nil, errNoArchive
	}

	if r, ok := s.archive.(resetter); ok {
		r.Reset()
	}

	runID := s.begin(FlowArchive)
	base := progress.Event{RunID: runID, Flow: FlowArchive}
	defer metrics.RecordRun(FlowArchive)

	var (
		series []ZoneSeries
		total  int
	)
	for _, z := range zones {
		if ctx.Err() != nil {
			ev := base
			ev.Kind = progress.KindInterrupted
			s.emit(context.WithoutCancel(ctx), ev)
			return series, nil
		}

		ev := base
		ev.Zone = z.Label
		ev.Kind = progress.KindStart
		s.emit(ctx, ev)

		samples, err := s.archive.FetchDaily(ctx, z, start, end)
		if err != nil {
			ev.Kind = progress.KindError
			ev.Err = err.Error()
			s.emit(ctx, ev)
			continue
		}

		if err := s.saveDaily(ctx, z, samples); err != nil {
			ev.Kind = progress.KindError
			ev.Err = err.Error()
			s.emit(ctx, ev)
			continue
		}

		ev.Kind = progress.KindDone
		ev.Rows = len(samples)
		s.emit(ctx, ev)

		total += len(samples)
		series = append(series, ZoneSeries{Zone: z, Samples: samples})
	}

	ev := base
	ev.Kind = progress.KindSummary
	ev.Rows = total
	s.emit(ctx, ev)
	return series, nil
}

func (s *Service) saveDaily(ctx context.Context, z Zone, samples []DailySample) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.SaveDaily(ctx, z, samples); err != nil {
			s.logger.Error("save daily series failed", "zone", z.Label, "sink", sinkName(sink), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sinkName(sink), err))
		}
	}
	return errors.Join(errs...)
}

// RunMonthly fetches the monthly statistics of every (zone, year) pair in
// order, threading one session through the calls. Rows are buffered and
// appended to the sinks once at the end. When ctx is cancelled the loop stops
// and the buffer is discarded; this is reported, not returned as an error.
func (s *Service) RunMonthly(ctx context.Context, zones []Zone, years []int) (MonthlyReport, error) {
	if s.stats == nil || s.creds == nil {
		return MonthlyReport{}, errNoStatistics
	}

	runID := s.begin(FlowMonthly)
	report := MonthlyReport{RunID: runID}
	base := progress.Event{RunID: runID, Flow: FlowMonthly}
	defer metrics.RecordRun(FlowMonthly)

	for _, sink := range s.sinks {
		if t, ok := sink.(tableInitializer); ok {
			if err := t.EnsureMonthlyTable(); err != nil {
				return report, fmt.Errorf("prepare monthly table: %w", err)
			}
		}
	}

	sess, err := s.creds.Session(ctx)
	if err != nil {
		return report, fmt.Errorf("authenticate: %w", err)
	}

	var buffer []MonthlyAggregate
	for _, z := range zones {
		for _, y := range years {
			if ctx.Err() != nil {
				return s.interrupted(ctx, base, report, len(buffer)), nil
			}

			ev := base
			ev.Zone, ev.Year = z.Label, y
			ev.Kind = progress.KindStart
			s.emit(ctx, ev)

			var stats []IntervalStat
			stats, sess, err = s.stats.FetchMonthly(ctx, z, y, sess)
			if err != nil {
				if ctx.Err() != nil {
					return s.interrupted(ctx, base, report, len(buffer)), nil
				}
				report.Skipped++
				ev.Kind = progress.KindError
				ev.Err = err.Error()
				s.emit(ctx, ev)
				continue
			}

			rows := MonthlyRows(z, y, stats)
			buffer = append(buffer, rows...)

			ev.Kind = progress.KindDone
			ev.Rows = len(rows)
			s.emit(ctx, ev)
		}
	}

	report.Rows = len(buffer)
	if len(buffer) > 0 {
		s.logger.Info("appending monthly rows", "run", runID, "rows", len(buffer), "sinks", len(s.sinks))
		var errs []error
		for _, sink := range s.sinks {
			if err := sink.AppendMonthly(ctx, buffer); err != nil {
				s.logger.Error("append monthly rows failed", "run", runID, "sink", sinkName(sink), "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", sinkName(sink), err))
			}
		}
		if err := errors.Join(errs...); err != nil {
			return report, fmt.Errorf("append monthly rows: %w", err)
		}
	}

	ev := base
	ev.Kind = progress.KindSummary
	ev.Rows = report.Rows
	s.emit(ctx, ev)
	return report, nil
}

func sinkName(sink Sink) string {
	return fmt.Sprintf("%T", sink)
}

func (s *Service) interrupted(ctx context.Context, base progress.Event, report MonthlyReport, discarded int) MonthlyReport {
	report.Interrupted = true
	ev := base
	ev.Kind = progress.KindInterrupted
	ev.Rows = discarded
	s.emit(context.WithoutCancel(ctx), ev)
	return report
}

// GetDaily delegates to the underlying store.
func (s *Service) GetDaily(ctx context.Context, label string, from, to time.Time) ([]DailySample, error) {
	if s.store == nil {
		return nil, errNoStore
	}
	return s.store.GetDaily(ctx, label, from, to)
}

// GetMonthly delegates to the underlying store.
func (s *Service) GetMonthly(ctx context.Context, label string, year int) ([]MonthlyAggregate, error) {
	if s.store == nil {
		return nil, errNoStore
	}
	return s.store.GetMonthly(ctx, label, year)
}
