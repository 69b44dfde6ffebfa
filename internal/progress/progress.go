package progress

import (
	"context"
	"log/slog"
	"time"
)

// Kind is the type of a progress event.
type Kind string

const (
	KindStart       Kind = "start"
	KindRetry       Kind = "retry"
	KindDone        Kind = "done"
	KindError       Kind = "error"
	KindSummary     Kind = "summary"
	KindInterrupted Kind = "interrupted"
)

// Event describes one step of a run. Zone and Year are empty for run-level events.
type Event struct {
	RunID   string        `json:"runId"`
	Flow    string        `json:"flow"`
	Kind    Kind          `json:"kind"`
	Zone    string        `json:"zone,omitempty"`
	Year    int           `json:"year,omitempty"`
	Rows    int           `json:"rows"`
	Attempt int           `json:"attempt,omitempty"`
	Outcome string        `json:"outcome,omitempty"`
	Wait    time.Duration `json:"waitNs,omitempty"`
	Err     string        `json:"error,omitempty"`
	At      time.Time     `json:"at"`
}

// Sink receives progress events. Emit must not block the run for long.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// LogSink writes events to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(ctx context.Context, ev Event) {
	attrs := []any{"run", ev.RunID, "flow", ev.Flow}
	if ev.Zone != "" {
		attrs = append(attrs, "zone", ev.Zone)
	}
	if ev.Year != 0 {
		attrs = append(attrs, "year", ev.Year)
	}

	switch ev.Kind {
	case KindStart:
		s.logger.InfoContext(ctx, "fetching", attrs...)
	case KindRetry:
		s.logger.WarnContext(ctx, "retrying", append(attrs, "attempt", ev.Attempt+1, "outcome", ev.Outcome, "wait", ev.Wait)...)
	case KindDone:
		s.logger.InfoContext(ctx, "fetched", append(attrs, "rows", ev.Rows)...)
	case KindError:
		s.logger.ErrorContext(ctx, "unit of work failed", append(attrs, "error", ev.Err)...)
	case KindSummary:
		if ev.Rows == 0 {
			s.logger.WarnContext(ctx, "no valid data found", attrs...)
			return
		}
		s.logger.InfoContext(ctx, "run complete", append(attrs, "rows", ev.Rows)...)
	case KindInterrupted:
		s.logger.WarnContext(ctx, "interrupted", append(attrs, "discarded_rows", ev.Rows)...)
	}
}

// Multi fans an event out to several sinks in order.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, ev)
		}
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, Event) {}

// Recorder keeps every event in memory.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(_ context.Context, ev Event) {
	r.Events = append(r.Events, ev)
}

// Kinds returns the kinds of the recorded events in order.
func (r *Recorder) Kinds() []Kind {
	out := make([]Kind, len(r.Events))
	for i, ev := range r.Events {
		out[i] = ev.Kind
	}
	return out
}
