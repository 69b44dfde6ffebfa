package climate

import (
	"context"
	"time"

	"github.com/i474232898/climate-zones/internal/auth"
)

// ArchiveSource abstracts a daily temperature archive (e.g. Open-Meteo).
type ArchiveSource interface {
	Name() string
	FetchDaily(ctx context.Context, zone Zone, start, end time.Time) ([]DailySample, error)
}

// StatisticsSource abstracts a satellite statistics API.
// The returned session must be threaded into the next call: it may have been
// refreshed while handling an expired token.
type StatisticsSource interface {
	FetchMonthly(ctx context.Context, zone Zone, year int, sess auth.Session) ([]IntervalStat, auth.Session, error)
}

// Sink persists fetched series. A run may write to several sinks.
type Sink interface {
	SaveDaily(ctx context.Context, zone Zone, samples []DailySample) error
	AppendMonthly(ctx context.Context, rows []MonthlyAggregate) error
}

// Store is a Sink that can be queried back (memory or SQLite).
type Store interface {
	Sink
	GetDaily(ctx context.Context, label string, from, to time.Time) ([]DailySample, error)
	GetMonthly(ctx context.Context, label string, year int) ([]MonthlyAggregate, error)
}
