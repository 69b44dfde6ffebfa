package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outbound request metrics
var (
	// StatsAttemptsTotal counts statistics API attempts by classified outcome
	StatsAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "climate_stats_attempts_total",
			Help: "Statistics API attempts by outcome (ok, unauthorized, rate_limited, rejected, transport)",
		},
		[]string{"outcome"},
	)

	// StatsBackoffSeconds tracks how long the fetch loop slept before retrying
	StatsBackoffSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "climate_stats_backoff_seconds",
			Help:    "Sleep before a statistics API retry in seconds",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
		},
	)

	// ArchiveRequestsTotal counts archive API requests by outcome
	ArchiveRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "climate_archive_requests_total",
			Help: "Archive API requests by outcome",
		},
		[]string{"outcome"},
	)

	// ArchiveRequestDuration tracks archive request latency
	ArchiveRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "climate_archive_request_duration_seconds",
			Help:    "Duration of archive API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RowsWrittenTotal counts persisted rows by table
	RowsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "climate_rows_written_total",
			Help: "Rows written to persisted storage by table",
		},
		[]string{"table"},
	)

	// LastRunTimestamp records when each flow last finished
	LastRunTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "climate_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last completed run per flow",
		},
		[]string{"flow"},
	)
)

// RecordStatsAttempt records one classified statistics API attempt
func RecordStatsAttempt(outcome string) {
	StatsAttemptsTotal.WithLabelValues(outcome).Inc()
}

// RecordBackoff records a retry sleep
func RecordBackoff(d time.Duration) {
	StatsBackoffSeconds.Observe(d.Seconds())
}

// RecordArchiveRequest records an archive request and its duration
func RecordArchiveRequest(duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	ArchiveRequestsTotal.WithLabelValues(outcome).Inc()
	ArchiveRequestDuration.Observe(duration.Seconds())
}

// RecordRows records rows persisted to a table
func RecordRows(table string, n int) {
	RowsWrittenTotal.WithLabelValues(table).Add(float64(n))
}

// RecordRun marks a flow as completed now
func RecordRun(flow string) {
	LastRunTimestamp.WithLabelValues(flow).SetToCurrentTime()
}
