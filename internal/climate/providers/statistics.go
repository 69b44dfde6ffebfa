package providers

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/climate-zones/internal/auth"
	"github.com/i474232898/climate-zones/internal/climate"
	"github.com/i474232898/climate-zones/internal/metrics"
)

// DefaultStatisticsURL is the Sentinel Hub statistics endpoint on Copernicus Data Space.
const DefaultStatisticsURL = "https://sh.dataspace.copernicus.eu/api/v1/statistics"

const (
	bboxHalfWidth = 0.01
	crsCRS84      = "http://www.opengis.net/def/crs/OGC/1.3/CRS84"
)

// Outcome labels of one statistics attempt.
const (
	OutcomeOK           = "ok"
	OutcomeUnauthorized = "unauthorized"
	OutcomeRateLimited  = "rate_limited"
	OutcomeRejected     = "rejected"
	OutcomeTransport    = "transport"
)

// S3 brightness temperature (band S8) in Celsius, invalid pixels masked.
//
//go:embed evalscript.js
var surfaceTempEvalscript string

// RetryInfo describes an attempt that will be retried.
type RetryInfo struct {
	Zone    climate.Zone
	Year    int
	Attempt int // 0-based
	Outcome string
	Wait    time.Duration
	Err     error
}

// StatisticsClient implements climate.StatisticsSource against the statistics API.
type StatisticsClient struct {
	url     string
	httpCfg HTTPClientConfig
	creds   auth.CredentialProvider
	logger  *slog.Logger
	onRetry func(RetryInfo)

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

func NewStatisticsClient(cfg HTTPClientConfig, url string, creds auth.CredentialProvider, logger *slog.Logger) *StatisticsClient {
	if url == "" {
		url = DefaultStatisticsURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatisticsClient{
		url:     url,
		httpCfg: cfg,
		creds:   creds,
		logger:  logger,
		sleep:   sleepContext,
		jitter:  rand.Float64,
	}
}

// OnRetry registers a hook called before every retry sleep or re-authentication.
func (c *StatisticsClient) OnRetry(fn func(RetryInfo)) {
	c.onRetry = fn
}

// StatsRequest is the body of a statistics aggregation request.
type StatsRequest struct {
	Input struct {
		Bounds struct {
			BBox       [4]float64 `json:"bbox"`
			Properties struct {
				CRS string `json:"crs"`
			} `json:"properties"`
		} `json:"bounds"`
		Data []dataSource `json:"data"`
	} `json:"input"`
	Aggregation struct {
		TimeRange struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"timeRange"`
		AggregationInterval struct {
			Of                   string `json:"of"`
			LastIntervalBehavior string `json:"lastIntervalBehavior"`
		} `json:"aggregationInterval"`
		Evalscript string `json:"evalscript"`
	} `json:"aggregation"`
}

type dataSource struct {
	Type       string `json:"type"`
	DataFilter struct {
		MaxCloudCoverage int    `json:"maxCloudCoverage"`
		PreviewMode      string `json:"previewMode"`
	} `json:"dataFilter"`
}

// BuildRequest returns the monthly aggregation request for a point and year.
func (c *StatisticsClient) BuildRequest(lat, lon float64, year int) StatsRequest {
	var r StatsRequest
	r.Input.Bounds.BBox = [4]float64{lon - bboxHalfWidth, lat - bboxHalfWidth, lon + bboxHalfWidth, lat + bboxHalfWidth}
	r.Input.Bounds.Properties.CRS = crsCRS84

	src := dataSource{Type: "S3SLSTR"}
	src.DataFilter.MaxCloudCoverage = 40
	src.DataFilter.PreviewMode = "EXTENDED_PREVIEW"
	r.Input.Data = []dataSource{src}

	r.Aggregation.TimeRange.From = fmt.Sprintf("%d-01-01T00:00:00Z", year)
	r.Aggregation.TimeRange.To = fmt.Sprintf("%d-12-31T23:59:59Z", year)
	r.Aggregation.AggregationInterval.Of = "P1M"
	r.Aggregation.AggregationInterval.LastIntervalBehavior = "SHORTEN"
	r.Aggregation.Evalscript = surfaceTempEvalscript
	return r
}

// FetchMonthly fetches the monthly statistics for a zone and year.
//
// 200 returns at once; 401 re-authenticates and retries immediately; 429 sleeps
// BackoffDelay; transport and decode errors sleep TransportDelay; any other
// status returns a *StatusError without further attempts. Every outcome
// consumes an attempt. When all attempts are used up the result is nil with
// ErrRetriesExhausted. The returned session replaces sess for the next call.
func (c *StatisticsClient) FetchMonthly(ctx context.Context, zone climate.Zone, year int, sess auth.Session) ([]climate.IntervalStat, auth.Session, error) {
	if c.httpCfg.Client == nil {
		return nil, sess, errNoHTTPClient
	}
	if c.httpCfg.Backoff.MaxAttempts <= 0 {
		return nil, sess, errInvalidConfig
	}

	body, err := json.Marshal(c.BuildRequest(zone.Latitude, zone.Longitude, year))
	if err != nil {
		return nil, sess, fmt.Errorf("encode statistics request: %w", err)
	}

	log := c.logger.With("zone", zone.Label, "year", year)

	for attempt := 0; attempt < c.httpCfg.Backoff.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, sess, err
		}

		stats, status, errBody, err := c.post(ctx, body, sess)
		if err != nil {
			metrics.RecordStatsAttempt(OutcomeTransport)
			log.Warn("statistics request failed", "attempt", attempt+1, "error", err)
			if err := c.wait(ctx, RetryInfo{Zone: zone, Year: year, Attempt: attempt, Outcome: OutcomeTransport, Wait: c.httpCfg.Backoff.TransportDelay, Err: err}); err != nil {
				return nil, sess, err
			}
			continue
		}

		switch status {
		case http.StatusOK:
			metrics.RecordStatsAttempt(OutcomeOK)
			return stats, sess, nil

		case http.StatusUnauthorized:
			metrics.RecordStatsAttempt(OutcomeUnauthorized)
			log.Info("token expired, refreshing", "attempt", attempt+1)
			c.notify(RetryInfo{Zone: zone, Year: year, Attempt: attempt, Outcome: OutcomeUnauthorized})

			fresh, rerr := c.creds.Refresh(ctx)
			if rerr != nil {
				log.Warn("re-authentication failed", "attempt", attempt+1, "error", rerr)
				if err := c.wait(ctx, RetryInfo{Zone: zone, Year: year, Attempt: attempt, Outcome: OutcomeTransport, Wait: c.httpCfg.Backoff.TransportDelay, Err: rerr}); err != nil {
					return nil, sess, err
				}
				continue
			}
			sess = fresh

		case http.StatusTooManyRequests:
			metrics.RecordStatsAttempt(OutcomeRateLimited)
			delay := BackoffDelay(c.httpCfg.Backoff.BaseDelay, attempt, c.jitter())
			log.Warn("rate limited", "attempt", attempt+1, "max_attempts", c.httpCfg.Backoff.MaxAttempts, "wait", delay.Round(100*time.Millisecond))
			metrics.RecordBackoff(delay)
			if err := c.wait(ctx, RetryInfo{Zone: zone, Year: year, Attempt: attempt, Outcome: OutcomeRateLimited, Wait: delay}); err != nil {
				return nil, sess, err
			}

		default:
			metrics.RecordStatsAttempt(OutcomeRejected)
			serr := &StatusError{Code: status, Body: errBody}
			log.Error("statistics API error", "status", status, "body", errBody)
			return nil, sess, serr
		}
	}

	return nil, sess, ErrRetriesExhausted
}

func (c *StatisticsClient) notify(info RetryInfo) {
	if c.onRetry != nil {
		c.onRetry(info)
	}
}

func (c *StatisticsClient) wait(ctx context.Context, info RetryInfo) error {
	c.notify(info)
	return c.sleep(ctx, info.Wait)
}

// post sends one request. A non-nil error means the attempt failed before a
// usable response (transport or decode); otherwise status is the HTTP status
// and, for non-200, errBody holds the start of the response body.
func (c *StatisticsClient) post(ctx context.Context, body []byte, sess auth.Session) ([]climate.IntervalStat, int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	sess.Authorize(req)

	resp, err := c.httpCfg.Client.Do(req)
	if err != nil {
		return nil, 0, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, readBody(resp), nil
	}

	var payload statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, 0, "", fmt.Errorf("failed to decode statistics response: %w", err)
	}
	stats, err := payload.intervals()
	if err != nil {
		return nil, 0, "", err
	}
	return stats, resp.StatusCode, "", nil
}

type statsResponse struct {
	Data []struct {
		Interval struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"interval"`
		Outputs map[string]struct {
			Bands map[string]struct {
				Stats struct {
					Mean *statNumber `json:"mean"`
				} `json:"stats"`
			} `json:"bands"`
		} `json:"outputs"`
	} `json:"data"`
}

// intervals keeps band "0" of the default output for every interval.
func (r statsResponse) intervals() ([]climate.IntervalStat, error) {
	out := make([]climate.IntervalStat, 0, len(r.Data))
	for _, entry := range r.Data {
		from, err := parseIntervalStart(entry.Interval.From)
		if err != nil {
			return nil, err
		}

		stat := climate.IntervalStat{From: from}
		if def, ok := entry.Outputs["default"]; ok {
			if band, ok := def.Bands["0"]; ok && band.Stats.Mean != nil {
				stat.Mean = float64(*band.Stats.Mean)
				stat.HasMean = true
			}
		}
		out = append(out, stat)
	}
	return out, nil
}

func parseIntervalStart(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	day, _, _ := strings.Cut(s, "T")
	ts, err := time.Parse(climate.DateLayout, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("statistics response: bad interval start %q", s)
	}
	return ts, nil
}

// statNumber accepts a JSON number or a quoted number such as the "NaN" sentinel.
type statNumber float64

func (n *statNumber) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("statistics response: bad number %s", data)
	}
	*n = statNumber(v)
	return nil
}
