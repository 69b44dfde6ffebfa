package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/climate-zones/internal/climate"
	"github.com/i474232898/climate-zones/internal/metrics"
)

// DefaultArchiveURL is the Open-Meteo historical archive endpoint.
const DefaultArchiveURL = "https://archive-api.open-meteo.com/v1/archive"

// OpenMeteoArchive implements climate.ArchiveSource for the Open-Meteo archive API.
type OpenMeteoArchive struct {
	name    string
	baseURL string
	client  *http.Client

	mu      sync.Mutex
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoArchive(client *http.Client, baseURL string) *OpenMeteoArchive {
	if baseURL == "" {
		baseURL = DefaultArchiveURL
	}

	return &OpenMeteoArchive{
		name:    "openmeteo-archive",
		baseURL: baseURL,
		client:  client,
		circuit: newArchiveBreaker(),
	}
}

// newArchiveBreaker trips only on transport failures. A non-200 answer
// still reaches the server, so it counts against the zone, not the breaker.
func newArchiveBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openmeteo-archive",
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= archiveTripAfter
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || errors.As(err, &se)
		},
	})
}

// archiveTripAfter is the number of consecutive transport failures that open the breaker.
const archiveTripAfter = 5

// Reset closes the breaker. The archive flow calls it before each run so
// every zone of the run gets its own request.
func (p *OpenMeteoArchive) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.circuit = newArchiveBreaker()
}

func (p *OpenMeteoArchive) breaker() *gobreaker.CircuitBreaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.circuit
}

func (p *OpenMeteoArchive) Name() string {
	return p.name
}

// BuildURL returns the archive request URL for a zone and inclusive date range.
func (p *OpenMeteoArchive) BuildURL(zone climate.Zone, start, end time.Time) string {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(zone.Latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(zone.Longitude, 'f', -1, 64))
	values.Set("start_date", start.Format(climate.DateLayout))
	values.Set("end_date", end.Format(climate.DateLayout))
	values.Set("daily", "temperature_2m_mean")
	values.Set("timezone", "auto")

	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

// FetchDaily requests the daily mean temperature series for a zone. Non-200
// responses are returned as *StatusError; the caller skips the zone.
func (p *OpenMeteoArchive) FetchDaily(ctx context.Context, zone climate.Zone, start, end time.Time) ([]climate.DailySample, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("openmeteo archive: end date %s before start date %s",
			end.Format(climate.DateLayout), start.Format(climate.DateLayout))
	}

	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, p.BuildURL(zone, start, end), nil)
	}

	began := time.Now()
	resp, err := doRequestWithBreaker(ctx, p.client, p.breaker(), buildRequest)
	metrics.RecordArchiveRequest(time.Since(began), err)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload archiveResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode archive response: %w", err)
	}

	return payload.samples(zone.Label)
}

type archiveResponse struct {
	Daily struct {
		Time              []string   `json:"time"`
		Temperature2mMean []*float64 `json:"temperature_2m_mean"`
	} `json:"daily"`
}

// samples zips the parallel daily arrays into one sample per day.
func (r archiveResponse) samples(label string) ([]climate.DailySample, error) {
	if len(r.Daily.Time) != len(r.Daily.Temperature2mMean) {
		return nil, fmt.Errorf("archive response: %d dates but %d temperatures",
			len(r.Daily.Time), len(r.Daily.Temperature2mMean))
	}

	out := make([]climate.DailySample, 0, len(r.Daily.Time))
	for i, ds := range r.Daily.Time {
		d, err := time.Parse(climate.DateLayout, ds)
		if err != nil {
			return nil, fmt.Errorf("archive response: bad date %q: %w", ds, err)
		}

		temp := math.NaN()
		if v := r.Daily.Temperature2mMean[i]; v != nil {
			temp = *v
		}

		out = append(out, climate.DailySample{
			Zone:         label,
			Date:         d,
			TemperatureC: temp,
		})
	}
	return out, nil
}
