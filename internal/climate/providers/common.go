package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// BackoffConfig controls the statistics retry loop.
type BackoffConfig struct {
	MaxAttempts    int
	BaseDelay      time.Duration // doubled per attempt on 429
	TransportDelay time.Duration // fixed delay after a transport or decode error
}

// MaxBackoffAttempts bounds MaxAttempts so the exponential delay stays within time.Duration.
const MaxBackoffAttempts = 20

// DefaultBackoff matches the statistics API's documented rate limits.
var DefaultBackoff = BackoffConfig{
	MaxAttempts:    5,
	BaseDelay:      2 * time.Second,
	TransportDelay: 2 * time.Second,
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

var (
	// ErrRetriesExhausted is returned when every attempt ended in a retryable outcome.
	ErrRetriesExhausted = errors.New("retries exhausted")

	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// StatusError is a non-retryable HTTP status from a remote API.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d: %s", e.Code, e.Body)
}

// BackoffDelay is the rate-limit delay for a 0-based attempt:
// base*2^attempt plus jitter seconds, jitter in [0, 1).
func BackoffDelay(base time.Duration, attempt int, jitter float64) time.Duration {
	attempt = min(attempt, MaxBackoffAttempts-1)
	delay := base * time.Duration(math.Pow(2, float64(attempt)))
	return delay + time.Duration(jitter*float64(time.Second))
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// readBody returns at most 4 KiB of an error response for logging.
func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return string(b)
}

// doRequestWithBreaker executes a single HTTP request through a circuit breaker.
// Any non-2xx status is a failure; there are no retries.
func doRequestWithBreaker(
	ctx context.Context,
	client *http.Client,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if client == nil {
		return nil, errNoHTTPClient
	}

	req, err := buildRequest()
	if err != nil {
		return nil, err
	}
	req = req.WithContext(ctx)

	result, err := cb.Execute(func() (interface{}, error) {
		resp, execErr := client.Do(req)
		if execErr != nil {
			return nil, execErr
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			defer resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode, Body: readBody(resp)}
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, nil
}
