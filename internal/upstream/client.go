// Package upstream wraps the transit provider's JSON:API over HTTP with
// rate limiting, retry/backoff and traffic telemetry. No caching happens
// at this layer.
package upstream

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"github.com/transitpulse/transitpulse_core/internal/jsonapi"
)

// retryableStatuses is the fixed set of HTTP statuses worth retrying.
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true, // 408
	http.StatusConflict:            true, // 409
	http.StatusTooEarly:            true, // 425
	http.StatusTooManyRequests:     true, // 429
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:          true, // 502
	http.StatusServiceUnavailable:  true, // 503
	http.StatusGatewayTimeout:      true, // 504
}

// IsRetryableStatus reports whether an HTTP status should be retried.
func IsRetryableStatus(status int) bool {
	return retryableStatuses[status]
}

// Config holds upstream client settings.
type Config struct {
	BaseURL     string
	APIKey      string
	MaxRequests int
	Window      time.Duration
	MinSpacing  time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	BackoffCap  time.Duration
	Timeout     time.Duration
}

// Client is a typed request wrapper around the provider's resource endpoints.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	limiter     *Limiter
	telemetry   *Telemetry
	maxAttempts int
	backoffBase time.Duration
	backoffCap  time.Duration
}

// NewClient builds a Client, applying defaults for zero-valued settings.
func NewClient(cfg Config) *Client {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 50
	}
	if cfg.Window == 0 {
		cfg.Window = time.Minute
	}
	if cfg.MinSpacing == 0 {
		cfg.MinSpacing = 150 * time.Millisecond
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = 250 * time.Millisecond
	}
	if cfg.BackoffCap == 0 {
		cfg.BackoffCap = 4 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		limiter:     NewLimiter(cfg.MaxRequests, cfg.Window, cfg.MinSpacing),
		telemetry:   newTelemetry(),
		maxAttempts: cfg.MaxAttempts,
		backoffBase: cfg.BackoffBase,
		backoffCap:  cfg.BackoffCap,
	}
}

// Telemetry returns a point-in-time snapshot of the client's counters.
func (c *Client) Telemetry() TelemetrySnapshot {
	return c.telemetry.snapshot(c.limiter)
}

// Get fetches one resource path with the given query parameters, honoring
// the limiter and retry budget.
func (c *Client) Get(ctx context.Context, path string, params url.Values) (*jsonapi.Document, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, err
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
		}

		c.telemetry.recordRequest()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request for %s: %w", path, err)
		}
		req.Header.Set("Accept", "application/vnd.api+json")
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			// Network failures are always retryable.
			lastErr = err
			c.telemetry.recordRetryable()
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			c.telemetry.recordRetryable()
			continue
		}

		if resp.StatusCode == http.StatusOK {
			doc, err := jsonapi.Decode(body)
			if err != nil {
				c.telemetry.recordFailure(path)
				return nil, fmt.Errorf("upstream %s: %w", path, err)
			}
			c.telemetry.recordSuccess(path)
			return doc, nil
		}

		if IsRetryableStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, 120))
			c.telemetry.recordRetryable()
			continue
		}

		c.telemetry.recordFailure(path)
		return nil, fmt.Errorf("upstream %s failed with HTTP %d: %s", path, resp.StatusCode, truncate(body, 200))
	}

	c.telemetry.recordFailure(path)
	return nil, fmt.Errorf("upstream %s failed after %d attempts: %w", path, c.maxAttempts, lastErr)
}

// backoff returns the exponential delay before the given attempt, capped
// and jittered by ±30%.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.backoffBase << uint(attempt-1)
	if d > c.backoffCap {
		d = c.backoffCap
	}
	jitter := 0.7 + 0.6*rand.Float64()
	return time.Duration(float64(d) * jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}

// One method per resource kind.

func (c *Client) Routes(ctx context.Context, params url.Values) (*jsonapi.Document, error) {
	return c.Get(ctx, "/routes", params)
}

func (c *Client) Lines(ctx context.Context, params url.Values) (*jsonapi.Document, error) {
	return c.Get(ctx, "/lines", params)
}

func (c *Client) Stops(ctx context.Context, params url.Values) (*jsonapi.Document, error) {
	return c.Get(ctx, "/stops", params)
}

func (c *Client) Predictions(ctx context.Context, params url.Values) (*jsonapi.Document, error) {
	return c.Get(ctx, "/predictions", params)
}

func (c *Client) Schedules(ctx context.Context, params url.Values) (*jsonapi.Document, error) {
	return c.Get(ctx, "/schedules", params)
}

func (c *Client) Vehicles(ctx context.Context, params url.Values) (*jsonapi.Document, error) {
	return c.Get(ctx, "/vehicles", params)
}

func (c *Client) Alerts(ctx context.Context, params url.Values) (*jsonapi.Document, error) {
	return c.Get(ctx, "/alerts", params)
}

func (c *Client) Trips(ctx context.Context, params url.Values) (*jsonapi.Document, error) {
	return c.Get(ctx, "/trips", params)
}

func (c *Client) Shapes(ctx context.Context, params url.Values) (*jsonapi.Document, error) {
	return c.Get(ctx, "/shapes", params)
}

func (c *Client) LiveFacilities(ctx context.Context, params url.Values) (*jsonapi.Document, error) {
	return c.Get(ctx, "/live_facilities", params)
}
