package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRetryableStatus(t *testing.T) {
	retryable := []int{408, 409, 425, 429, 500, 502, 503, 504}
	for _, status := range retryable {
		assert.True(t, IsRetryableStatus(status), "status %d should be retryable", status)
	}

	terminal := []int{200, 201, 301, 400, 401, 403, 404, 422, 501}
	for _, status := range terminal {
		assert.False(t, IsRetryableStatus(status), "status %d should not be retryable", status)
	}
}

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:     baseURL,
		MaxRequests: 100,
		Window:      time.Second,
		MinSpacing:  time.Millisecond,
		MaxAttempts: 3,
		BackoffBase: time.Millisecond,
		BackoffCap:  5 * time.Millisecond,
		Timeout:     2 * time.Second,
	})
}

func TestGetRetriesThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":[{"id":"r1","type":"route"}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	doc, err := client.Get(context.Background(), "/routes", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	resources, err := doc.Resources()
	require.NoError(t, err)
	require.Len(t, resources, 1)
	assert.Equal(t, "r1", resources[0].ID)
}

func TestGetNonRetryableFailsImmediately(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"errors":[{"status":"404"}]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Get(context.Background(), "/routes", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/routes")
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "terminal status must not be retried")
}

func TestGetExhaustsRetryBudget(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Get(context.Background(), "/predictions", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Contains(t, err.Error(), "/predictions")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetSendsAPIKeyAndParams(t *testing.T) {
	var gotKey, gotFilter string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotFilter = r.URL.Query().Get("filter[stop]")
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "secret", MinSpacing: time.Millisecond})
	params := url.Values{}
	params.Set("filter[stop]", "place-sstat")
	_, err := client.Get(context.Background(), "/predictions", params)
	require.NoError(t, err)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "place-sstat", gotFilter)
}

func TestTelemetryCountsTraffic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	for i := 0; i < 3; i++ {
		_, err := client.Get(context.Background(), "/routes", nil)
		require.NoError(t, err)
	}

	snap := client.Telemetry()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(0), snap.Failures)
	assert.Contains(t, snap.LastSuccess, "/routes")
	assert.False(t, snap.LastSuccess["/routes"].IsZero())
}

func TestLimiterDelaysOverBudget(t *testing.T) {
	limiter := NewLimiter(2, 200*time.Millisecond, time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Acquire(ctx))
	}
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 150*time.Millisecond,
		"third caller waits for the window to slide")

	count, total, max := limiter.DelayStats()
	assert.GreaterOrEqual(t, count, int64(1))
	assert.Greater(t, total, time.Duration(0))
	assert.Greater(t, max, time.Duration(0))
}

func TestLimiterRespectsContextCancellation(t *testing.T) {
	limiter := NewLimiter(1, 10*time.Second, time.Millisecond)
	require.NoError(t, limiter.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := limiter.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
