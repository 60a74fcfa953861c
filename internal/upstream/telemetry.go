package upstream

import (
	"sync"
	"time"
)

// Telemetry keeps running counters about upstream traffic. Observational
// only: nothing here influences retry or rate-limit decisions.
type Telemetry struct {
	mu                 sync.Mutex
	totalRequests      int64
	retryableResponses int64
	failures           int64
	lastSuccess        map[string]time.Time
	lastFailure        map[string]time.Time
}

// TelemetrySnapshot is a point-in-time copy safe to serialize.
type TelemetrySnapshot struct {
	TotalRequests       int64                `json:"totalRequests"`
	RetryableResponses  int64                `json:"retryableResponses"`
	Failures            int64                `json:"failures"`
	RateLimitDelays     int64                `json:"rateLimitDelays"`
	RateLimitDelayAvgMs int64                `json:"rateLimitDelayAvgMs"`
	RateLimitDelayMaxMs int64                `json:"rateLimitDelayMaxMs"`
	LastSuccess         map[string]time.Time `json:"lastSuccess,omitempty"`
	LastFailure         map[string]time.Time `json:"lastFailure,omitempty"`
}

func newTelemetry() *Telemetry {
	return &Telemetry{
		lastSuccess: make(map[string]time.Time),
		lastFailure: make(map[string]time.Time),
	}
}

func (t *Telemetry) recordRequest() {
	t.mu.Lock()
	t.totalRequests++
	t.mu.Unlock()
}

func (t *Telemetry) recordRetryable() {
	t.mu.Lock()
	t.retryableResponses++
	t.mu.Unlock()
}

func (t *Telemetry) recordSuccess(path string) {
	t.mu.Lock()
	t.lastSuccess[path] = time.Now()
	t.mu.Unlock()
}

func (t *Telemetry) recordFailure(path string) {
	t.mu.Lock()
	t.failures++
	t.lastFailure[path] = time.Now()
	t.mu.Unlock()
}

// Snapshot copies the counters, folding in the limiter's delay stats.
func (t *Telemetry) snapshot(l *Limiter) TelemetrySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	success := make(map[string]time.Time, len(t.lastSuccess))
	for k, v := range t.lastSuccess {
		success[k] = v
	}
	failure := make(map[string]time.Time, len(t.lastFailure))
	for k, v := range t.lastFailure {
		failure[k] = v
	}

	snap := TelemetrySnapshot{
		TotalRequests:      t.totalRequests,
		RetryableResponses: t.retryableResponses,
		Failures:           t.failures,
		LastSuccess:        success,
		LastFailure:        failure,
	}
	if l != nil {
		count, total, max := l.DelayStats()
		snap.RateLimitDelays = count
		if count > 0 {
			snap.RateLimitDelayAvgMs = total.Milliseconds() / count
		}
		snap.RateLimitDelayMaxMs = max.Milliseconds()
	}
	return snap
}
