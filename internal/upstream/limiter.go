package upstream

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter enforces a sliding-window request budget plus a minimum spacing
// between consecutive requests. Callers over budget are delayed, never
// rejected. Each caller reserves its admission slot under the lock at
// arrival, so admission order matches arrival order.
type Limiter struct {
	mu         sync.Mutex
	window     time.Duration
	maxInFlow  int
	minSpacing time.Duration

	reserved []time.Time
	last     time.Time

	delayCount int64
	delayTotal time.Duration
	delayMax   time.Duration
}

// NewLimiter builds a limiter admitting maxRequests per window with at
// least minSpacing between admissions.
func NewLimiter(maxRequests int, window, minSpacing time.Duration) *Limiter {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	return &Limiter{
		window:     window,
		maxInFlow:  maxRequests,
		minSpacing: minSpacing,
	}
}

// Acquire blocks until the caller's reserved slot arrives or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	now := time.Now()

	// Drop reservations that have aged out of the window.
	cutoff := now.Add(-l.window)
	trim := 0
	for trim < len(l.reserved) && l.reserved[trim].Before(cutoff) {
		trim++
	}
	l.reserved = l.reserved[trim:]

	at := now
	if !l.last.IsZero() {
		if next := l.last.Add(l.minSpacing); at.Before(next) {
			at = next
		}
	}
	if len(l.reserved) >= l.maxInFlow {
		head := l.reserved[len(l.reserved)-l.maxInFlow]
		if next := head.Add(l.window); at.Before(next) {
			at = next
		}
	}

	wait := at.Sub(now)
	if wait > 0 {
		// Jitter the delay slightly so deferred callers don't land on the
		// exact same instant as the window boundary.
		jitter := time.Duration(rand.Int63n(int64(l.minSpacing) + 1))
		at = at.Add(jitter)
		wait = at.Sub(now)

		l.delayCount++
		l.delayTotal += wait
		if wait > l.delayMax {
			l.delayMax = wait
		}
	}

	l.reserved = append(l.reserved, at)
	l.last = at
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DelayStats reports how often and how long callers have been deferred.
func (l *Limiter) DelayStats() (count int64, total, max time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.delayCount, l.delayTotal, l.delayMax
}
