// Package throttle 提供对外部 AI 接口调用的自适应限流。
package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultRequestsPerSecond = 5.0
	DefaultBurst             = 5
	DefaultCooldown          = 30 * time.Second
)

// Limiter is a token bucket that can be pushed into a cool-down after the
// remote side answers 429.
type Limiter struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	retryAt  time.Time
	cooldown time.Duration
}

// New creates a limiter. Non-positive arguments fall back to the defaults.
func New(requestsPerSecond float64, burst int, cooldown time.Duration) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = DefaultRequestsPerSecond
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		cooldown: cooldown,
	}
}

// Wait blocks until a call may be made: first until any cool-down has passed,
// then until the bucket hands out a token.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	if d := time.Until(retryAt); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return l.limiter.Wait(ctx)
}

// RecordRateLimit starts a cool-down. A retryAfter of zero uses the
// configured cool-down. An earlier deadline never shortens a running one.
func (l *Limiter) RecordRateLimit(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = l.cooldown
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	until := time.Now().Add(retryAfter)
	if until.After(l.retryAt) {
		l.retryAt = until
	}
}

// CoolingDown reports whether a cool-down is in effect.
func (l *Limiter) CoolingDown() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Now().Before(l.retryAt)
}
