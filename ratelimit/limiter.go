// Package ratelimit provides sliding-window admission control: an operation
// is admitted only while fewer than a configured number of operations have
// been admitted within the trailing window.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/odalton/resourcekit/telemetry"
)

// Option configures a Limiter.
type Option func(*Limiter)

// WithRetryInterval sets the sleep between Wait's admission attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(l *Limiter) {
		l.retryInterval = d
	}
}

// WithLogger sets the logger for the limiter.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		l.logger = logger
	}
}

// Limiter admits at most maxRequests operations per trailing window.
// It is safe for concurrent use; concurrent Allow calls see a consistent
// but unordered admission sequence (no fairness guarantee).
type Limiter struct {
	maxRequests   int
	window        time.Duration
	retryInterval time.Duration
	logger        *slog.Logger
	now           func() time.Time

	mu       sync.Mutex
	admitted []time.Time
}

// New creates a limiter admitting maxRequests per window.
// Defaults: retryInterval=100ms.
func New(maxRequests int, window time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		maxRequests:   maxRequests,
		window:        window,
		retryInterval: 100 * time.Millisecond,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow prunes timestamps that have aged out of the window, then admits the
// operation iff the retained count is below the limit. An admitted
// operation's timestamp is recorded; a rejected one leaves no trace.
func (l *Limiter) Allow() bool {
	return l.allowAt(l.now())
}

func (l *Limiter) allowAt(now time.Time) bool {
	l.mu.Lock()

	// Strict less-than retains: an entry whose age equals the window is
	// already expired and is pruned.
	kept := l.admitted[:0]
	for _, ts := range l.admitted {
		if now.Sub(ts) < l.window {
			kept = append(kept, ts)
		}
	}
	l.admitted = kept

	allowed := len(l.admitted) < l.maxRequests
	if allowed {
		l.admitted = append(l.admitted, now)
	}
	occupancy := len(l.admitted)
	l.mu.Unlock()

	if !allowed {
		l.logger.Debug("request rejected", "occupancy", occupancy, "limit", l.maxRequests)
	}
	telemetry.RecordLimiterDecision(context.Background(), allowed, occupancy)
	return allowed
}

// Wait retries Allow with a short sleep between attempts until admission
// succeeds or the context is done. This retry loop is the one deliberate
// busy-wait in the package; callers preferring immediate rejection use
// Allow directly.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}

		timer := time.NewTimer(l.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Len returns the number of admitted timestamps currently retained.
// Entries that have aged out but not yet been pruned by an Allow call are
// not counted.
func (l *Limiter) Len() int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, ts := range l.admitted {
		if now.Sub(ts) < l.window {
			n++
		}
	}
	return n
}
