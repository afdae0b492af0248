package ttlcache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/odalton/resourcekit/telemetry"
)

// SweeperConfig holds sweeper configuration.
type SweeperConfig struct {
	// Interval is how often to run eviction sweeps. Default is 1 minute.
	Interval time.Duration

	// Logger for sweep events.
	Logger *slog.Logger
}

// DefaultSweeperConfig returns a default configuration.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval: 1 * time.Minute,
		Logger:   slog.Default(),
	}
}

// evictor is the slice of Cache the sweeper needs, independent of the
// cache's value type.
type evictor interface {
	EvictExpired() EvictResult
}

// Sweeper periodically evicts expired entries from a cache.
type Sweeper struct {
	cache  evictor
	config SweeperConfig
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	stopped bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSweeper creates a sweeper for the given cache.
func NewSweeper(cache evictor, cfg SweeperConfig) *Sweeper {
	if cfg.Interval == 0 {
		cfg.Interval = 1 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Sweeper{
		cache:  cache,
		config: cfg,
		logger: cfg.Logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins background sweeps. Calling Start on a running or stopped
// sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.run(ctx)
}

// Stop stops background sweeps and waits for the loop to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run immediately on start
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single eviction sweep.
func (s *Sweeper) RunOnce(ctx context.Context) EvictResult {
	result := s.cache.EvictExpired()
	telemetry.RecordCacheSweep(ctx, result.Removed, result.Valid, result.Duration)

	if result.Removed > 0 {
		s.logger.Info("cache sweep complete",
			"before", result.Before,
			"removed", result.Removed,
			"valid", result.Valid,
			"duration", result.Duration,
		)
	} else {
		s.logger.Debug("cache sweep complete, nothing to evict", "entries", result.Before)
	}

	return result
}
