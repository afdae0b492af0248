// Package pool provides a bounded pool of reusable logical connections to
// the record store. Connections are created on demand, handed out exclusively
// to one caller at a time, and returned for reuse on release.
package pool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odalton/resourcekit/recordstore"
	"github.com/odalton/resourcekit/telemetry"
)

var (
	// ErrExhausted is returned by Acquire when the pool is bounded, every
	// connection is in use, and the bound has been reached. Exhaustion is
	// reported immediately; callers that want blocking or backoff compose
	// it themselves.
	ErrExhausted = errors.New("pool: exhausted")

	// ErrClosed is returned when Acquire is called on a closed pool.
	ErrClosed = errors.New("pool: closed")
)

// Config holds pool configuration.
type Config struct {
	// MaxConns caps the number of connections the pool will create.
	// Zero means unbounded on-demand creation.
	MaxConns int

	// QueryLatency is the simulated latency of a Query operation.
	QueryLatency time.Duration

	// ExecLatency is the simulated latency of an Exec operation.
	ExecLatency time.Duration

	// Logger for pool events.
	Logger *slog.Logger
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConns:     10,
		QueryLatency: 10 * time.Millisecond,
		ExecLatency:  5 * time.Millisecond,
		Logger:       slog.Default(),
	}
}

// Pool manages the connection set. It is safe for concurrent use.
//
// The mutex guards free, all and closed; it is held only for the in-memory
// bookkeeping of an acquire or release, never across the simulated I/O the
// connections perform.
type Pool struct {
	store  recordstore.Store
	config Config
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	free   []*Conn // LIFO stack; Acquire pops from the end, Release pushes
	all    []*Conn
	closed bool
}

// New creates a pool whose connections operate against store.
func New(store recordstore.Store, cfg Config) *Pool {
	if cfg.QueryLatency == 0 {
		cfg.QueryLatency = 10 * time.Millisecond
	}
	if cfg.ExecLatency == 0 {
		cfg.ExecLatency = 5 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Pool{
		store:  store,
		config: cfg,
		logger: cfg.Logger,
		now:    time.Now,
	}
}

// Acquire returns an idle connection if one exists, creating a new one
// otherwise. In bounded mode (MaxConns > 0) it returns ErrExhausted when
// every connection is in use and the bound has been reached. Acquire never
// blocks waiting for a release.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		telemetry.RecordPoolAcquire(ctx, "closed")
		return nil, ErrClosed
	}

	if n := len(p.free); n > 0 {
		conn := p.free[n-1]
		p.free = p.free[:n-1]
		conn.inUse = true
		telemetry.RecordPoolAcquire(ctx, "reused")
		telemetry.UpdatePoolInUse(ctx, p.inUseLocked())
		return conn, nil
	}

	if p.config.MaxConns > 0 && len(p.all) >= p.config.MaxConns {
		telemetry.RecordPoolAcquire(ctx, "exhausted")
		return nil, ErrExhausted
	}

	conn := &Conn{
		ID:        uuid.NewString(),
		CreatedAt: p.now(),
		inUse:     true,
		pool:      p,
	}
	p.all = append(p.all, conn)

	p.logger.Debug("created connection", "id", conn.ID, "total", len(p.all))
	telemetry.RecordPoolAcquire(ctx, "created")
	telemetry.UpdatePoolInUse(ctx, p.inUseLocked())

	return conn, nil
}

// Release marks a connection idle and returns it to the pool for reuse.
// Releasing an already-idle connection is a no-op. Safe to call concurrently
// with Acquire.
func (p *Pool) Release(conn *Conn) {
	if conn == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !conn.inUse {
		return
	}
	conn.inUse = false

	if !p.closed {
		p.free = append(p.free, conn)
	}
	telemetry.UpdatePoolInUse(context.Background(), p.inUseLocked())
}

// With acquires a connection, invokes fn with it, and releases it exactly
// once when fn returns, including when fn panics. This is the scoped
// acquisition entry point; prefer it over a manual Acquire/Release pair.
func (p *Pool) With(ctx context.Context, fn func(ctx context.Context, conn *Conn) error) error {
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer p.Release(conn)

	return fn(ctx, conn)
}

// InUse returns the number of connections currently checked out.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUseLocked()
}

// Size returns the number of connections the pool has created.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.all)
}

// Close tears down the pool. Connections live for the lifetime of the pool
// and are discarded here; subsequent Acquire calls return ErrClosed.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	p.logger.Debug("pool closed", "total", len(p.all), "idle", len(p.free))
	p.free = nil
	p.all = nil
}

func (p *Pool) inUseLocked() int {
	n := 0
	for _, c := range p.all {
		if c.inUse {
			n++
		}
	}
	return n
}
