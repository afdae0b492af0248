package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/odalton/resourcekit/recordstore"
)

func newTestPool(t *testing.T, maxConns int) *Pool {
	t.Helper()

	p := New(recordstore.NewMemStore(), Config{
		MaxConns:     maxConns,
		QueryLatency: time.Millisecond,
		ExecLatency:  time.Millisecond,
	})
	t.Cleanup(p.Close)
	return p
}

func TestPoolAcquireCreatesOnDemand(t *testing.T) {
	p := newTestPool(t, 5)
	ctx := context.Background()

	c1, err := p.Acquire(ctx)
	require.NoError(t, err)
	c2, err := p.Acquire(ctx)
	require.NoError(t, err)

	require.NotEqual(t, c1.ID, c2.ID)
	require.Equal(t, 2, p.Size())
	require.Equal(t, 2, p.InUse())
}

func TestPoolReleaseReusesConnection(t *testing.T) {
	p := newTestPool(t, 5)
	ctx := context.Background()

	// Acquire 3, release 1, acquire again: the released connection's ID
	// comes back instead of a new one being minted.
	c1, err := p.Acquire(ctx)
	require.NoError(t, err)
	_, err = p.Acquire(ctx)
	require.NoError(t, err)
	_, err = p.Acquire(ctx)
	require.NoError(t, err)

	p.Release(c1)
	require.Equal(t, 2, p.InUse())

	c4, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, c1.ID, c4.ID)
	require.Equal(t, 3, p.Size())
}

func TestPoolBoundedExhaustion(t *testing.T) {
	const maxConns = 3
	p := newTestPool(t, maxConns)
	ctx := context.Background()

	for i := 0; i < maxConns; i++ {
		_, err := p.Acquire(ctx)
		require.NoError(t, err)
	}

	_, err := p.Acquire(ctx)
	require.ErrorIs(t, err, ErrExhausted)
	require.Equal(t, maxConns, p.InUse())
}

func TestPoolConcurrentAcquireRespectsBound(t *testing.T) {
	const maxConns = 4
	const callers = 32
	p := newTestPool(t, maxConns)

	var acquired, exhausted atomic.Int64

	g := new(errgroup.Group)
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, err := p.Acquire(context.Background())
			switch {
			case err == nil:
				acquired.Add(1)
				return nil
			case errors.Is(err, ErrExhausted):
				exhausted.Add(1)
				return nil
			default:
				return err
			}
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, int64(maxConns), acquired.Load())
	require.Equal(t, int64(callers-maxConns), exhausted.Load())
	require.Equal(t, maxConns, p.InUse())
	require.Equal(t, maxConns, p.Size())
}

func TestPoolUnbounded(t *testing.T) {
	p := newTestPool(t, 0)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := p.Acquire(ctx)
		require.NoError(t, err)
	}
	require.Equal(t, 20, p.Size())
}

func TestPoolDoubleReleaseIsNoop(t *testing.T) {
	p := newTestPool(t, 2)
	ctx := context.Background()

	c, err := p.Acquire(ctx)
	require.NoError(t, err)

	p.Release(c)
	p.Release(c)

	// A double release must not put the connection on the free stack
	// twice: two acquires get distinct connections.
	c1, err := p.Acquire(ctx)
	require.NoError(t, err)
	c2, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NotEqual(t, c1.ID, c2.ID)
}

func TestPoolWithReleasesOnSuccess(t *testing.T) {
	p := newTestPool(t, 1)
	ctx := context.Background()

	err := p.With(ctx, func(ctx context.Context, conn *Conn) error {
		require.Equal(t, 1, p.InUse())
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, p.InUse())
}

func TestPoolWithReleasesOnError(t *testing.T) {
	p := newTestPool(t, 1)
	ctx := context.Background()

	wantErr := errors.New("work failed")
	err := p.With(ctx, func(ctx context.Context, conn *Conn) error {
		return wantErr
	})
	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 0, p.InUse())

	// The connection is reusable after the failed scope.
	_, err = p.Acquire(ctx)
	require.NoError(t, err)
}

func TestPoolWithReleasesOnPanic(t *testing.T) {
	p := newTestPool(t, 1)
	ctx := context.Background()

	require.Panics(t, func() {
		_ = p.With(ctx, func(ctx context.Context, conn *Conn) error {
			panic("midway failure")
		})
	})
	require.Equal(t, 0, p.InUse())
}

func TestPoolClosed(t *testing.T) {
	p := newTestPool(t, 2)
	p.Close()

	_, err := p.Acquire(context.Background())
	require.ErrorIs(t, err, ErrClosed)

	// Close is idempotent.
	p.Close()
}

func TestPoolAcquireContextCancelled(t *testing.T) {
	p := newTestPool(t, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Acquire(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
