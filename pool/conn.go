package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/odalton/resourcekit/recordstore"
	"github.com/odalton/resourcekit/telemetry"
)

// Conn is a logical connection borrowed from the pool. A checked-out
// connection belongs to one caller at a time; it is returned with Release
// (or automatically by Pool.With) and destroyed only when the pool is.
type Conn struct {
	// ID identifies the connection for its whole lifetime. A released
	// connection keeps its ID and hands it to the next borrower.
	ID string

	// CreatedAt is when the pool created this connection.
	CreatedAt time.Time

	inUse bool
	pool  *Pool
}

// OpKind selects the effect of a batch operation.
type OpKind int

const (
	// OpPut creates or overwrites a record.
	OpPut OpKind = iota
	// OpDelete removes a record.
	OpDelete
)

// Op is a single operation in a batch.
type Op struct {
	Kind   OpKind
	Record recordstore.Record
}

// Query lists the records of the given kind after the configured simulated
// latency. The latency wait is a suspension point: no pool lock is held and
// the context can cancel it. Queries are pass-through and carry no retries.
func (c *Conn) Query(ctx context.Context, kind string) ([]*recordstore.Record, error) {
	start := time.Now()
	if err := sleepCtx(ctx, c.pool.config.QueryLatency); err != nil {
		telemetry.RecordConnOp(ctx, "query", "error", time.Since(start))
		return nil, err
	}

	records, err := c.pool.store.List(ctx, kind)
	if err != nil {
		telemetry.RecordConnOp(ctx, "query", "error", time.Since(start))
		return nil, fmt.Errorf("querying %q: %w", kind, err)
	}

	c.pool.logger.Debug("query", "conn", c.ID, "kind", kind, "rows", len(records))
	telemetry.RecordConnOp(ctx, "query", "ok", time.Since(start))
	return records, nil
}

// Exec stores a record after the configured simulated latency.
// Not idempotent from the caller's perspective: an Exec abandoned on timeout
// may still have taken effect, and nothing rolls it back.
func (c *Conn) Exec(ctx context.Context, rec *recordstore.Record) error {
	start := time.Now()
	if err := sleepCtx(ctx, c.pool.config.ExecLatency); err != nil {
		telemetry.RecordConnOp(ctx, "execute", "error", time.Since(start))
		return err
	}

	if err := c.pool.store.Put(ctx, rec); err != nil {
		telemetry.RecordConnOp(ctx, "execute", "error", time.Since(start))
		return fmt.Errorf("executing put %s/%s: %w", rec.Kind, rec.ID, err)
	}

	c.pool.logger.Debug("execute", "conn", c.ID, "kind", rec.Kind, "id", rec.ID)
	telemetry.RecordConnOp(ctx, "execute", "ok", time.Since(start))
	return nil
}

// Batch applies ops in order and returns one error slot per op. A failed op
// does not stop the batch.
func (c *Conn) Batch(ctx context.Context, ops []Op) []error {
	results := make([]error, len(ops))
	for i, op := range ops {
		switch op.Kind {
		case OpPut:
			rec := op.Record
			results[i] = c.Exec(ctx, &rec)
		case OpDelete:
			results[i] = c.pool.store.Delete(ctx, op.Record.Kind, op.Record.ID)
		default:
			results[i] = fmt.Errorf("unknown op kind %d", op.Kind)
		}
	}
	return results
}

// sleepCtx waits d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
