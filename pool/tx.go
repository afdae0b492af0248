package pool

import "context"

// Tx buffers operations and applies them through one connection on Commit.
// It is a staging convenience over Batch, not an isolation boundary: the
// buffered operations touch the store only at Commit, apply in order with
// per-op errors, and nothing rolls back an op that already applied.
type Tx struct {
	conn *Conn
	ops  []Op
	done bool
}

// Begin starts an empty transaction on this connection.
func (c *Conn) Begin() *Tx {
	return &Tx{conn: c}
}

// Add buffers an operation. The store is untouched until Commit.
func (t *Tx) Add(op Op) {
	if t.done {
		return
	}
	t.ops = append(t.ops, op)
}

// Len returns the number of buffered operations.
func (t *Tx) Len() int {
	return len(t.ops)
}

// Commit applies the buffered operations in order and returns one error slot
// per op. The transaction is finished afterwards; a second Commit applies
// nothing and returns nil.
func (t *Tx) Commit(ctx context.Context) []error {
	if t.done {
		return nil
	}
	t.done = true

	ops := t.ops
	t.ops = nil
	return t.conn.Batch(ctx, ops)
}

// Rollback discards the buffered operations without applying them.
// A no-op after Commit.
func (t *Tx) Rollback() {
	t.done = true
	t.ops = nil
}
