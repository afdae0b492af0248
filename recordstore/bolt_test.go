package recordstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestBoltStore(t *testing.T) *BoltStore {
	t.Helper()

	store, err := OpenBolt(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestBoltStorePutGet(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	rec := &Record{
		ID:   "1",
		Kind: "user",
		Data: []byte(`{"name":"alice"}`),
	}
	require.NoError(t, store.Put(ctx, rec))

	got, err := store.Get(ctx, "user", "1")
	require.NoError(t, err)
	require.Equal(t, "1", got.ID)
	require.Equal(t, "user", got.Kind)
	require.Equal(t, rec.Data, got.Data)
	require.False(t, got.CreatedAt.IsZero())
}

func TestBoltStoreGetNotFound(t *testing.T) {
	store := newTestBoltStore(t)

	_, err := store.Get(context.Background(), "user", "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBoltStorePutPreservesCreatedAt(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, &Record{ID: "1", Kind: "user", CreatedAt: created}))

	got, err := store.Get(ctx, "user", "1")
	require.NoError(t, err)
	require.True(t, got.CreatedAt.Equal(created))
}

func TestBoltStoreDeleteIdempotent(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &Record{ID: "1", Kind: "user"}))
	require.NoError(t, store.Delete(ctx, "user", "1"))
	require.NoError(t, store.Delete(ctx, "user", "1"))

	_, err := store.Get(ctx, "user", "1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBoltStoreListByKind(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &Record{ID: "1", Kind: "user"}))
	require.NoError(t, store.Put(ctx, &Record{ID: "2", Kind: "user"}))
	require.NoError(t, store.Put(ctx, &Record{ID: "1", Kind: "order"}))

	users, err := store.List(ctx, "user")
	require.NoError(t, err)
	require.Len(t, users, 2)

	orders, err := store.List(ctx, "order")
	require.NoError(t, err)
	require.Len(t, orders, 1)

	none, err := store.List(ctx, "invoice")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestBoltStorePutRejectsSeparatorInKey(t *testing.T) {
	store := newTestBoltStore(t)
	ctx := context.Background()

	require.ErrorIs(t, store.Put(ctx, &Record{ID: "1", Kind: "a/b"}), ErrInvalidKey)
	require.ErrorIs(t, store.Put(ctx, &Record{ID: "1/2", Kind: "a"}), ErrInvalidKey)

	// A kind sharing a prefix with another kind is fine and does not bleed
	// into its listing.
	require.NoError(t, store.Put(ctx, &Record{ID: "1", Kind: "a"}))
	require.NoError(t, store.Put(ctx, &Record{ID: "1", Kind: "ab"}))

	recs, err := store.List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "a", recs[0].Kind)
}

func TestBoltStoreContextCancelled(t *testing.T) {
	store := newTestBoltStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, store.Put(ctx, &Record{ID: "1", Kind: "user"}), context.Canceled)
	_, err := store.Get(ctx, "user", "1")
	require.ErrorIs(t, err, context.Canceled)
}
