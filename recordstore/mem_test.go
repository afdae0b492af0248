package recordstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemStorePutGetDelete(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &Record{ID: "1", Kind: "user", Data: []byte("a")}))

	got, err := store.Get(ctx, "user", "1")
	require.NoError(t, err)
	require.Equal(t, []byte("a"), got.Data)
	require.False(t, got.CreatedAt.IsZero())

	require.NoError(t, store.Delete(ctx, "user", "1"))
	require.NoError(t, store.Delete(ctx, "user", "1"))

	_, err = store.Get(ctx, "user", "1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemStorePutRejectsSeparatorInKey(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	require.ErrorIs(t, store.Put(ctx, &Record{ID: "1", Kind: "a/b"}), ErrInvalidKey)
	require.ErrorIs(t, store.Put(ctx, &Record{ID: "1/2", Kind: "a"}), ErrInvalidKey)

	require.NoError(t, store.Put(ctx, &Record{ID: "1", Kind: "a"}))
	recs, err := store.List(ctx, "a")
	require.NoError(t, err)
	require.Len(t, recs, 1)
}

func TestMemStoreCopiesData(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	data := []byte("original")
	require.NoError(t, store.Put(ctx, &Record{ID: "1", Kind: "user", Data: data}))

	// Mutating the caller's slice must not affect the stored record.
	data[0] = 'X'

	got, err := store.Get(ctx, "user", "1")
	require.NoError(t, err)
	require.Equal(t, []byte("original"), got.Data)

	// Mutating a returned record must not affect later reads.
	got.Data[0] = 'Y'
	again, err := store.Get(ctx, "user", "1")
	require.NoError(t, err)
	require.Equal(t, []byte("original"), again.Data)
}

func TestMemStoreList(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &Record{ID: "1", Kind: "user"}))
	require.NoError(t, store.Put(ctx, &Record{ID: "2", Kind: "user"}))
	require.NoError(t, store.Put(ctx, &Record{ID: "9", Kind: "order"}))

	users, err := store.List(ctx, "user")
	require.NoError(t, err)
	require.Len(t, users, 2)
}

func TestMemStoreConcurrentAccess(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := &Record{ID: string(rune('a' + n)), Kind: "user"}
			require.NoError(t, store.Put(ctx, rec))
			_, err := store.Get(ctx, "user", rec.ID)
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	users, err := store.List(ctx, "user")
	require.NoError(t, err)
	require.Len(t, users, 16)
}
