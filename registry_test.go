package resourcekit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryPutGet(t *testing.T) {
	r := NewRegistry[string, int]()

	_, ok := r.Get("missing")
	require.False(t, ok)

	r.Put("a", 1)
	v, ok := r.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, v)

	// Overwrite
	r.Put("a", 2)
	v, _ = r.Get("a")
	require.Equal(t, 2, v)
	require.Equal(t, 1, r.Len())
}

func TestRegistryDelete(t *testing.T) {
	r := NewRegistry[string, string]()
	r.Put("a", "x")

	require.True(t, r.Delete("a"))
	require.False(t, r.Delete("a"))
	require.Equal(t, 0, r.Len())
}

func TestRegistryDeleteIf(t *testing.T) {
	r := NewRegistry[string, int]()
	r.Put("a", 1)

	require.False(t, r.DeleteIf("a", func(v int) bool { return v > 1 }))
	require.Equal(t, 1, r.Len())

	require.True(t, r.DeleteIf("a", func(v int) bool { return v == 1 }))
	require.Equal(t, 0, r.Len())
}

func TestRegistryDeleteIfMissingKey(t *testing.T) {
	r := NewRegistry[string, int]()

	called := false
	require.False(t, r.DeleteIf("missing", func(int) bool {
		called = true
		return true
	}))
	require.False(t, called, "predicate must not run for a missing key")
}

func TestRegistryUpdate(t *testing.T) {
	r := NewRegistry[string, int]()
	r.Put("n", 10)

	ok := r.Update("n", func(v int) int { return v + 1 })
	require.True(t, ok)

	v, _ := r.Get("n")
	require.Equal(t, 11, v)

	// Update on a missing key does not call fn
	called := false
	ok = r.Update("missing", func(v int) int {
		called = true
		return v
	})
	require.False(t, ok)
	require.False(t, called)
}

func TestRegistryKeysValuesRange(t *testing.T) {
	r := NewRegistry[string, int]()
	r.Put("a", 1)
	r.Put("b", 2)
	r.Put("c", 3)

	require.ElementsMatch(t, []string{"a", "b", "c"}, r.Keys())
	require.ElementsMatch(t, []int{1, 2, 3}, r.Values())

	seen := 0
	r.Range(func(_ string, _ int) bool {
		seen++
		return seen < 2 // stop early
	})
	require.Equal(t, 2, seen)
}

func TestRegistryConcurrentUpdate(t *testing.T) {
	r := NewRegistry[string, int]()
	r.Put("counter", 0)

	const workers = 32
	const increments = 100

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < increments; j++ {
				r.Update("counter", func(v int) int { return v + 1 })
			}
		}()
	}
	wg.Wait()

	v, _ := r.Get("counter")
	require.Equal(t, workers*increments, v)
}
