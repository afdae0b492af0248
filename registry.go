// Package resourcekit provides the shared primitives used by the resource
// management components: a concurrency-safe registry and a payload checksum.
package resourcekit

import "sync"

// Registry is a concurrency-safe map guarded by a single reader-writer lock.
// It is the shared-container primitive underneath the cache, the in-memory
// record store, and the scheduler's task registry.
//
// The lock never crosses the API boundary: callers mutate through Put, Delete
// and Update, and the callbacks passed to Update and Range run while the lock
// is held, so they must not block or call back into the same Registry.
type Registry[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

// NewRegistry creates an empty registry.
func NewRegistry[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		items: make(map[K]V),
	}
}

// Get returns the value stored under key, reporting whether it was present.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[key]
	return v, ok
}

// Put stores value under key, overwriting any existing value.
func (r *Registry[K, V]) Put(key K, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[key] = value
}

// Delete removes key, reporting whether it was present.
func (r *Registry[K, V]) Delete(key K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.items[key]
	delete(r.items, key)
	return ok
}

// Len returns the number of stored entries.
func (r *Registry[K, V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Keys returns a snapshot of all keys in unspecified order.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]K, 0, len(r.items))
	for k := range r.items {
		keys = append(keys, k)
	}
	return keys
}

// Values returns a snapshot of all values in unspecified order.
func (r *Registry[K, V]) Values() []V {
	r.mu.RLock()
	defer r.mu.RUnlock()
	values := make([]V, 0, len(r.items))
	for _, v := range r.items {
		values = append(values, v)
	}
	return values
}

// Update applies fn to the value stored under key and stores the result,
// all under the write lock. Reports whether the key was present; fn is not
// called for a missing key.
func (r *Registry[K, V]) Update(key K, fn func(V) V) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[key]
	if !ok {
		return false
	}
	r.items[key] = fn(v)
	return true
}

// DeleteIf removes key only if fn approves the stored value, with the check
// and the delete under one write lock acquisition. Reports whether the entry
// was removed; fn is not called for a missing key.
func (r *Registry[K, V]) DeleteIf(key K, fn func(V) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.items[key]
	if !ok || !fn(v) {
		return false
	}
	delete(r.items, key)
	return true
}

// Range calls fn for each entry under the read lock until fn returns false.
func (r *Registry[K, V]) Range(fn func(K, V) bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k, v := range r.items {
		if !fn(k, v) {
			return
		}
	}
}
