// Package ttlcache provides a concurrency-safe key/value cache whose entries
// expire after a per-entry time-to-live, plus a background sweeper that
// physically removes expired entries.
package ttlcache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	resourcekit "github.com/odalton/resourcekit"
	"github.com/odalton/resourcekit/telemetry"
)

// FetchFunc produces the authoritative value for a key on a cache miss.
// It simulates the external collaborator (an HTTP, network or database
// fetch); transport, encoding and retries are its own business.
type FetchFunc[V any] func(ctx context.Context, key string) (V, error)

type entry[V any] struct {
	value    V
	storedAt time.Time
	ttl      time.Duration
}

// valid reports whether the entry is still live at now. An entry whose age
// equals its TTL is expired (strict less-than retains).
func (e entry[V]) valid(now time.Time) bool {
	return now.Sub(e.storedAt) < e.ttl
}

// Cache is a TTL cache. Expired entries are logically absent the moment
// their TTL elapses: Get reports a miss without removing them, and the
// physical removal happens in EvictExpired (usually via a Sweeper).
type Cache[V any] struct {
	entries *resourcekit.Registry[string, entry[V]]
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an empty cache. A nil logger falls back to slog.Default().
func New[V any](logger *slog.Logger) *Cache[V] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache[V]{
		entries: resourcekit.NewRegistry[string, entry[V]](),
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the value for key if it is present and still valid.
// A stale entry is reported as a miss but left in the backing store.
func (c *Cache[V]) Get(key string) (V, bool) {
	e, ok := c.entries.Get(key)
	if !ok || !e.valid(c.now()) {
		telemetry.RecordCacheLookup(context.Background(), false)
		var zero V
		return zero, false
	}
	telemetry.RecordCacheLookup(context.Background(), true)
	return e.value, true
}

// Set unconditionally stores value under key with the given TTL, resetting
// the entry's stored-at time to now.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.entries.Put(key, entry[V]{
		value:    value,
		storedAt: c.now(),
		ttl:      ttl,
	})
}

// Fetch returns the cached value on a hit. On a miss it invokes fetch,
// stores the result with the given TTL, and returns it.
//
// Concurrent misses for the same key are not deduplicated: both callers
// invoke fetch and both write the cache, last write wins. That is a known
// inefficiency accepted by this design; a single-flight variant would be an
// extension, not a fix.
func (c *Cache[V]) Fetch(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc[V]) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	// The fetch is a suspension point; no cache lock is held across it.
	v, err := fetch(ctx, key)
	if err != nil {
		var zero V
		return zero, fmt.Errorf("fetching %q: %w", key, err)
	}

	c.Set(key, v, ttl)
	return v, nil
}

// EvictResult reports one eviction sweep.
type EvictResult struct {
	// Before is the number of entries present before the sweep.
	Before int
	// Valid is the number of live entries remaining after the sweep.
	Valid int
	// Removed is the number of expired entries physically deleted.
	Removed int
	// Duration is how long the sweep took.
	Duration time.Duration
}

// EvictExpired sweeps the full key set and removes every entry that is no
// longer valid.
func (c *Cache[V]) EvictExpired() EvictResult {
	start := time.Now()
	now := c.now()

	var expired []string
	before := 0
	c.entries.Range(func(key string, e entry[V]) bool {
		before++
		if !e.valid(now) {
			expired = append(expired, key)
		}
		return true
	})

	removed := 0
	for _, key := range expired {
		// The validity re-check and the delete happen under one write
		// lock acquisition, so a Set landing after the scan cannot have
		// its fresh entry removed.
		if c.entries.DeleteIf(key, func(e entry[V]) bool { return !e.valid(now) }) {
			removed++
		}
	}

	return EvictResult{
		Before:   before,
		Valid:    before - removed,
		Removed:  removed,
		Duration: time.Since(start),
	}
}

// Len returns the number of physically stored entries, valid or not.
func (c *Cache[V]) Len() int {
	return c.entries.Len()
}

// Stats returns the total number of stored entries and how many of them are
// still valid.
func (c *Cache[V]) Stats() (total, valid int) {
	now := c.now()
	c.entries.Range(func(_ string, e entry[V]) bool {
		total++
		if e.valid(now) {
			valid++
		}
		return true
	})
	return total, valid
}
