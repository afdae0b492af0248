// Package recordstore provides the simulated record store that pooled
// connections run their queries and executes against. It stands in for a
// real database behind a narrow interface: a bbolt-backed implementation
// for the demo binary and an in-memory implementation for tests.
package recordstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("recordstore: not found")

// ErrInvalidKey is returned by Put when a record's kind or ID contains the
// key separator.
var ErrInvalidKey = errors.New("recordstore: kind and id must not contain '/'")

// Record is a single stored record.
type Record struct {
	// ID and Kind form the record's key. Neither may contain '/': it
	// separates kind from ID in stored keys, and a kind like "a/b" would
	// collide with records of kind "a".
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Data      []byte    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

// validateKey rejects kinds and IDs that would break the key scheme.
func validateKey(kind, id string) error {
	if strings.ContainsRune(kind, '/') || strings.ContainsRune(id, '/') {
		return ErrInvalidKey
	}
	return nil
}

// Store defines the record store interface.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put stores a record, overwriting any record with the same kind and ID.
	Put(ctx context.Context, rec *Record) error

	// Get retrieves a record by kind and ID.
	// Returns ErrNotFound if the record does not exist.
	Get(ctx context.Context, kind, id string) (*Record, error)

	// Delete removes a record. Deleting a missing record is not an error.
	Delete(ctx context.Context, kind, id string) error

	// List returns all records of the given kind.
	List(ctx context.Context, kind string) ([]*Record, error)

	// Close releases any resources held by the store.
	Close() error
}
