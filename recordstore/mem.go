package recordstore

import (
	"context"
	"strings"
	"time"

	resourcekit "github.com/odalton/resourcekit"
)

// MemStore is an in-memory Store built on the shared registry primitive.
// Records are copied in and out so callers never alias stored state.
type MemStore struct {
	records *resourcekit.Registry[string, Record]
	now     func() time.Time
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		records: resourcekit.NewRegistry[string, Record](),
		now:     time.Now,
	}
}

// Put stores a copy of the record.
func (s *MemStore) Put(ctx context.Context, rec *Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(rec.Kind, rec.ID); err != nil {
		return err
	}

	stored := *rec
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	stored.Data = append([]byte(nil), rec.Data...)
	s.records.Put(string(recordKey(stored.Kind, stored.ID)), stored)
	return nil
}

// Get retrieves a record by kind and ID. Returns ErrNotFound if absent.
func (s *MemStore) Get(ctx context.Context, kind, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, ok := s.records.Get(string(recordKey(kind, id)))
	if !ok {
		return nil, ErrNotFound
	}
	out := rec
	out.Data = append([]byte(nil), rec.Data...)
	return &out, nil
}

// Delete removes a record. Deleting a missing record is not an error.
func (s *MemStore) Delete(ctx context.Context, kind, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.records.Delete(string(recordKey(kind, id)))
	return nil
}

// List returns all records of the given kind in unspecified order.
func (s *MemStore) List(ctx context.Context, kind string) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := kind + "/"
	var results []*Record
	s.records.Range(func(key string, rec Record) bool {
		if strings.HasPrefix(key, prefix) {
			out := rec
			out.Data = append([]byte(nil), rec.Data...)
			results = append(results, &out)
		}
		return true
	})
	return results, nil
}

// Close is a no-op for the in-memory store.
func (s *MemStore) Close() error {
	return nil
}
