package recordstore

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// bucketRecords holds record envelopes keyed by "kind/id".
var bucketRecords = []byte("records")

// BoltStore is a Store backed by a bbolt database. Values are stored as
// framed envelopes (checksum + zstd-compressed JSON) and verified on read.
type BoltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// OpenBolt opens (creating if necessary) a bbolt-backed store at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecords)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating records bucket: %w", err)
	}

	return &BoltStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Put stores a record, overwriting any record with the same kind and ID.
// A zero CreatedAt is set to the current time.
func (s *BoltStore) Put(ctx context.Context, rec *Record) error {
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

	value, err := encodeEnvelope(&stored)
	if err != nil {
		return fmt.Errorf("encoding record: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).Put(recordKey(stored.Kind, stored.ID), value)
	})
}

// Get retrieves a record by kind and ID. Returns ErrNotFound if absent.
func (s *BoltStore) Get(ctx context.Context, kind, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketRecords).Get(recordKey(kind, id))
		if value == nil {
			return ErrNotFound
		}
		var err error
		rec, err = decodeEnvelope(value)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record. Deleting a missing record is not an error.
func (s *BoltStore) Delete(ctx context.Context, kind, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRecords).Delete(recordKey(kind, id))
	})
}

// List returns all records of the given kind in key order.
func (s *BoltStore) List(ctx context.Context, kind string) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(kind + "/")
	var results []*Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRecords).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			rec, err := decodeEnvelope(v)
			if err != nil {
				return fmt.Errorf("decoding record %q: %w", k, err)
			}
			results = append(results, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func recordKey(kind, id string) []byte {
	return []byte(kind + "/" + id)
}
