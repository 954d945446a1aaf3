// Package spill persists audit events to a local bbolt file while the durable
// store is unavailable, so best-effort auditing survives store outages.
package spill

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"shiftwise/backend/internal/audit/domain"
)

var bucket = []byte("audit")

// Store wraps a bbolt file holding audit events that failed to persist.
type Store struct {
	db *bolt.DB
}

// Open initializes the bbolt file and ensures the bucket exists.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Put appends the event to the spill file. Keys are ordered by insertion so
// Drain replays events oldest first.
func (s *Store) Put(e *domain.Event) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, id)
		return b.Put(key, payload)
	})
}

// Drain hands up to limit spooled events to flush, oldest first, removing each
// one only after flush returns nil. A flush error stops the drain; remaining
// events stay spooled for the next pass.
func (s *Store) Drain(limit int, flush func(*domain.Event) error) (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	if limit <= 0 {
		limit = 100
	}

	type pending struct {
		key   []byte
		event domain.Event
	}
	var batch []pending
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		for k, v := c.First(); k != nil && len(batch) < limit; k, v = c.Next() {
			var e domain.Event
			if err := json.Unmarshal(v, &e); err != nil {
				continue // malformed entry, leave it behind
			}
			batch = append(batch, pending{key: append([]byte(nil), k...), event: e})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	flushed := 0
	for i := range batch {
		if err := flush(&batch[i].event); err != nil {
			return flushed, err
		}
		if err := s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucket).Delete(batch[i].key)
		}); err != nil {
			return flushed, err
		}
		flushed++
	}
	return flushed, nil
}

// Size returns the number of spooled events.
func (s *Store) Size() (int, error) {
	if s == nil || s.db == nil {
		return 0, bolt.ErrDatabaseNotOpen
	}
	var count int
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucket).Stats().KeyN
		return nil
	})
	return count, err
}

// Close closes the underlying bbolt file.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
