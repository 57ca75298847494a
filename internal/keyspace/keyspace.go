// Package keyspace wraps the embedded key-value engine the document
// store persists into. Every stored value carries a one-byte kind tag
// so callers can probe an entry's kind without materializing it.
package keyspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Value kind tags. The tag is the first byte of every stored value.
const (
	KindJSON byte = 'J' // serialized JSON document
	KindRaw  byte = 'R' // opaque, non-JSON payload
)

// ErrNotFound is returned when a key has no entry.
var ErrNotFound = errors.New("keyspace: key not found")

// Config selects where the engine keeps its data. InMemory is meant
// for tests.
type Config struct {
	Dir      string
	InMemory bool
}

// Store is a Badger-backed keyspace.
type Store struct {
	db *badger.DB
}

// Open initializes the engine at cfg.Dir.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening keyspace at %q: %w", cfg.Dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the engine.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or replaces an entry under the given kind tag.
func (s *Store) Put(ctx context.Context, key string, kind byte, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tagged := make([]byte, 0, len(value)+1)
	tagged = append(tagged, kind)
	tagged = append(tagged, value...)

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), tagged)
	})
}

// Get retrieves an entry's kind tag and payload.
func (s *Store) Get(ctx context.Context, key string) (byte, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	var kind byte
	var payload []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return fmt.Errorf("keyspace: entry %q has no kind tag", key)
			}
			kind = val[0]
			payload = append([]byte(nil), val[1:]...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil, ErrNotFound
	}
	if err != nil {
		return 0, nil, err
	}
	return kind, payload, nil
}

// Kind reads only the kind tag of an entry, without copying the
// payload out of the engine.
func (s *Store) Kind(ctx context.Context, key string) (byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var kind byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return fmt.Errorf("keyspace: entry %q has no kind tag", key)
			}
			kind = val[0]
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return kind, nil
}

// Delete removes an entry. Deleting an absent key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Keys lists all key names with the given prefix, in lexical order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}
