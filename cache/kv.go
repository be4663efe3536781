// ABOUTME: Badger-backed key/value store with per-entry expiry
// ABOUTME: Backs the session note cache and the async processor task records
package cache

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v3"
)

// ErrNotFound is returned when a key is missing or expired.
var ErrNotFound = errors.New("key not found")

// KV wraps a badger database.
type KV struct {
	db *badger.DB
}

// Open opens (creating if needed) a KV stored under dir.
func Open(dir string) (*KV, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	return &KV{db: db}, nil
}

// OpenInMemory opens a KV that lives only as long as the process.
func OpenInMemory() (*KV, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory cache: %w", err)
	}
	return &KV{db: db}, nil
}

// Get returns a copy of the value stored under key.
func (k *KV) Get(key []byte) ([]byte, error) {
	var val []byte
	err := k.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return val, nil
}

// Set stores value under key. A zero ttl stores the entry without expiry.
func (k *KV) Set(key, value []byte, ttl time.Duration) error {
	err := k.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (k *KV) Delete(key []byte) error {
	err := k.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// KeysWithPrefix lists live keys starting with prefix.
func (k *KV) KeysWithPrefix(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := k.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

func (k *KV) Close() error {
	return k.db.Close()
}
