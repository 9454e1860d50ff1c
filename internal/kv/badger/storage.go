// Package badger implements kv.Store on top of Badger. Buckets are emulated
// with a key prefix "<bucket>\x00".
package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/iudanet/edgesync/internal/kv"
)

// conflictRetries число повторов транзакции при badger.ErrConflict.
const conflictRetries = 5

// Storage represents Badger implementation of kv.Store
type Storage struct {
	db *badger.DB
}

var _ kv.Store = (*Storage)(nil)

// New opens (or creates) a Badger database in dir.
// Writes are synced to disk before Update returns.
func New(ctx context.Context, dir string) (*Storage, error) {
	opts := badger.DefaultOptions(dir)
	opts = opts.WithSyncWrites(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Storage{db: db}, nil
}

// NewInMemory opens a non-persistent Badger instance.
func NewInMemory() (*Storage, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// View runs fn in a read-only transaction.
func (s *Storage) View(ctx context.Context, fn func(r kv.Reader) error) error {
	if s.db == nil {
		return kv.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&tx{txn: txn})
	})
}

// Update runs fn in a read-write transaction, retrying on write conflicts.
func (s *Storage) Update(ctx context.Context, fn func(t kv.Tx) error) error {
	if s.db == nil {
		return kv.ErrClosed
	}

	var err error
	for range conflictRetries {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = s.db.Update(func(txn *badger.Txn) error {
			return fn(&tx{txn: txn})
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("transaction kept conflicting: %w", err)
}

func bucketKey(bucket string, key []byte) []byte {
	out := make([]byte, 0, len(bucket)+1+len(key))
	out = append(out, bucket...)
	out = append(out, 0)
	return append(out, key...)
}

type tx struct {
	txn *badger.Txn
}

func (t *tx) Get(bucket string, key []byte) ([]byte, error) {
	item, err := t.txn.Get(bucketKey(bucket, key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, kv.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key: %w", err)
	}
	return item.ValueCopy(nil)
}

func (t *tx) Scan(bucket string, prefix []byte, fn func(key, value []byte) error) error {
	full := bucketKey(bucket, prefix)
	strip := len(bucket) + 1

	opts := badger.DefaultIteratorOptions
	opts.Prefix = full
	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(full); it.ValidForPrefix(full); it.Next() {
		item := it.Item()
		key := item.Key()[strip:]
		err := item.Value(func(val []byte) error {
			return fn(key, val)
		})
		if err != nil {
			if errors.Is(err, kv.ErrStop) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (t *tx) Put(bucket string, key, value []byte) error {
	if err := t.txn.Set(bucketKey(bucket, key), value); err != nil {
		return fmt.Errorf("failed to put key: %w", err)
	}
	return nil
}

func (t *tx) Delete(bucket string, key []byte) error {
	if err := t.txn.Delete(bucketKey(bucket, key)); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}
