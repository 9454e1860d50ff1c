// Package kv defines the transactional key-value contract the State Store
// and Operation Journal are persisted through. Backends live in subpackages.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key does not exist.
	ErrNotFound = errors.New("key not found")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store is closed")
	// ErrStop can be returned from a Scan callback to end iteration early.
	ErrStop = errors.New("stop scan")
)

// Reader is a read-only view of the store inside a transaction.
type Reader interface {
	// Get returns a copy of the value stored under key in bucket.
	Get(bucket string, key []byte) ([]byte, error)
	// Scan calls fn for every key in bucket starting with prefix, in ascending
	// byte order. key and value are only valid during the call.
	Scan(bucket string, prefix []byte, fn func(key, value []byte) error) error
}

// Tx is a read-write transaction.
type Tx interface {
	Reader
	Put(bucket string, key, value []byte) error
	Delete(bucket string, key []byte) error
}

// Store is a durable transactional key-value store. Update is atomic:
// either every write of fn is persisted or none is. A successful Update
// is durable before it returns.
//
//go:generate moq -out kv_mock.go . Store
type Store interface {
	View(ctx context.Context, fn func(r Reader) error) error
	Update(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}
