package storage

import "errors"

// Common storage errors
var (
	// ErrItemNotFound indicates that the item has never been written
	ErrItemNotFound = errors.New("item not found")

	// ErrReplicaMismatch indicates that the database belongs to another replica
	ErrReplicaMismatch = errors.New("database belongs to another replica")

	// ErrConflictNotFound indicates that the item is not flagged for manual resolution
	ErrConflictNotFound = errors.New("manual conflict not found")

	// ErrInvalidDraft indicates that an operation passed to Append is incomplete
	ErrInvalidDraft = errors.New("invalid operation draft")
)
