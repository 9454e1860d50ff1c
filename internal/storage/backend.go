package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iudanet/edgesync/internal/kv"
	"github.com/iudanet/edgesync/internal/kv/badger"
	"github.com/iudanet/edgesync/internal/kv/boltdb"
	"github.com/iudanet/edgesync/internal/kv/sqlite"
)

// Backend names
const (
	BackendBolt   = "bolt"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
)

// OpenBackend открывает kv хранилище выбранного типа по пути path.
// Для badger path является каталогом, для остальных файлом.
func OpenBackend(ctx context.Context, backend, path string) (kv.Store, error) {
	if backend != BackendBadger {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	var (
		db  kv.Store
		err error
	)
	switch backend {
	case BackendBolt, "":
		db, err = boltdb.New(ctx, path, Buckets()...)
	case BackendBadger:
		db, err = badger.New(ctx, path)
	case BackendSQLite:
		db, err = sqlite.New(ctx, path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
	if err != nil {
		return nil, err
	}
	return db, nil
}
