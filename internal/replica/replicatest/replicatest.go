// Package replicatest builds replicas backed by temporary stores for tests.
package replicatest

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iudanet/edgesync/internal/adapter"
	"github.com/iudanet/edgesync/internal/models"
	"github.com/iudanet/edgesync/internal/replica"
	"github.com/iudanet/edgesync/internal/storage"
)

// Category names registered by Registry.
const (
	Notes    = "notes"    // eventual, LWW
	Settings = "settings" // causal, LWW, JSON
	Counters = "counters" // causal, delta merge
	Orders   = "orders"   // strong, LWW
)

// Logger returns a logger that drops everything below Error.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Registry returns the category set shared by replica tests.
func Registry(t *testing.T) *adapter.Registry {
	t.Helper()
	reg, err := adapter.NewRegistry(nil)
	require.NoError(t, err)

	delta, err := adapter.MergeByName(adapter.MergeDelta)
	require.NoError(t, err)

	for _, c := range []*adapter.Category{
		{Name: Notes, Consistency: models.ConsistencyEventual, Priority: 3, StalenessTolerance: time.Minute},
		{Name: Settings, Consistency: models.ConsistencyCausal, Priority: 5, Codec: adapter.JSONCodec{}},
		{Name: Counters, Consistency: models.ConsistencyCausal, Priority: 5, Merge: delta, MergeName: adapter.MergeDelta},
		{Name: Orders, Consistency: models.ConsistencyStrong, Priority: 9},
	} {
		require.NoError(t, reg.Register(c))
	}
	return reg
}

// New opens a replica with the given backend in a temp directory.
func New(t *testing.T, id, backend string, opts ...storage.Option) *replica.Replica {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), id+".db")
	db, err := storage.OpenBackend(ctx, backend, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := storage.New(ctx, db, id, Logger(), opts...)
	require.NoError(t, err)

	return replica.New(store, Registry(t), Logger())
}

// Items returns committed items of r keyed by ID.
func Items(t *testing.T, r *replica.Replica) map[string]*models.DataItem {
	t.Helper()
	items, err := r.Store().Items(context.Background())
	require.NoError(t, err)

	out := make(map[string]*models.DataItem, len(items))
	for _, item := range items {
		out[item.ID] = item
	}
	return out
}

// RequireConverged fails unless a and b hold identical committed items.
func RequireConverged(t *testing.T, a, b *replica.Replica) {
	t.Helper()
	ai, bi := Items(t, a), Items(t, b)
	require.Len(t, bi, len(ai))
	for id, item := range ai {
		other, ok := bi[id]
		require.True(t, ok, "item %s missing on %s", id, b.ID())
		require.True(t, item.Equal(other), "item %s diverged: %+v vs %+v", id, item, other)
	}
}
