package replica

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/edgesync/internal/adapter"
	"github.com/iudanet/edgesync/internal/kv/boltdb"
	"github.com/iudanet/edgesync/internal/models"
	"github.com/iudanet/edgesync/internal/storage"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testRegistry(t *testing.T) *adapter.Registry {
	t.Helper()
	reg, err := adapter.NewRegistry(nil)
	require.NoError(t, err)

	delta, err := adapter.MergeByName(adapter.MergeDelta)
	require.NoError(t, err)

	require.NoError(t, reg.Register(&adapter.Category{Name: "notes", Consistency: models.ConsistencyEventual, Priority: 5}))
	require.NoError(t, reg.Register(&adapter.Category{Name: "settings", Consistency: models.ConsistencyCausal, Priority: 5, Codec: adapter.JSONCodec{}}))
	require.NoError(t, reg.Register(&adapter.Category{Name: "counters", Consistency: models.ConsistencyCausal, Priority: 5, Merge: delta}))
	return reg
}

func newTestReplica(t *testing.T, id string) *Replica {
	t.Helper()
	ctx := context.Background()

	db, err := boltdb.New(ctx, filepath.Join(t.TempDir(), id+".db"), storage.Buckets()...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := storage.New(ctx, db, id, setupTestLogger())
	require.NoError(t, err)

	return New(store, testRegistry(t), setupTestLogger())
}

// exchange выполняет обмен журналами без транспорта: каждая сторона
// разрешает свои непримененные операции вместе с журналом другой.
func exchange(t *testing.T, a, b *Replica) {
	t.Helper()
	ctx := context.Background()

	aOps, err := a.Store().Pending(ctx)
	require.NoError(t, err)
	bOps, err := b.Store().Pending(ctx)
	require.NoError(t, err)

	for _, side := range []struct {
		r       *Replica
		inbound []*models.Operation
	}{{a, bOps}, {b, aOps}} {
		snap, err := side.r.Store().Snapshot(ctx)
		require.NoError(t, err)
		_, err = side.r.Apply(ctx, snap.Unapplied(), side.inbound)
		require.NoError(t, err)
	}
}

func TestReplica_ReadYourWrites(t *testing.T) {
	ctx := context.Background()
	r := newTestReplica(t, "edge")

	_, err := r.Put(ctx, "settings", "theme", []byte(`{ "mode": "dark" }`))
	require.NoError(t, err)

	value, item, err := r.Get(ctx, "theme")
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"dark"}`, string(value))
	assert.Equal(t, "settings", item.Category)

	// значение видно до любой синхронизации
	_, err = r.Store().Item(ctx, "theme")
	assert.ErrorIs(t, err, storage.ErrItemNotFound)

	_, err = r.Delete(ctx, "theme")
	require.NoError(t, err)

	_, _, err = r.Get(ctx, "theme")
	assert.ErrorIs(t, err, storage.ErrItemNotFound)

	_, err = r.Delete(ctx, "theme")
	assert.ErrorIs(t, err, storage.ErrItemNotFound)
}

func TestReplica_PutValidation(t *testing.T) {
	ctx := context.Background()
	r := newTestReplica(t, "edge")

	tests := []struct {
		name     string
		category string
		itemID   string
		value    []byte
	}{
		{name: "unknown category", category: "unknown", itemID: "a", value: []byte("1")},
		{name: "empty item id", category: "notes", itemID: "", value: []byte("1")},
		{name: "invalid json", category: "settings", itemID: "a", value: []byte("{")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Put(ctx, tt.category, tt.itemID, tt.value)
			assert.Error(t, err)
		})
	}

	_, err := r.Put(ctx, "notes", "a", []byte("x"))
	require.NoError(t, err)
	_, err = r.Put(ctx, "counters", "a", []byte("1"))
	assert.Error(t, err, "item cannot change category")
}

func TestReplica_ConvergesAfterExchange(t *testing.T) {
	ctx := context.Background()
	edge := newTestReplica(t, "edge")
	cloud := newTestReplica(t, "cloud")

	_, err := edge.Put(ctx, "notes", "greeting", []byte("hello from edge"))
	require.NoError(t, err)
	_, err = cloud.Put(ctx, "notes", "greeting", []byte("hello from cloud"))
	require.NoError(t, err)
	_, err = edge.Put(ctx, "counters", "visits", []byte("5"))
	require.NoError(t, err)
	_, err = cloud.Put(ctx, "counters", "visits", []byte("3"))
	require.NoError(t, err)
	_, err = cloud.Put(ctx, "notes", "only-cloud", []byte("c"))
	require.NoError(t, err)

	exchange(t, edge, cloud)

	edgeItems, err := edge.Store().Items(ctx)
	require.NoError(t, err)
	cloudItems, err := cloud.Store().Items(ctx)
	require.NoError(t, err)

	require.Len(t, edgeItems, 3)
	require.Len(t, cloudItems, 3)
	for i := range edgeItems {
		assert.True(t, edgeItems[i].Equal(cloudItems[i]), edgeItems[i].ID)
	}

	visits, _, err := edge.Get(ctx, "visits")
	require.NoError(t, err)
	assert.Equal(t, "8", string(visits))

	edgeVV, err := edge.Store().VersionVector(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.VersionVector{"edge": 2, "cloud": 3}, edgeVV)
}

func TestReplica_PrepareIsIdempotent(t *testing.T) {
	ctx := context.Background()
	edge := newTestReplica(t, "edge")
	cloud := newTestReplica(t, "cloud")

	_, err := cloud.Put(ctx, "counters", "visits", []byte("2"))
	require.NoError(t, err)
	inbound, err := cloud.Store().Pending(ctx)
	require.NoError(t, err)

	first, err := edge.Apply(ctx, nil, inbound)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Applied)

	before, err := edge.Store().Dump(ctx)
	require.NoError(t, err)

	again, err := edge.Apply(ctx, nil, append(inbound, inbound...))
	require.NoError(t, err)
	assert.Zero(t, again.Applied)
	assert.Empty(t, again.Update.Items)

	after, err := edge.Store().Dump(ctx)
	require.NoError(t, err)
	assert.Equal(t, before["items"], after["items"])
	assert.Equal(t, before["applied"], after["applied"])
}

func TestReplica_DeferredOpsHoldBackVector(t *testing.T) {
	ctx := context.Background()
	edge := newTestReplica(t, "edge")

	// вторая операция cloud зависит от операции edge, которой у edge нет
	inbound := []*models.Operation{
		{ID: "c1", ItemID: "a", Category: "counters", Origin: "cloud", Kind: models.OpPut, Payload: []byte("1"), Seq: 1, Timestamp: 10, Deps: models.VersionVector{}},
		{ID: "c2", ItemID: "b", Category: "counters", Origin: "cloud", Kind: models.OpPut, Payload: []byte("1"), Seq: 2, Timestamp: 20, Deps: models.VersionVector{"other": 7}},
		{ID: "c3", ItemID: "c", Category: "counters", Origin: "cloud", Kind: models.OpPut, Payload: []byte("1"), Seq: 3, Timestamp: 30, Deps: models.VersionVector{}},
	}

	changes, err := edge.Apply(ctx, nil, inbound)
	require.NoError(t, err)
	require.Len(t, changes.Deferred, 1)
	assert.Equal(t, "c2", changes.Deferred[0].ID)
	assert.Equal(t, 2, changes.Applied)

	vv, err := edge.Store().VersionVector(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), vv.Get("cloud"), "vector must stop before the deferred op")
}

func TestReplica_ManualConflictLifecycle(t *testing.T) {
	ctx := context.Background()
	edge := newTestReplica(t, "edge")

	inbound := []*models.Operation{
		{ID: "e1", ItemID: "visits", Category: "counters", Origin: "x", Kind: models.OpPut, Payload: []byte("1"), Seq: 1, Timestamp: 10, Deps: models.VersionVector{}},
		{ID: "c1", ItemID: "visits", Category: "counters", Origin: "y", Kind: models.OpPut, Payload: []byte("many"), Seq: 1, Timestamp: 10, Deps: models.VersionVector{}},
	}
	changes, err := edge.Apply(ctx, nil, inbound)
	require.NoError(t, err)
	assert.Equal(t, 1, changes.Manual)

	conflicts, err := edge.ManualConflicts(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "visits", conflicts[0].ItemID)

	require.NoError(t, edge.ResolveManual(ctx, "visits", []byte("10")))

	conflicts, err = edge.ManualConflicts(ctx)
	require.NoError(t, err)
	assert.Empty(t, conflicts)

	value, _, err := edge.Get(ctx, "visits")
	require.NoError(t, err)
	assert.Equal(t, "10", string(value))

	assert.ErrorIs(t, edge.ResolveManual(ctx, "visits", nil), storage.ErrConflictNotFound)
}

func TestReplica_ListAndCompact(t *testing.T) {
	ctx := context.Background()
	edge := newTestReplica(t, "edge")

	for _, id := range []string{"b", "a", "c"} {
		_, err := edge.Put(ctx, "notes", id, []byte(id))
		require.NoError(t, err)
	}
	_, err := edge.Delete(ctx, "c")
	require.NoError(t, err)

	items, err := edge.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "b", items[1].ID)

	snap, err := edge.Store().Snapshot(ctx)
	require.NoError(t, err)
	_, err = edge.Apply(ctx, snap.Unapplied(), nil)
	require.NoError(t, err)

	n, err := edge.Compact(ctx, models.VersionVector{"edge": 2})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending, err := edge.Store().Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	stats, err := edge.PendingStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Depth)
}
