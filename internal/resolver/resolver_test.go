package resolver

import (
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/edgesync/internal/adapter"
	"github.com/iudanet/edgesync/internal/models"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	reg, err := adapter.NewRegistry(nil)
	require.NoError(t, err)

	delta, err := adapter.MergeByName(adapter.MergeDelta)
	require.NoError(t, err)

	require.NoError(t, reg.Register(&adapter.Category{Name: "notes", Consistency: models.ConsistencyEventual, Priority: 5}))
	require.NoError(t, reg.Register(&adapter.Category{Name: "counters", Consistency: models.ConsistencyCausal, Priority: 5, Merge: delta}))
	require.NoError(t, reg.Register(&adapter.Category{Name: "orders", Consistency: models.ConsistencyStrong, Priority: 9}))

	return New(reg, setupTestLogger())
}

func mkOp(category, origin string, seq uint64, ts int64, kind models.OpKind, payload string, deps models.VersionVector) *models.Operation {
	if deps == nil {
		deps = models.VersionVector{}
	}
	return &models.Operation{
		ID:        fmt.Sprintf("%s-%d", origin, seq),
		ItemID:    "x",
		Category:  category,
		Origin:    origin,
		Kind:      kind,
		Payload:   []byte(payload),
		Seq:       seq,
		Timestamp: ts,
		Deps:      deps,
	}
}

func TestResolve_LWWConvergesRegardlessOfDelivery(t *testing.T) {
	r := newTestResolver(t)
	a := mkOp("notes", "edge", 1, 100, models.OpPut, "from-edge", nil)
	b := mkOp("notes", "cloud", 1, 200, models.OpPut, "from-cloud", nil)

	// одна реплика получает обе операции сразу
	together, err := r.Resolve(nil, []*models.Operation{a, b})
	require.NoError(t, err)

	// другая сначала применила свою, затем чужую
	first, err := r.Resolve(nil, []*models.Operation{b})
	require.NoError(t, err)
	second, err := r.Resolve(first.Item, []*models.Operation{a})
	require.NoError(t, err)

	assert.Equal(t, []byte("from-cloud"), together.Item.Value)
	assert.True(t, together.Item.Equal(second.Item))
	assert.Equal(t, models.VersionVector{"edge": 1, "cloud": 1}, second.Item.Version)
}

func TestResolve_DeltaMergeSumsConcurrentIncrements(t *testing.T) {
	r := newTestResolver(t)
	base := mkOp("counters", "cloud", 1, 50, models.OpPut, "10", nil)
	edge := mkOp("counters", "edge", 1, 100, models.OpPut, "1", models.VersionVector{"cloud": 1})
	cloud := mkOp("counters", "cloud", 2, 100, models.OpPut, "1", models.VersionVector{"cloud": 1})

	start, err := r.Resolve(nil, []*models.Operation{base})
	require.NoError(t, err)

	res, err := r.Resolve(start.Item, []*models.Operation{edge, cloud})
	require.NoError(t, err)

	assert.Equal(t, "12", string(res.Item.Value))
	assert.Equal(t, 1, res.Conflicts)
	assert.Nil(t, res.Manual)
	assert.Len(t, res.Applied, 2)
}

func TestResolve_MergeFailureFlagsItem(t *testing.T) {
	r := newTestResolver(t)
	a := mkOp("counters", "edge", 1, 100, models.OpPut, "1", nil)
	b := mkOp("counters", "cloud", 1, 100, models.OpPut, "one", nil)

	res, err := r.Resolve(nil, []*models.Operation{a, b})
	require.NoError(t, err)

	require.NotNil(t, res.Manual)
	assert.Equal(t, "x", res.Manual.ItemID)
	assert.ElementsMatch(t, []string{"edge-1", "cloud-1"}, res.Manual.OpIDs)
	// значение выбрано по LWW: при равных метках побеждает больший origin
	assert.Equal(t, "1", string(res.Item.Value))
	assert.Len(t, res.Applied, 2)
}

func TestResolve_Idempotent(t *testing.T) {
	r := newTestResolver(t)
	ops := []*models.Operation{
		mkOp("counters", "edge", 1, 100, models.OpPut, "2", nil),
		mkOp("counters", "cloud", 1, 110, models.OpPut, "3", nil),
	}

	first, err := r.Resolve(nil, ops)
	require.NoError(t, err)

	// повтор того же набора, в том числе с дублями
	again, err := r.Resolve(first.Item, append(ops, ops[0]))
	require.NoError(t, err)
	assert.Nil(t, again.Item)
	assert.Empty(t, again.Applied)

	dup, err := r.Resolve(nil, append(ops, ops...))
	require.NoError(t, err)
	assert.True(t, first.Item.Equal(dup.Item))
	assert.Equal(t, "5", string(dup.Item.Value))
}

func TestResolve_CausalDefersUntilDependencyArrives(t *testing.T) {
	r := newTestResolver(t)
	cause := mkOp("counters", "edge", 1, 100, models.OpPut, "1", nil)
	effect := mkOp("counters", "cloud", 1, 90, models.OpPut, "5", models.VersionVector{"edge": 1})

	res, err := r.Resolve(nil, []*models.Operation{effect})
	require.NoError(t, err)
	assert.Nil(t, res.Item)
	require.Len(t, res.Deferred, 1)

	res, err = r.Resolve(nil, []*models.Operation{effect, cause})
	require.NoError(t, err)
	assert.Empty(t, res.Deferred)
	assert.Equal(t, "6", string(res.Item.Value))
	assert.Equal(t, 0, res.Conflicts)
}

func TestResolve_DeleteThenConcurrentIncrement(t *testing.T) {
	r := newTestResolver(t)
	put := mkOp("counters", "edge", 1, 100, models.OpPut, "1", nil)
	del := mkOp("counters", "cloud", 1, 300, models.OpDelete, "", models.VersionVector{"edge": 1})
	late := mkOp("counters", "edge", 2, 200, models.OpPut, "2", models.VersionVector{"edge": 1})

	// порядок доставки: put, del, late
	a, err := r.Resolve(nil, []*models.Operation{put})
	require.NoError(t, err)
	a, err = r.Resolve(a.Item, []*models.Operation{del})
	require.NoError(t, err)
	a, err = r.Resolve(a.Item, []*models.Operation{late})
	require.NoError(t, err)

	// порядок доставки: put, late, del
	b, err := r.Resolve(nil, []*models.Operation{put})
	require.NoError(t, err)
	b, err = r.Resolve(b.Item, []*models.Operation{late})
	require.NoError(t, err)
	b, err = r.Resolve(b.Item, []*models.Operation{del})
	require.NoError(t, err)

	assert.True(t, a.Item.Tombstone)
	assert.True(t, a.Item.Equal(b.Item))
}

func TestResolve_MergeIndependentOfDeliverySchedule(t *testing.T) {
	r := newTestResolver(t)
	put := mkOp("counters", "edge", 1, 100, models.OpPut, "1", nil)
	del := mkOp("counters", "cloud", 1, 200, models.OpDelete, "", models.VersionVector{"edge": 1})
	late := mkOp("counters", "edge", 2, 300, models.OpPut, "2", models.VersionVector{"edge": 1})

	tests := []struct {
		name    string
		batches [][]*models.Operation
	}{
		{name: "put, del, late", batches: [][]*models.Operation{{put}, {del}, {late}}},
		{name: "put, late, del", batches: [][]*models.Operation{{put}, {late}, {del}}},
		{name: "one batch", batches: [][]*models.Operation{{late, del, put}}},
		{name: "put with late, then del", batches: [][]*models.Operation{{put, late}, {del}}},
		{name: "put, then del with late", batches: [][]*models.Operation{{put}, {late, del}}},
	}

	var want *models.DataItem
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var item *models.DataItem
			for _, batch := range tt.batches {
				res, err := r.Resolve(item, batch)
				require.NoError(t, err)
				require.NotNil(t, res.Item)
				item = res.Item
			}

			assert.Equal(t, "2", string(item.Value))
			assert.False(t, item.Tombstone)
			assert.Equal(t, late.Stamp(), item.Stamp)
			assert.Equal(t, del.Stamp(), item.Floor)
			if want == nil {
				want = item
				return
			}
			assert.True(t, want.Equal(item), "item differs from first schedule")
		})
	}
}

func TestResolve_LateDeleteDropsOlderContributions(t *testing.T) {
	r := newTestResolver(t)
	a := mkOp("counters", "edge", 1, 100, models.OpPut, "4", nil)
	b := mkOp("counters", "cloud", 1, 150, models.OpPut, "6", nil)
	del := mkOp("counters", "cloud", 2, 400, models.OpDelete, "", models.VersionVector{"cloud": 1})

	res, err := r.Resolve(nil, []*models.Operation{a, b})
	require.NoError(t, err)
	assert.Equal(t, "10", string(res.Item.Value))
	assert.Len(t, res.Item.Contributions, 2)

	res, err = r.Resolve(res.Item, []*models.Operation{del})
	require.NoError(t, err)
	assert.True(t, res.Item.Tombstone)
	assert.Nil(t, res.Item.Value)
	assert.Empty(t, res.Item.Contributions)
	assert.Equal(t, del.Stamp(), res.Item.Stamp)

	// запись старше удаления не оживляет элемент
	stale := mkOp("counters", "edge", 2, 300, models.OpPut, "1", nil)
	res, err = r.Resolve(res.Item, []*models.Operation{stale})
	require.NoError(t, err)
	assert.True(t, res.Item.Tombstone)
	assert.Equal(t, uint64(2), res.Item.Version.Get("edge"))
}

func TestResolve_StrongAppliesSerially(t *testing.T) {
	r := newTestResolver(t)
	a := mkOp("orders", "edge", 1, 100, models.OpPut, "qty=1", nil)
	b := mkOp("orders", "cloud", 1, 150, models.OpPut, "qty=2", nil)

	res, err := r.Resolve(nil, []*models.Operation{b, a})
	require.NoError(t, err)

	assert.Equal(t, "qty=2", string(res.Item.Value))
	assert.Zero(t, res.Conflicts, "strong groups are singletons")
}

func TestResolve_RejectsMixedItems(t *testing.T) {
	r := newTestResolver(t)
	a := mkOp("notes", "edge", 1, 100, models.OpPut, "v", nil)
	b := mkOp("notes", "edge", 2, 100, models.OpPut, "v", nil)
	b.ItemID = "other"

	_, err := r.Resolve(nil, []*models.Operation{a, b})
	assert.Error(t, err)
}
