package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/edgesync/internal/kv"
	"github.com/iudanet/edgesync/internal/kv/kvtest"
)

func TestConformance(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		store, err := NewInMemory()
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestPersistentReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := New(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, func(tx kv.Tx) error {
		return tx.Put("meta", []byte("replica_id"), []byte("edge-1"))
	}))
	require.NoError(t, store.Close())

	store, err = New(ctx, dir)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	var got []byte
	require.NoError(t, store.View(ctx, func(r kv.Reader) error {
		got, err = r.Get("meta", []byte("replica_id"))
		return err
	}))
	assert.Equal(t, []byte("edge-1"), got)
}

func TestBucketPrefixDoesNotLeak(t *testing.T) {
	store, err := NewInMemory()
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	// "item" не должен видеть ключи бакета "items"
	require.NoError(t, store.Update(ctx, func(tx kv.Tx) error {
		return tx.Put("items", []byte("a"), []byte("1"))
	}))

	count := 0
	require.NoError(t, store.View(ctx, func(r kv.Reader) error {
		return r.Scan("item", nil, func(_, _ []byte) error {
			count++
			return nil
		})
	}))
	assert.Zero(t, count)
}
