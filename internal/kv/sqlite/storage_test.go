package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/edgesync/internal/kv"
	"github.com/iudanet/edgesync/internal/kv/kvtest"
)

func createTestStorage(t *testing.T) kv.Store {
	t.Helper()
	store, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestConformance(t *testing.T) {
	kvtest.Run(t, createTestStorage)
}

func TestNew_RunsMigrations(t *testing.T) {
	store, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	var name string
	err = store.DB().QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'kv'`).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "kv", name)
}

func TestPut_Overwrites(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	for _, v := range []string{"1", "2"} {
		require.NoError(t, store.Update(ctx, func(tx kv.Tx) error {
			return tx.Put("meta", []byte("seq"), []byte(v))
		}))
	}

	var got []byte
	require.NoError(t, store.View(ctx, func(r kv.Reader) error {
		var err error
		got, err = r.Get("meta", []byte("seq"))
		return err
	}))
	assert.Equal(t, []byte("2"), got)
}
