// Package kvtest holds the behaviour every kv.Store backend must share.
package kvtest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/edgesync/internal/kv"
)

// Run executes the conformance suite against stores produced by open.
func Run(t *testing.T, open func(t *testing.T) kv.Store) {
	t.Helper()

	t.Run("get missing key", func(t *testing.T) {
		store := open(t)
		err := store.View(context.Background(), func(r kv.Reader) error {
			_, err := r.Get("items", []byte("nope"))
			return err
		})
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("put get delete", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		require.NoError(t, store.Update(ctx, func(tx kv.Tx) error {
			return tx.Put("items", []byte("a"), []byte("1"))
		}))

		var got []byte
		require.NoError(t, store.View(ctx, func(r kv.Reader) error {
			var err error
			got, err = r.Get("items", []byte("a"))
			return err
		}))
		assert.Equal(t, []byte("1"), got)

		require.NoError(t, store.Update(ctx, func(tx kv.Tx) error {
			return tx.Delete("items", []byte("a"))
		}))
		err := store.View(ctx, func(r kv.Reader) error {
			_, err := r.Get("items", []byte("a"))
			return err
		})
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("buckets are isolated", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		require.NoError(t, store.Update(ctx, func(tx kv.Tx) error {
			if err := tx.Put("items", []byte("k"), []byte("item")); err != nil {
				return err
			}
			return tx.Put("journal", []byte("k"), []byte("op"))
		}))

		var keys []string
		require.NoError(t, store.View(ctx, func(r kv.Reader) error {
			return r.Scan("journal", nil, func(k, v []byte) error {
				keys = append(keys, string(k)+"="+string(v))
				return nil
			})
		}))
		assert.Equal(t, []string{"k=op"}, keys)
	})

	t.Run("scan prefix in key order", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		require.NoError(t, store.Update(ctx, func(tx kv.Tx) error {
			for _, k := range []string{"b/2", "a/1", "b/1", "c/1", "b/10"} {
				if err := tx.Put("idx", []byte(k), []byte("x")); err != nil {
					return err
				}
			}
			return nil
		}))

		var keys []string
		require.NoError(t, store.View(ctx, func(r kv.Reader) error {
			return r.Scan("idx", []byte("b/"), func(k, _ []byte) error {
				keys = append(keys, string(k))
				return nil
			})
		}))
		assert.Equal(t, []string{"b/1", "b/10", "b/2"}, keys)
	})

	t.Run("scan stops early", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		require.NoError(t, store.Update(ctx, func(tx kv.Tx) error {
			for _, k := range []string{"1", "2", "3"} {
				if err := tx.Put("idx", []byte(k), []byte(k)); err != nil {
					return err
				}
			}
			return nil
		}))

		count := 0
		require.NoError(t, store.View(ctx, func(r kv.Reader) error {
			return r.Scan("idx", nil, func(_, _ []byte) error {
				count++
				if count == 2 {
					return kv.ErrStop
				}
				return nil
			})
		}))
		assert.Equal(t, 2, count)
	})

	t.Run("failed update is rolled back", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()
		boom := errors.New("boom")

		err := store.Update(ctx, func(tx kv.Tx) error {
			if err := tx.Put("items", []byte("a"), []byte("1")); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		err = store.View(ctx, func(r kv.Reader) error {
			_, err := r.Get("items", []byte("a"))
			return err
		})
		assert.ErrorIs(t, err, kv.ErrNotFound)
	})

	t.Run("cancelled context", func(t *testing.T) {
		store := open(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := store.Update(ctx, func(tx kv.Tx) error {
			return tx.Put("items", []byte("a"), []byte("1"))
		})
		assert.Error(t, err)
	})
}
