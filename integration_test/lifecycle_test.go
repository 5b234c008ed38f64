package integration_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphstore"
	"github.com/hupe1980/graphstore/event"
	"github.com/hupe1980/graphstore/index"
	"github.com/hupe1980/graphstore/reflink"
	"github.com/hupe1980/graphstore/txn"
)

// backendCase builds a store and, when the backend persists, reopens one
// over the same location.
type backendCase struct {
	name    string
	build   func(t *testing.T) *graphstore.Store
	reopen  func(t *testing.T) *graphstore.Store
	durable bool
}

func backendCases(t *testing.T) []backendCase {
	boltPath := filepath.Join(t.TempDir(), "graph.db")
	pebbleDir := filepath.Join(t.TempDir(), "pebble")

	open := func(build func() (*graphstore.Store, error)) func(t *testing.T) *graphstore.Store {
		return func(t *testing.T) *graphstore.Store {
			s, err := build()
			require.NoError(t, err)
			return s
		}
	}

	return []backendCase{
		{
			name:  "Memory",
			build: open(graphstore.Memory().Build),
		},
		{
			name:    "Bolt",
			build:   open(graphstore.Bolt(boltPath).Build),
			reopen:  open(graphstore.Bolt(boltPath).Build),
			durable: true,
		},
		{
			name:    "Pebble",
			build:   open(graphstore.Pebble(pebbleDir).Build),
			reopen:  open(graphstore.Pebble(pebbleDir).Build),
			durable: true,
		},
	}
}

func TestIndexLifecycle(t *testing.T) {
	ctx := context.Background()

	for _, tc := range backendCases(t) {
		t.Run(tc.name, func(t *testing.T) {
			store := tc.build(t)

			ix, err := graphstore.OpenIndex(store, "people", index.String(), index.Uint64())
			require.NoError(t, err)

			// 1) Populate.
			err = store.Update(ctx, func(tx *txn.Context) error {
				for i, name := range []string{"ada", "alan", "grace"} {
					if err := ix.Add(tx, name, uint64(i+1)); err != nil {
						return err
					}
				}
				return ix.Add(tx, "ada", 99)
			})
			require.NoError(t, err)

			// 2) Point and duplicate reads.
			err = store.View(ctx, func(tx *txn.Context) error {
				v, ok, err := ix.FindFirst(tx, "ada")
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, uint64(1), v)

				n, err := ix.CountKey(tx, "ada")
				require.NoError(t, err)
				assert.Equal(t, uint64(2), n)
				return nil
			})
			require.NoError(t, err)

			// 3) Remove one duplicate, then the rest of the key.
			err = store.Update(ctx, func(tx *txn.Context) error {
				if err := ix.RemoveEntry(tx, "ada", 99); err != nil {
					return err
				}
				return ix.RemoveAll(tx, "alan")
			})
			require.NoError(t, err)

			err = store.View(ctx, func(tx *txn.Context) error {
				n, err := ix.Count(tx)
				require.NoError(t, err)
				assert.Equal(t, uint64(2), n)

				_, ok, err := ix.FindFirst(tx, "alan")
				require.NoError(t, err)
				assert.False(t, ok)
				return nil
			})
			require.NoError(t, err)

			require.NoError(t, store.Close())

			// 4) Durable backends see the data again after reopening.
			if !tc.durable {
				return
			}
			store = tc.reopen(t)
			defer store.Close() //nolint:errcheck

			ix, err = graphstore.OpenIndex(store, "people", index.String(), index.Uint64())
			require.NoError(t, err)
			err = store.View(ctx, func(tx *txn.Context) error {
				v, ok, err := ix.FindFirst(tx, "grace")
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, uint64(3), v)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestConcurrentUpdates(t *testing.T) {
	ctx := context.Background()

	for _, tc := range backendCases(t) {
		t.Run(tc.name, func(t *testing.T) {
			store := tc.build(t)
			defer store.Close() //nolint:errcheck

			ix, err := graphstore.OpenIndex(store, "counters", index.String(), index.Uint64())
			require.NoError(t, err)

			const workers = 8
			const perWorker = 25

			var wg sync.WaitGroup
			errs := make([]error, workers)
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; i < perWorker; i++ {
						key := fmt.Sprintf("w%d-%d", w, i)
						errs[w] = store.Update(ctx, func(tx *txn.Context) error {
							return ix.Add(tx, key, uint64(i))
						})
						if errs[w] != nil {
							return
						}
					}
				}(w)
			}
			wg.Wait()
			for w, err := range errs {
				require.NoError(t, err, "worker %d", w)
			}

			err = store.View(ctx, func(tx *txn.Context) error {
				n, err := ix.Count(tx)
				require.NoError(t, err)
				assert.Equal(t, uint64(workers*perWorker), n)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestReferenceCascade(t *testing.T) {
	ctx := context.Background()

	for _, tc := range backendCases(t) {
		t.Run(tc.name, func(t *testing.T) {
			store := tc.build(t)
			defer store.Close() //nolint:errcheck

			var removed []reflink.Handle
			atoms := &captureAtomStore{removed: &removed}

			refs, err := store.RefManager(atoms)
			require.NoError(t, err)

			atom := reflink.Handle{0x42}

			// Removal requests are vetoed while a hard reference lives.
			err = store.Update(ctx, func(tx *txn.Context) error {
				if _, err := refs.Acquire(tx, atom, reflink.Hard); err != nil {
					return err
				}
				res, err := store.Bus().PublishRemoveRequest(event.RemoveRequest{Atom: atom, Tx: tx})
				require.NoError(t, err)
				assert.Equal(t, event.Cancel, res)
				return nil
			})
			require.NoError(t, err)

			// Releasing the last hard reference removes the atom.
			err = store.Update(ctx, func(tx *txn.Context) error {
				d, err := refs.Release(tx, atom, reflink.Hard)
				if err != nil {
					return err
				}
				assert.Equal(t, reflink.AtomRemoved, d)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, []reflink.Handle{atom}, removed)
		})
	}
}

type captureAtomStore struct {
	removed *[]reflink.Handle
}

func (c *captureAtomStore) RemoveAtom(_ *txn.Context, h reflink.Handle) error {
	*c.removed = append(*c.removed, h)
	return nil
}

func (c *captureAtomStore) SetManaged(*txn.Context, reflink.Handle) error { return nil }
