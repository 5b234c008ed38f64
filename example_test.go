package graphstore_test

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/graphstore"
	"github.com/hupe1980/graphstore/compress"
	"github.com/hupe1980/graphstore/index"
	"github.com/hupe1980/graphstore/reflink"
	"github.com/hupe1980/graphstore/txn"
)

// Example_memoryBuilder demonstrates creating an in-memory store with the
// fluent builder.
func Example_memoryBuilder() {
	store, err := graphstore.Memory().
		SnapshotCodec(compress.LZ4{}). // Compression for snapshots
		MaxBackgroundJobs(2).          // Bound background work
		Build()
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	fmt.Println("store created successfully")
	// Output: store created successfully
}

// Example_index demonstrates adding entries to a named index and looking
// them up inside transactions.
func Example_index() {
	ctx := context.Background()
	store, _ := graphstore.Memory().Build()
	defer store.Close()

	byName, err := graphstore.OpenIndex(store, "byName", index.String(), index.String())
	if err != nil {
		log.Fatal(err)
	}

	// Writes go through Update: committed on nil return, retried on conflict.
	err = store.Update(ctx, func(tx *txn.Context) error {
		if err := byName.Add(tx, "ada", "lovelace"); err != nil {
			return err
		}
		return byName.Add(tx, "alan", "turing")
	})
	if err != nil {
		log.Fatal(err)
	}

	// Reads go through View.
	_ = store.View(ctx, func(tx *txn.Context) error {
		v, ok, err := byName.FindFirst(tx, "ada")
		if err != nil {
			return err
		}
		fmt.Println(v, ok)
		return nil
	})
	// Output: lovelace true
}

// Example_rangeQuery demonstrates walking an ordered range with a cursor.
func Example_rangeQuery() {
	ctx := context.Background()
	store, _ := graphstore.Memory().Build()
	defer store.Close()

	byAge, _ := graphstore.OpenIndex(store, "byAge", index.Uint64(), index.String())

	_ = store.Update(ctx, func(tx *txn.Context) error {
		for age, name := range map[uint64]string{30: "ada", 40: "alan", 50: "grace"} {
			if err := byAge.Add(tx, age, name); err != nil {
				return err
			}
		}
		return nil
	})

	// All values whose key is at least 40, ascending.
	_ = store.View(ctx, func(tx *txn.Context) error {
		c, err := byAge.FindGTE(tx, 40)
		if err != nil {
			return err
		}
		defer c.Close()
		for {
			ok, err := c.HasNext()
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			v, err := c.Next()
			if err != nil {
				return err
			}
			fmt.Println(v)
		}
		return nil
	})
	// Output:
	// alan
	// grace
}

// Example_referenceLinks demonstrates counted reference links and the
// removal cascade.
func Example_referenceLinks() {
	ctx := context.Background()
	store, _ := graphstore.Memory().Build()
	defer store.Close()

	refs, err := store.RefManager(reflink.NoopAtomStore{})
	if err != nil {
		log.Fatal(err)
	}

	atom := reflink.Handle{0x01}

	_ = store.Update(ctx, func(tx *txn.Context) error {
		if _, err := refs.Acquire(tx, atom, reflink.Hard); err != nil {
			return err
		}
		n, err := refs.Acquire(tx, atom, reflink.Hard)
		if err != nil {
			return err
		}
		fmt.Println("hard links:", n)
		return nil
	})

	_ = store.Update(ctx, func(tx *txn.Context) error {
		d, err := refs.Release(tx, atom, reflink.Hard)
		if err != nil {
			return err
		}
		fmt.Println("after release:", d)
		return nil
	})
	// Output:
	// hard links: 2
	// after release: record retained
}

// Example_snapshot demonstrates streaming a snapshot into a buffer and
// restoring it into a fresh store.
func Example_snapshot() {
	ctx := context.Background()
	src, _ := graphstore.Memory().Build()
	defer src.Close()

	ix, _ := graphstore.OpenIndex(src, "data", index.String(), index.String())
	_ = src.Update(ctx, func(tx *txn.Context) error {
		return ix.Add(tx, "k", "v")
	})

	var buf bytes.Buffer
	if err := src.Snapshot(ctx, &buf); err != nil {
		log.Fatal(err)
	}

	dst, _ := graphstore.Memory().Build()
	defer dst.Close()
	if err := dst.Restore(ctx, &buf); err != nil {
		log.Fatal(err)
	}

	ix2, _ := graphstore.OpenIndex(dst, "data", index.String(), index.String())
	_ = dst.View(ctx, func(tx *txn.Context) error {
		v, ok, err := ix2.FindFirst(tx, "k")
		if err != nil {
			return err
		}
		fmt.Println(v, ok)
		return nil
	})
	// Output: v true
}
