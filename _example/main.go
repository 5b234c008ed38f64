package main

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/hupe1980/graphstore"
	"github.com/hupe1980/graphstore/compress"
	"github.com/hupe1980/graphstore/index"
	"github.com/hupe1980/graphstore/reflink"
	"github.com/hupe1980/graphstore/txn"
)

func main() {
	ctx := context.Background()

	store, err := graphstore.Memory().
		Logger(graphstore.NewTextLogger(slog.LevelInfo)).
		SnapshotCodec(compress.Zstd{}).
		MonitorRecords().
		Build()
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	byName, err := graphstore.OpenIndex(store, "byName", index.String(), index.Uint64())
	if err != nil {
		log.Fatal(err)
	}

	// Populate the index inside one transaction.
	err = store.Update(ctx, func(tx *txn.Context) error {
		for name, id := range map[string]uint64{"ada": 1, "alan": 2, "grace": 3} {
			if err := byName.Add(tx, name, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	// Ordered range query: everything from "alan" upward.
	err = store.View(ctx, func(tx *txn.Context) error {
		c, err := byName.FindGTE(tx, "alan")
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
				return nil
			}
			id, err := c.Next()
			if err != nil {
				return err
			}
			fmt.Printf("id=%d\n", id)
		}
	})
	if err != nil {
		log.Fatal(err)
	}

	// Reference links with removal cascade.
	refs, err := store.RefManager(reflink.NoopAtomStore{})
	if err != nil {
		log.Fatal(err)
	}
	atom := reflink.Handle{0xaa}
	err = store.Update(ctx, func(tx *txn.Context) error {
		if _, err := refs.Acquire(tx, atom, reflink.Hard); err != nil {
			return err
		}
		d, err := refs.Release(tx, atom, reflink.Hard)
		if err != nil {
			return err
		}
		fmt.Println("release:", d)
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	// Snapshot the whole store into a buffer and restore it elsewhere.
	var buf bytes.Buffer
	if err := store.Snapshot(ctx, &buf); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("snapshot: %d bytes\n", buf.Len())

	restored, err := graphstore.Memory().Build()
	if err != nil {
		log.Fatal(err)
	}
	defer restored.Close()
	if err := restored.Restore(ctx, &buf); err != nil {
		log.Fatal(err)
	}

	stats, err := restored.Stats(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("restored: %d entries in %d tables\n", stats.TotalEntries, len(stats.Tables))
}
