// Package graphstore provides an embedded, transactional, duplicate-sorted
// index engine for Go.
//
// Graphstore keeps ordered key/value indices where one key holds many
// values, exposes bidirectional range cursors over them, counts reference
// links to atoms with mode-specific removal policies, and snapshots the
// whole store to a compressed stream. Three storage backends share one
// contract: an in-memory copy-on-write B-tree, bbolt, and pebble.
//
// # Quick Start
//
//	ctx := context.Background()
//	store, _ := graphstore.Memory().Build()
//	defer store.Close()
//
//	idx, _ := graphstore.OpenIndex(store, "byName", index.String(), index.UUID())
//
//	_ = store.Update(ctx, func(tx *txn.Context) error {
//	    return idx.Add(tx, "alice", handle)
//	})
//
//	_ = store.View(ctx, func(tx *txn.Context) error {
//	    c, err := idx.FindGTE(tx, "alice")
//	    if err != nil {
//	        return err
//	    }
//	    defer c.Close()
//	    for v, err := range cursor.All(c) {
//	        ...
//	    }
//	    return nil
//	})
//
// # Backends
//
//	store, _ := graphstore.Memory().Build()
//	store, _ := graphstore.Bolt("./data/graph.db").Build()
//	store, _ := graphstore.Pebble("./data/graph").Build()
//
// # Durability Model
//
// Every operation runs inside an explicit transaction. Update functions
// retry automatically when the backend reports a conflict; at commit the
// transaction's cursors are closed and the backend makes the writes
// durable according to its own discipline.
//
// # Key Features
//
//   - Duplicate-sorted indices with typed key/value converters
//   - Ordered range queries (GT/GTE/LT/LTE) with bidirectional cursors
//   - Counted reference links (hard/symbolic/floating) with removal veto
//   - Pluggable backends: memory, bbolt, pebble
//   - Compressed streaming snapshots (zstd, lz4) with IO throttling
//   - Transaction monitor with retry metrics
package graphstore
