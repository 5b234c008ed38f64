// Package memstore is the in-memory kvstore backend.
//
// Tables are generic B-trees (github.com/google/btree) ordered by the table's
// key comparator with the duplicate comparator breaking ties. Transactions
// use copy-on-write clones: readers capture a consistent snapshot of every
// table at Begin, writers serialize on a single writer slot and commit by
// swapping their clones in. Because writers are serialized, memstore never
// reports kvstore.ErrConflict.
//
// memstore is the only built-in backend that honors custom comparators.
package memstore
