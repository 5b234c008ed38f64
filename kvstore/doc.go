// Package kvstore defines the ordered key-value contract that graphstore
// indices are built on.
//
// A Store manages named tables. Every table is a duplicate-sorted map: a key
// may carry multiple values, kept in sorted order, and the (key, value) pair
// is the unit of storage. Tables are traversed with stateful cursors that
// support absolute positioning (First, Last, Seek, SeekRange, SeekPair,
// SeekPairRange) and relative movement (Next, NextDistinct, Prev).
//
// # Built-in Implementations
//
//   - memstore: in-memory B-tree with copy-on-write snapshots
//   - boltstore: bbolt-backed, single file, single writer
//   - pebblestore: pebble-backed LSM for large write-heavy tables
//
// Implementations must honor the positioning contract: a move that reports
// (false, nil) leaves the cursor where it was. Callers rely on this to probe
// for neighbors without losing their place.
package kvstore
