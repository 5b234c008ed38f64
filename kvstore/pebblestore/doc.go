// Package pebblestore implements the kvstore contract on pebble.
//
// Pebble is a flat keyspace, so each (table, key, value) entry is packed
// into one composite pebble key whose byte order matches the contract's
// (key, value) order. Writers run on indexed batches so a transaction reads
// its own writes; readers run on pebble snapshots. Pebble's key order is
// fixed, so tables with custom comparators are rejected.
package pebblestore
