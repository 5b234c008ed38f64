package kvstore

import (
	"bytes"
	"context"
	"errors"
)

var (
	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("kvstore: store is closed")

	// ErrTxnDone is returned when a transaction handle is used after
	// Commit or Abort.
	ErrTxnDone = errors.New("kvstore: transaction has ended")

	// ErrReadOnlyTxn is returned when a write is attempted through a
	// read-only transaction.
	ErrReadOnlyTxn = errors.New("kvstore: transaction is read-only")

	// ErrCursorClosed is returned when a closed cursor is moved or read.
	ErrCursorClosed = errors.New("kvstore: cursor is closed")

	// ErrNotPositioned is returned by cursor reads and deletes before the
	// first successful positioning call.
	ErrNotPositioned = errors.New("kvstore: cursor is not positioned")

	// ErrConflict signals a write-write conflict detected at commit.
	// Transactions failing with ErrConflict are safe to retry.
	ErrConflict = errors.New("kvstore: transaction conflict")

	// ErrComparatorUnsupported is returned by backends whose on-disk order
	// is fixed when a table is opened with a custom comparator.
	ErrComparatorUnsupported = errors.New("kvstore: backend does not support custom comparators")
)

// Comparator imposes a total order on byte strings. It returns a negative
// number when a sorts before b, zero when they are equal and a positive
// number otherwise.
type Comparator func(a, b []byte) int

// DefaultComparator is lexicographic unsigned-byte order.
var DefaultComparator Comparator = bytes.Compare

// TableOptions configure a table at creation time. The comparators become
// part of the table's physical format: reopening an existing table with a
// different order is undefined.
type TableOptions struct {
	// Comparator orders keys. Nil means DefaultComparator.
	Comparator Comparator

	// DupComparator orders the duplicate values of one key.
	// Nil means DefaultComparator.
	DupComparator Comparator
}

// Store is a transactional collection of named duplicate-sorted tables.
// Implementations must be safe for concurrent use.
type Store interface {
	// Begin starts a transaction. A writable transaction may block until
	// the backend's writer slot is free; ctx cancels the wait.
	Begin(ctx context.Context, writable bool) (Txn, error)

	// Table binds the named table, creating it if it does not exist.
	// opts may be nil. Binding an existing table is idempotent.
	Table(name string, opts *TableOptions) (Table, error)

	// Tables lists the names of all tables in the store.
	Tables() ([]string, error)

	// Close releases the store. In-flight transactions fail afterwards.
	Close() error
}

// Txn is a single transaction. It is not safe for concurrent use.
type Txn interface {
	// Commit makes the transaction's writes durable.
	Commit() error

	// Abort discards the transaction's writes. Aborting a finished
	// transaction is a no-op.
	Abort() error

	// Writable reports whether the transaction accepts writes.
	Writable() bool
}

// Table is one duplicate-sorted table. Methods take the transaction
// explicitly; a table handle itself carries no transaction state.
type Table interface {
	// Name returns the table name.
	Name() string

	// Get returns the smallest duplicate stored under key.
	Get(txn Txn, key []byte) ([]byte, bool, error)

	// Put inserts the (key, val) pair. Inserting a pair that already
	// exists is a no-op, not an error.
	Put(txn Txn, key, val []byte) error

	// Delete removes exactly the (key, val) pair. It reports whether the
	// pair existed.
	Delete(txn Txn, key, val []byte) (bool, error)

	// DeleteAll removes every value stored under key. It reports whether
	// the key existed.
	DeleteAll(txn Txn, key []byte) (bool, error)

	// Count returns the total number of (key, value) entries.
	Count(txn Txn) (uint64, error)

	// CountKey returns the number of duplicates stored under key,
	// zero if the key is absent.
	CountKey(txn Txn, key []byte) (uint64, error)

	// OpenCursor opens a cursor over the table. The caller must close it
	// before the transaction ends.
	OpenCursor(txn Txn) (Cursor, error)
}

// Cursor is a stateful position within one table's ordered entries.
//
// Every positioning method reports whether an entry was found. On (false,
// nil) the cursor keeps its previous position (possibly still unpositioned).
// Cursors are not safe for concurrent use and become invalid when their
// transaction ends.
type Cursor interface {
	// First moves to the smallest entry.
	First() (bool, error)

	// Last moves to the largest entry.
	Last() (bool, error)

	// Seek moves to the first duplicate of exactly key.
	Seek(key []byte) (bool, error)

	// SeekRange moves to the first entry whose key is >= key.
	SeekRange(key []byte) (bool, error)

	// SeekPair moves to exactly the (key, val) entry.
	SeekPair(key, val []byte) (bool, error)

	// SeekPairRange moves, within the duplicates of exactly key, to the
	// first value >= val.
	SeekPairRange(key, val []byte) (bool, error)

	// Next moves to the following entry.
	Next() (bool, error)

	// NextDistinct moves to the first entry of the next distinct key,
	// skipping the remaining duplicates of the current one.
	NextDistinct() (bool, error)

	// Prev moves to the preceding entry.
	Prev() (bool, error)

	// Key returns a copy of the current entry's key. It returns nil when
	// the cursor is not positioned.
	Key() []byte

	// Value returns a copy of the current entry's value, nil when not
	// positioned.
	Value() []byte

	// CountDup returns the number of duplicates of the current entry's key.
	CountDup() (uint64, error)

	// Delete removes the current entry. The cursor logically rests between
	// its neighbors: a following Next or Prev behaves as if the entry had
	// not existed.
	Delete() error

	// Close releases the cursor. Close is idempotent.
	Close() error
}

// CompareOrDefault returns c, or DefaultComparator when c is nil.
func CompareOrDefault(c Comparator) Comparator {
	if c == nil {
		return DefaultComparator
	}
	return c
}
