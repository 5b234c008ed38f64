package index

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/hupe1980/graphstore/cursor"
	"github.com/hupe1980/graphstore/kvstore"
	"github.com/hupe1980/graphstore/txn"
)

// tablePrefix namespaces index tables within the store.
const tablePrefix = "idx_"

// Options configure an index at open time.
type Options struct {
	// Comparator orders keys. Nil means byte-lexicographic order. The
	// comparator is part of the table's physical format and must not
	// change for the life of the on-disk representation.
	Comparator kvstore.Comparator

	// DupComparator orders the duplicate values of one key. Nil means
	// byte-lexicographic order.
	DupComparator kvstore.Comparator

	// Logger receives open/close and query events. Nil discards them.
	Logger *slog.Logger
}

// Index is a duplicate-sorted index over one kvstore table. Keys are not
// unique; (key, value) pairs are. All operations run under the caller's
// transaction context.
type Index[K, V any] struct {
	name    string
	table   kvstore.Table
	keyConv Converter[K]
	valConv Converter[V]
	keyCmp  kvstore.Comparator
	dupCmp  kvstore.Comparator
	logger  *slog.Logger
	closed  atomic.Bool
}

// Open binds (or creates) the index's table in the store.
func Open[K, V any](store kvstore.Store, name string, keyConv Converter[K], valConv Converter[V], optFns ...func(*Options)) (*Index[K, V], error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	table, err := store.Table(tablePrefix+name, &kvstore.TableOptions{
		Comparator:    opts.Comparator,
		DupComparator: opts.DupComparator,
	})
	if err != nil {
		return nil, fmt.Errorf("index: open %q: %w", name, err)
	}
	opts.Logger.Debug("index opened", "index", name)
	return &Index[K, V]{
		name:    name,
		table:   table,
		keyConv: keyConv,
		valConv: valConv,
		keyCmp:  kvstore.CompareOrDefault(opts.Comparator),
		dupCmp:  kvstore.CompareOrDefault(opts.DupComparator),
		logger:  opts.Logger,
	}, nil
}

// Name returns the index name.
func (ix *Index[K, V]) Name() string { return ix.name }

// Close marks the index closed. Further operations fail fast with
// ErrIndexClosed. Close is idempotent.
func (ix *Index[K, V]) Close() error {
	if !ix.closed.Swap(true) {
		ix.logger.Debug("index closed", "index", ix.name)
	}
	return nil
}

func (ix *Index[K, V]) checkOpen() error {
	if ix.closed.Load() {
		return fmt.Errorf("%w: %q", ErrIndexClosed, ix.name)
	}
	return nil
}

func (ix *Index[K, V]) encodeKey(key K) ([]byte, error) {
	kb, err := ix.keyConv.Encode(key)
	if err != nil {
		return nil, storageErr(ix.name, "encode key", err)
	}
	return kb, nil
}

func (ix *Index[K, V]) encodePair(key K, val V) ([]byte, []byte, error) {
	kb, err := ix.encodeKey(key)
	if err != nil {
		return nil, nil, err
	}
	vb, err := ix.valConv.Encode(val)
	if err != nil {
		return nil, nil, storageErr(ix.name, "encode value", err)
	}
	return kb, vb, nil
}

// Add inserts the (key, value) pair. Inserting a pair that already exists
// is a no-op, not an error.
func (ix *Index[K, V]) Add(tx *txn.Context, key K, val V) error {
	if err := ix.checkOpen(); err != nil {
		return err
	}
	kb, vb, err := ix.encodePair(key, val)
	if err != nil {
		return err
	}
	return storageErr(ix.name, "add", ix.table.Put(tx.Txn(), kb, vb))
}

// RemoveEntry deletes exactly the (key, value) pair if present; it is a
// no-op otherwise.
func (ix *Index[K, V]) RemoveEntry(tx *txn.Context, key K, val V) error {
	if err := ix.checkOpen(); err != nil {
		return err
	}
	kb, vb, err := ix.encodePair(key, val)
	if err != nil {
		return err
	}
	_, err = ix.table.Delete(tx.Txn(), kb, vb)
	return storageErr(ix.name, "remove entry", err)
}

// RemoveAll deletes every value associated with key.
func (ix *Index[K, V]) RemoveAll(tx *txn.Context, key K) error {
	if err := ix.checkOpen(); err != nil {
		return err
	}
	kb, err := ix.encodeKey(key)
	if err != nil {
		return err
	}
	_, err = ix.table.DeleteAll(tx.Txn(), kb)
	return storageErr(ix.name, "remove all", err)
}

// FindFirst returns the smallest duplicate value stored under key.
func (ix *Index[K, V]) FindFirst(tx *txn.Context, key K) (V, bool, error) {
	var zero V
	if err := ix.checkOpen(); err != nil {
		return zero, false, err
	}
	kb, err := ix.encodeKey(key)
	if err != nil {
		return zero, false, err
	}
	vb, ok, err := ix.table.Get(tx.Txn(), kb)
	if err != nil || !ok {
		return zero, false, storageErr(ix.name, "find first", err)
	}
	v, err := ix.valConv.Decode(vb)
	if err != nil {
		return zero, false, storageErr(ix.name, "decode value", err)
	}
	return v, true, nil
}

// FindLast returns the largest duplicate value stored under key.
func (ix *Index[K, V]) FindLast(tx *txn.Context, key K) (V, bool, error) {
	var zero V
	if err := ix.checkOpen(); err != nil {
		return zero, false, err
	}
	kb, err := ix.encodeKey(key)
	if err != nil {
		return zero, false, err
	}
	kc, err := ix.table.OpenCursor(tx.Txn())
	if err != nil {
		return zero, false, storageErr(ix.name, "find last", err)
	}
	defer kc.Close() //nolint:errcheck

	ok, err := kc.Seek(kb)
	if err != nil || !ok {
		return zero, false, storageErr(ix.name, "find last", err)
	}
	// The largest duplicate precedes the next distinct key, or is the
	// table's last entry when key is the final key.
	ok, err = kc.NextDistinct()
	if err != nil {
		return zero, false, storageErr(ix.name, "find last", err)
	}
	if ok {
		ok, err = kc.Prev()
	} else {
		ok, err = kc.Last()
	}
	if err != nil || !ok {
		return zero, false, storageErr(ix.name, "find last", err)
	}
	v, err := ix.valConv.Decode(kc.Value())
	if err != nil {
		return zero, false, storageErr(ix.name, "decode value", err)
	}
	return v, true, nil
}

// Count returns the total number of (key, value) entries.
func (ix *Index[K, V]) Count(tx *txn.Context) (uint64, error) {
	if err := ix.checkOpen(); err != nil {
		return 0, err
	}
	n, err := ix.table.Count(tx.Txn())
	return n, storageErr(ix.name, "count", err)
}

// CountKey returns the number of duplicates stored under key, zero if the
// key is absent.
func (ix *Index[K, V]) CountKey(tx *txn.Context, key K) (uint64, error) {
	if err := ix.checkOpen(); err != nil {
		return 0, err
	}
	kb, err := ix.encodeKey(key)
	if err != nil {
		return 0, err
	}
	n, err := ix.table.CountKey(tx.Txn(), kb)
	return n, storageErr(ix.name, "count key", err)
}

// Find returns a cursor over exactly the duplicates of key, oldest order
// first. The cursor is attached to tx and must be closed.
func (ix *Index[K, V]) Find(tx *txn.Context, key K) (cursor.Cursor[V], error) {
	if err := ix.checkOpen(); err != nil {
		return nil, err
	}
	kb, err := ix.encodeKey(key)
	if err != nil {
		return nil, err
	}
	kc, err := ix.table.OpenCursor(tx.Txn())
	if err != nil {
		return nil, storageErr(ix.name, "find", err)
	}
	ok, err := kc.Seek(kb)
	if err != nil {
		_ = kc.Close()
		return nil, storageErr(ix.name, "find", err)
	}
	if !ok {
		_ = kc.Close()
		return cursor.Empty[V](), nil
	}
	rs := newSingleKeyResultSet(tx, kc, kb, ix)
	if err := tx.Attach(rs); err != nil {
		_ = kc.Close()
		return nil, storageErr(ix.name, "find", err)
	}
	return rs, nil
}

// ScanKeys returns a cursor over all distinct keys in key order.
func (ix *Index[K, V]) ScanKeys(tx *txn.Context) (cursor.Cursor[K], error) {
	if err := ix.checkOpen(); err != nil {
		return nil, err
	}
	kc, err := ix.table.OpenCursor(tx.Txn())
	if err != nil {
		return nil, storageErr(ix.name, "scan keys", err)
	}
	ok, err := kc.First()
	if err != nil {
		_ = kc.Close()
		return nil, storageErr(ix.name, "scan keys", err)
	}
	if !ok {
		_ = kc.Close()
		return cursor.Empty[K](), nil
	}
	rs := newKeyScanResultSet(tx, kc, ix)
	if err := tx.Attach(rs); err != nil {
		_ = kc.Close()
		return nil, storageErr(ix.name, "scan keys", err)
	}
	return rs, nil
}

// ScanValues returns a cursor over every value in the index, in key order.
func (ix *Index[K, V]) ScanValues(tx *txn.Context) (cursor.Cursor[V], error) {
	if err := ix.checkOpen(); err != nil {
		return nil, err
	}
	kc, err := ix.table.OpenCursor(tx.Txn())
	if err != nil {
		return nil, storageErr(ix.name, "scan values", err)
	}
	ok, err := kc.First()
	if err != nil {
		_ = kc.Close()
		return nil, storageErr(ix.name, "scan values", err)
	}
	if !ok {
		_ = kc.Close()
		return cursor.Empty[V](), nil
	}
	rs := newKeyRangeResultSet(tx, kc, ix, true)
	if err := tx.Attach(rs); err != nil {
		_ = kc.Close()
		return nil, storageErr(ix.name, "scan values", err)
	}
	return rs, nil
}

// FindGT returns a forward cursor over the values of all keys strictly
// greater than key.
func (ix *Index[K, V]) FindGT(tx *txn.Context, key K) (cursor.Cursor[V], error) {
	return ix.findOrdered(tx, key, false, false)
}

// FindGTE returns a forward cursor over the values of all keys greater
// than or equal to key.
func (ix *Index[K, V]) FindGTE(tx *txn.Context, key K) (cursor.Cursor[V], error) {
	return ix.findOrdered(tx, key, false, true)
}

// FindLT returns a backward cursor over the values of all keys strictly
// less than key.
func (ix *Index[K, V]) FindLT(tx *txn.Context, key K) (cursor.Cursor[V], error) {
	return ix.findOrdered(tx, key, true, false)
}

// FindLTE returns a backward cursor over the values of all keys less than
// or equal to key.
func (ix *Index[K, V]) FindLTE(tx *txn.Context, key K) (cursor.Cursor[V], error) {
	return ix.findOrdered(tx, key, true, true)
}

// findOrdered is the one boundary-search algorithm behind the four range
// operators. It positions a store cursor on the boundary entry and wraps it
// as a forward (upper-range) or backward (lower-range) result set.
//
// When no key in the index is >= the target, the cursor is repositioned at
// the last entry for lower-range queries and, for compatibility with the
// historical behavior, at the FIRST entry for upper-range queries — even
// though that entry does not satisfy the operator. Callers relying on
// GT/GTE beyond the last key must account for this quirk.
func (ix *Index[K, V]) findOrdered(tx *txn.Context, key K, lowerRange, inclusive bool) (cursor.Cursor[V], error) {
	if err := ix.checkOpen(); err != nil {
		return nil, err
	}
	kb, err := ix.encodeKey(key)
	if err != nil {
		return nil, err
	}
	kc, err := ix.table.OpenCursor(tx.Txn())
	if err != nil {
		return nil, storageErr(ix.name, "find ordered", err)
	}

	ok, err := ix.position(kc, kb, lowerRange, inclusive)
	if err != nil {
		_ = kc.Close()
		return nil, storageErr(ix.name, "find ordered", err)
	}
	if !ok {
		_ = kc.Close()
		return cursor.Empty[V](), nil
	}

	rs := newKeyRangeResultSet(tx, kc, ix, !lowerRange)
	if err := tx.Attach(rs); err != nil {
		_ = kc.Close()
		return nil, storageErr(ix.name, "find ordered", err)
	}
	return rs, nil
}

// position moves kc onto the boundary entry for the requested operator.
func (ix *Index[K, V]) position(kc kvstore.Cursor, kb []byte, lowerRange, inclusive bool) (bool, error) {
	ok, err := kc.SeekRange(kb)
	if err != nil {
		return false, err
	}

	if !ok {
		// Target is greater than every key. Every entry satisfies a
		// lower-range query, so its boundary is the global maximum. The
		// upper-range fallback to First is the preserved quirk.
		if lowerRange {
			return kc.Last()
		}
		return kc.First()
	}

	exact := ix.keyCmp(kc.Key(), kb) == 0
	switch {
	case !inclusive && lowerRange:
		// Strict <: the entry before the first entry >= target.
		return kc.Prev()
	case !inclusive && exact:
		// Strict >: skip all duplicates of the target key.
		return kc.NextDistinct()
	case inclusive && lowerRange && !exact:
		// <= positioned one entry past the target: back up.
		return kc.Prev()
	case inclusive && lowerRange:
		// <= on the target's first duplicate: the boundary is the
		// target's LAST duplicate. Step past the key and back, or take
		// the table's last entry when target's key is the final key.
		ok, err = kc.NextDistinct()
		if err != nil {
			return false, err
		}
		if !ok {
			return kc.Last()
		}
		return kc.Prev()
	default:
		// > on an inexact match or >=: already positioned correctly.
		return true, nil
	}
}
