package pebblestore

import (
	"errors"

	"github.com/cockroachdb/pebble"

	"github.com/hupe1980/graphstore/kvstore"
)

type pebbleTable struct {
	store  *Store
	name   string
	prefix []byte
}

var _ kvstore.Table = (*pebbleTable)(nil)

func (t *pebbleTable) Name() string { return t.name }

func (t *pebbleTable) txn(txn kvstore.Txn, write bool) (*pebbleTxn, error) {
	pt, err := resolveTxn(t.store, txn)
	if err != nil {
		return nil, err
	}
	if write && !pt.writable {
		return nil, kvstore.ErrReadOnlyTxn
	}
	return pt, nil
}

// blockIter opens an iterator over the duplicate block of one key.
func (t *pebbleTable) blockIter(pt *pebbleTxn, key []byte) (*pebble.Iterator, error) {
	return pt.reader().NewIter(&pebble.IterOptions{
		LowerBound: keyLowerBound(t.prefix, key),
		UpperBound: keyUpperBound(t.prefix, key),
	})
}

// tableIter opens an iterator over the whole table.
func (t *pebbleTable) tableIter(pt *pebbleTxn) (*pebble.Iterator, error) {
	return pt.reader().NewIter(&pebble.IterOptions{
		LowerBound: t.prefix,
		UpperBound: prefixUpperBound(t.prefix),
	})
}

// Get implements kvstore.Table.
func (t *pebbleTable) Get(txn kvstore.Txn, key []byte) ([]byte, bool, error) {
	pt, err := t.txn(txn, false)
	if err != nil {
		return nil, false, err
	}
	iter, err := t.blockIter(pt, key)
	if err != nil {
		return nil, false, err
	}
	defer iter.Close() //nolint:errcheck
	if !iter.First() {
		return nil, false, iter.Error()
	}
	_, val, err := decodePair(t.prefix, iter.Key())
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Put implements kvstore.Table. Setting an existing composite key rewrites
// it in place, so Put is idempotent.
func (t *pebbleTable) Put(txn kvstore.Txn, key, val []byte) error {
	pt, err := t.txn(txn, true)
	if err != nil {
		return err
	}
	return pt.batch.Set(encodePair(t.prefix, key, val), nil, nil)
}

// Delete implements kvstore.Table.
func (t *pebbleTable) Delete(txn kvstore.Txn, key, val []byte) (bool, error) {
	pt, err := t.txn(txn, true)
	if err != nil {
		return false, err
	}
	composite := encodePair(t.prefix, key, val)
	_, closer, err := pt.batch.Get(composite)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	_ = closer.Close()
	if err := pt.batch.Delete(composite, nil); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteAll implements kvstore.Table.
func (t *pebbleTable) DeleteAll(txn kvstore.Txn, key []byte) (bool, error) {
	pt, err := t.txn(txn, true)
	if err != nil {
		return false, err
	}
	iter, err := t.blockIter(pt, key)
	if err != nil {
		return false, err
	}
	existed := iter.First()
	if err := iter.Close(); err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}
	err = pt.batch.DeleteRange(keyLowerBound(t.prefix, key), keyUpperBound(t.prefix, key), nil)
	if err != nil {
		return false, err
	}
	return true, nil
}

// Count implements kvstore.Table.
func (t *pebbleTable) Count(txn kvstore.Txn) (uint64, error) {
	pt, err := t.txn(txn, false)
	if err != nil {
		return 0, err
	}
	iter, err := t.tableIter(pt)
	if err != nil {
		return 0, err
	}
	defer iter.Close() //nolint:errcheck
	var n uint64
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	return n, iter.Error()
}

// CountKey implements kvstore.Table.
func (t *pebbleTable) CountKey(txn kvstore.Txn, key []byte) (uint64, error) {
	pt, err := t.txn(txn, false)
	if err != nil {
		return 0, err
	}
	iter, err := t.blockIter(pt, key)
	if err != nil {
		return 0, err
	}
	defer iter.Close() //nolint:errcheck
	var n uint64
	for iter.First(); iter.Valid(); iter.Next() {
		n++
	}
	return n, iter.Error()
}

// OpenCursor implements kvstore.Table.
func (t *pebbleTable) OpenCursor(txn kvstore.Txn) (kvstore.Cursor, error) {
	pt, err := resolveTxn(t.store, txn)
	if err != nil {
		return nil, err
	}
	return &pebbleCursor{txn: pt, table: t}, nil
}
