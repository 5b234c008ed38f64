package memstore

import (
	"bytes"

	"github.com/google/btree"

	"github.com/hupe1980/graphstore/kvstore"
)

type memTable struct {
	store *Store
	state *tableState
}

var _ kvstore.Table = (*memTable)(nil)

func (t *memTable) Name() string { return t.state.name }

func (t *memTable) tree(txn kvstore.Txn, write bool) (*btree.BTreeG[item], error) {
	mt, err := resolveTxn(t.store, txn)
	if err != nil {
		return nil, err
	}
	return mt.treeFor(t.state, write)
}

// Get implements kvstore.Table.
func (t *memTable) Get(txn kvstore.Txn, key []byte) ([]byte, bool, error) {
	tree, err := t.tree(txn, false)
	if err != nil {
		return nil, false, err
	}
	var found *item
	tree.AscendGreaterOrEqual(item{key: key, bound: -1}, func(it item) bool {
		found = &it
		return false
	})
	if found == nil || t.state.keyCmp(found.key, key) != 0 {
		return nil, false, nil
	}
	return bytes.Clone(found.val), true, nil
}

// Put implements kvstore.Table. The pair is copied; inserting an existing
// pair replaces it with an equal one, which makes Put idempotent.
func (t *memTable) Put(txn kvstore.Txn, key, val []byte) error {
	tree, err := t.tree(txn, true)
	if err != nil {
		return err
	}
	tree.ReplaceOrInsert(item{key: bytes.Clone(key), val: bytes.Clone(val)})
	return nil
}

// Delete implements kvstore.Table.
func (t *memTable) Delete(txn kvstore.Txn, key, val []byte) (bool, error) {
	tree, err := t.tree(txn, true)
	if err != nil {
		return false, err
	}
	_, ok := tree.Delete(item{key: key, val: val})
	return ok, nil
}

// DeleteAll implements kvstore.Table.
func (t *memTable) DeleteAll(txn kvstore.Txn, key []byte) (bool, error) {
	tree, err := t.tree(txn, true)
	if err != nil {
		return false, err
	}
	var dups []item
	tree.AscendRange(item{key: key, bound: -1}, item{key: key, bound: 1}, func(it item) bool {
		dups = append(dups, it)
		return true
	})
	for _, it := range dups {
		tree.Delete(it)
	}
	return len(dups) > 0, nil
}

// Count implements kvstore.Table.
func (t *memTable) Count(txn kvstore.Txn) (uint64, error) {
	tree, err := t.tree(txn, false)
	if err != nil {
		return 0, err
	}
	return uint64(tree.Len()), nil
}

// CountKey implements kvstore.Table.
func (t *memTable) CountKey(txn kvstore.Txn, key []byte) (uint64, error) {
	tree, err := t.tree(txn, false)
	if err != nil {
		return 0, err
	}
	var n uint64
	tree.AscendRange(item{key: key, bound: -1}, item{key: key, bound: 1}, func(item) bool {
		n++
		return true
	})
	return n, nil
}

// OpenCursor implements kvstore.Table.
func (t *memTable) OpenCursor(txn kvstore.Txn) (kvstore.Cursor, error) {
	mt, err := resolveTxn(t.store, txn)
	if err != nil {
		return nil, err
	}
	tree, err := mt.treeFor(t.state, false)
	if err != nil {
		return nil, err
	}
	return &memCursor{txn: mt, tree: tree, keyCmp: t.state.keyCmp, dupCmp: t.state.dupCmp}, nil
}
