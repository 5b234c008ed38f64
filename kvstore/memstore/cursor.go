package memstore

import (
	"bytes"

	"github.com/google/btree"

	"github.com/hupe1980/graphstore/kvstore"
)

// memCursor walks one table clone. Every move re-descends the tree from the
// current entry, so writes made through the same transaction are observed.
type memCursor struct {
	txn        *memTxn
	tree       *btree.BTreeG[item]
	keyCmp     kvstore.Comparator
	dupCmp     kvstore.Comparator
	cur        item
	positioned bool
	closed     bool
}

var _ kvstore.Cursor = (*memCursor)(nil)

func (c *memCursor) ready() error {
	if c.closed {
		return kvstore.ErrCursorClosed
	}
	if c.txn.done {
		return kvstore.ErrTxnDone
	}
	return nil
}

func (c *memCursor) sameEntry(a, b item) bool {
	return c.keyCmp(a.key, b.key) == 0 && c.dupCmp(a.val, b.val) == 0
}

func (c *memCursor) set(it item) {
	c.cur = it
	c.positioned = true
}

// First implements kvstore.Cursor.
func (c *memCursor) First() (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	it, ok := c.tree.Min()
	if !ok {
		return false, nil
	}
	c.set(it)
	return true, nil
}

// Last implements kvstore.Cursor.
func (c *memCursor) Last() (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	it, ok := c.tree.Max()
	if !ok {
		return false, nil
	}
	c.set(it)
	return true, nil
}

// SeekRange implements kvstore.Cursor.
func (c *memCursor) SeekRange(key []byte) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	var found *item
	c.tree.AscendGreaterOrEqual(item{key: key, bound: -1}, func(it item) bool {
		found = &it
		return false
	})
	if found == nil {
		return false, nil
	}
	c.set(*found)
	return true, nil
}

// Seek implements kvstore.Cursor.
func (c *memCursor) Seek(key []byte) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	var found *item
	c.tree.AscendGreaterOrEqual(item{key: key, bound: -1}, func(it item) bool {
		found = &it
		return false
	})
	if found == nil || c.keyCmp(found.key, key) != 0 {
		return false, nil
	}
	c.set(*found)
	return true, nil
}

// SeekPair implements kvstore.Cursor.
func (c *memCursor) SeekPair(key, val []byte) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	it, ok := c.tree.Get(item{key: key, val: val})
	if !ok {
		return false, nil
	}
	c.set(it)
	return true, nil
}

// SeekPairRange implements kvstore.Cursor.
func (c *memCursor) SeekPairRange(key, val []byte) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	var found *item
	c.tree.AscendGreaterOrEqual(item{key: key, val: val}, func(it item) bool {
		found = &it
		return false
	})
	if found == nil || c.keyCmp(found.key, key) != 0 {
		return false, nil
	}
	c.set(*found)
	return true, nil
}

// Next implements kvstore.Cursor.
func (c *memCursor) Next() (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	if !c.positioned {
		return false, kvstore.ErrNotPositioned
	}
	var found *item
	c.tree.AscendGreaterOrEqual(c.cur, func(it item) bool {
		if c.sameEntry(it, c.cur) {
			return true
		}
		found = &it
		return false
	})
	if found == nil {
		return false, nil
	}
	c.set(*found)
	return true, nil
}

// NextDistinct implements kvstore.Cursor.
func (c *memCursor) NextDistinct() (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	if !c.positioned {
		return false, kvstore.ErrNotPositioned
	}
	var found *item
	c.tree.AscendGreaterOrEqual(item{key: c.cur.key, bound: 1}, func(it item) bool {
		found = &it
		return false
	})
	if found == nil {
		return false, nil
	}
	c.set(*found)
	return true, nil
}

// Prev implements kvstore.Cursor.
func (c *memCursor) Prev() (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	if !c.positioned {
		return false, kvstore.ErrNotPositioned
	}
	var found *item
	c.tree.DescendLessOrEqual(c.cur, func(it item) bool {
		if c.sameEntry(it, c.cur) {
			return true
		}
		found = &it
		return false
	})
	if found == nil {
		return false, nil
	}
	c.set(*found)
	return true, nil
}

// Key implements kvstore.Cursor.
func (c *memCursor) Key() []byte {
	if !c.positioned {
		return nil
	}
	return bytes.Clone(c.cur.key)
}

// Value implements kvstore.Cursor.
func (c *memCursor) Value() []byte {
	if !c.positioned {
		return nil
	}
	return bytes.Clone(c.cur.val)
}

// CountDup implements kvstore.Cursor.
func (c *memCursor) CountDup() (uint64, error) {
	if err := c.ready(); err != nil {
		return 0, err
	}
	if !c.positioned {
		return 0, kvstore.ErrNotPositioned
	}
	var n uint64
	c.tree.AscendRange(item{key: c.cur.key, bound: -1}, item{key: c.cur.key, bound: 1}, func(item) bool {
		n++
		return true
	})
	return n, nil
}

// Delete implements kvstore.Cursor. The removed entry stays the cursor's
// anchor, so a following Next or Prev lands on its former neighbor.
func (c *memCursor) Delete() error {
	if err := c.ready(); err != nil {
		return err
	}
	if !c.positioned {
		return kvstore.ErrNotPositioned
	}
	if !c.txn.writable {
		return kvstore.ErrReadOnlyTxn
	}
	c.tree.Delete(c.cur)
	return nil
}

// Close implements kvstore.Cursor.
func (c *memCursor) Close() error {
	c.closed = true
	return nil
}
