package pebblestore

import (
	"bytes"
	"errors"

	"github.com/cockroachdb/pebble"

	"github.com/hupe1980/graphstore/kvstore"
)

// pebbleCursor keeps the current (key, value) pair as its anchor and opens
// a short-lived iterator per move. Iterators capture the batch's contents
// at creation, so re-opening keeps the cursor consistent with writes made
// through the same transaction between moves.
type pebbleCursor struct {
	txn        *pebbleTxn
	table      *pebbleTable
	curKey     []byte
	curVal     []byte
	positioned bool
	closed     bool
}

var _ kvstore.Cursor = (*pebbleCursor)(nil)

func (c *pebbleCursor) ready() error {
	if c.closed {
		return kvstore.ErrCursorClosed
	}
	if c.txn.done {
		return kvstore.ErrTxnDone
	}
	return nil
}

// setFrom decodes the iterator's current composite key into the anchor.
func (c *pebbleCursor) setFrom(iter *pebble.Iterator) error {
	key, val, err := decodePair(c.table.prefix, iter.Key())
	if err != nil {
		return err
	}
	c.curKey = key
	c.curVal = val
	c.positioned = true
	return nil
}

// move runs one positioning step against a fresh table-wide iterator.
func (c *pebbleCursor) move(step func(iter *pebble.Iterator) bool) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	iter, err := c.table.tableIter(c.txn)
	if err != nil {
		return false, err
	}
	ok := step(iter)
	if !ok {
		err = iter.Error()
		if cerr := iter.Close(); err == nil {
			err = cerr
		}
		return false, err
	}
	if err := c.setFrom(iter); err != nil {
		_ = iter.Close()
		return false, err
	}
	return true, iter.Close()
}

// First implements kvstore.Cursor.
func (c *pebbleCursor) First() (bool, error) {
	return c.move(func(iter *pebble.Iterator) bool { return iter.First() })
}

// Last implements kvstore.Cursor.
func (c *pebbleCursor) Last() (bool, error) {
	return c.move(func(iter *pebble.Iterator) bool { return iter.Last() })
}

// Seek implements kvstore.Cursor.
func (c *pebbleCursor) Seek(key []byte) (bool, error) {
	lower := keyLowerBound(c.table.prefix, key)
	upper := keyUpperBound(c.table.prefix, key)
	return c.move(func(iter *pebble.Iterator) bool {
		return iter.SeekGE(lower) && bytes.Compare(iter.Key(), upper) < 0
	})
}

// SeekRange implements kvstore.Cursor.
func (c *pebbleCursor) SeekRange(key []byte) (bool, error) {
	lower := keyLowerBound(c.table.prefix, key)
	return c.move(func(iter *pebble.Iterator) bool { return iter.SeekGE(lower) })
}

// SeekPair implements kvstore.Cursor.
func (c *pebbleCursor) SeekPair(key, val []byte) (bool, error) {
	if err := c.ready(); err != nil {
		return false, err
	}
	composite := encodePair(c.table.prefix, key, val)
	_, closer, err := c.txn.reader().Get(composite)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	_ = closer.Close()
	c.curKey = bytes.Clone(key)
	c.curVal = bytes.Clone(val)
	c.positioned = true
	return true, nil
}

// SeekPairRange implements kvstore.Cursor.
func (c *pebbleCursor) SeekPairRange(key, val []byte) (bool, error) {
	target := encodePair(c.table.prefix, key, val)
	upper := keyUpperBound(c.table.prefix, key)
	return c.move(func(iter *pebble.Iterator) bool {
		return iter.SeekGE(target) && bytes.Compare(iter.Key(), upper) < 0
	})
}

// Next implements kvstore.Cursor.
func (c *pebbleCursor) Next() (bool, error) {
	if err := c.positionedErr(); err != nil {
		return false, err
	}
	after := successor(encodePair(c.table.prefix, c.curKey, c.curVal))
	return c.move(func(iter *pebble.Iterator) bool { return iter.SeekGE(after) })
}

// NextDistinct implements kvstore.Cursor.
func (c *pebbleCursor) NextDistinct() (bool, error) {
	if err := c.positionedErr(); err != nil {
		return false, err
	}
	after := keyUpperBound(c.table.prefix, c.curKey)
	return c.move(func(iter *pebble.Iterator) bool { return iter.SeekGE(after) })
}

// Prev implements kvstore.Cursor.
func (c *pebbleCursor) Prev() (bool, error) {
	if err := c.positionedErr(); err != nil {
		return false, err
	}
	anchor := encodePair(c.table.prefix, c.curKey, c.curVal)
	return c.move(func(iter *pebble.Iterator) bool { return iter.SeekLT(anchor) })
}

func (c *pebbleCursor) positionedErr() error {
	if err := c.ready(); err != nil {
		return err
	}
	if !c.positioned {
		return kvstore.ErrNotPositioned
	}
	return nil
}

// Key implements kvstore.Cursor.
func (c *pebbleCursor) Key() []byte {
	if !c.positioned {
		return nil
	}
	return bytes.Clone(c.curKey)
}

// Value implements kvstore.Cursor.
func (c *pebbleCursor) Value() []byte {
	if !c.positioned {
		return nil
	}
	return bytes.Clone(c.curVal)
}

// CountDup implements kvstore.Cursor.
func (c *pebbleCursor) CountDup() (uint64, error) {
	if err := c.positionedErr(); err != nil {
		return 0, err
	}
	return c.table.CountKey(c.txn, c.curKey)
}

// Delete implements kvstore.Cursor. The removed entry stays the cursor's
// anchor, so a following Next or Prev lands on its former neighbor.
func (c *pebbleCursor) Delete() error {
	if err := c.positionedErr(); err != nil {
		return err
	}
	if !c.txn.writable {
		return kvstore.ErrReadOnlyTxn
	}
	return c.txn.batch.Delete(encodePair(c.table.prefix, c.curKey, c.curVal), nil)
}

// Close implements kvstore.Cursor.
func (c *pebbleCursor) Close() error {
	c.closed = true
	return nil
}
