package boltstore

import (
	"bytes"

	bolt "go.etcd.io/bbolt"

	"github.com/hupe1980/graphstore/kvstore"
)

// boltCursor walks one table. It keeps the current (key, value) pair as its
// anchor and re-seeks from it on every move, so writes made through the same
// transaction stay visible and a deleted anchor behaves like a gap.
type boltCursor struct {
	txn    *boltTxn
	table  []byte
	curKey []byte
	curVal []byte
	closed bool
}

var _ kvstore.Cursor = (*boltCursor)(nil)

// ready returns the table's top-level bucket, or nil when the table has no
// data yet (a lazily bound table looks like an empty one).
func (c *boltCursor) ready() (*bolt.Bucket, error) {
	if c.closed {
		return nil, kvstore.ErrCursorClosed
	}
	if c.txn.done {
		return nil, kvstore.ErrTxnDone
	}
	return c.txn.tx.Bucket(c.table), nil
}

func (c *boltCursor) set(key, val []byte) {
	c.curKey = bytes.Clone(key)
	c.curVal = bytes.Clone(val)
}

// firstOf positions on the smallest duplicate of the bucket named key.
func (c *boltCursor) firstOf(b *bolt.Bucket, key []byte) bool {
	nested := b.Bucket(key)
	if nested == nil {
		return false
	}
	v, _ := nested.Cursor().First()
	if v == nil {
		return false
	}
	c.set(key, v)
	return true
}

// lastOf positions on the largest duplicate of the bucket named key.
func (c *boltCursor) lastOf(b *bolt.Bucket, key []byte) bool {
	nested := b.Bucket(key)
	if nested == nil {
		return false
	}
	v, _ := nested.Cursor().Last()
	if v == nil {
		return false
	}
	c.set(key, v)
	return true
}

// First implements kvstore.Cursor.
func (c *boltCursor) First() (bool, error) {
	b, err := c.ready()
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}
	k, _ := b.Cursor().First()
	if k == nil {
		return false, nil
	}
	return c.firstOf(b, k), nil
}

// Last implements kvstore.Cursor.
func (c *boltCursor) Last() (bool, error) {
	b, err := c.ready()
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}
	k, _ := b.Cursor().Last()
	if k == nil {
		return false, nil
	}
	return c.lastOf(b, k), nil
}

// Seek implements kvstore.Cursor.
func (c *boltCursor) Seek(key []byte) (bool, error) {
	b, err := c.ready()
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}
	return c.firstOf(b, key), nil
}

// SeekRange implements kvstore.Cursor.
func (c *boltCursor) SeekRange(key []byte) (bool, error) {
	b, err := c.ready()
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}
	k, _ := b.Cursor().Seek(key)
	if k == nil {
		return false, nil
	}
	return c.firstOf(b, k), nil
}

// SeekPair implements kvstore.Cursor.
func (c *boltCursor) SeekPair(key, val []byte) (bool, error) {
	b, err := c.ready()
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}
	nested := b.Bucket(key)
	if nested == nil {
		return false, nil
	}
	if v, _ := nested.Cursor().Seek(val); !bytes.Equal(v, val) {
		return false, nil
	}
	c.set(key, val)
	return true, nil
}

// SeekPairRange implements kvstore.Cursor.
func (c *boltCursor) SeekPairRange(key, val []byte) (bool, error) {
	b, err := c.ready()
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}
	nested := b.Bucket(key)
	if nested == nil {
		return false, nil
	}
	v, _ := nested.Cursor().Seek(val)
	if v == nil {
		return false, nil
	}
	c.set(key, v)
	return true, nil
}

// Next implements kvstore.Cursor.
func (c *boltCursor) Next() (bool, error) {
	b, err := c.ready()
	if err != nil {
		return false, err
	}
	if c.curKey == nil {
		return false, kvstore.ErrNotPositioned
	}
	if b == nil {
		return false, nil
	}
	if nested := b.Bucket(c.curKey); nested != nil {
		nc := nested.Cursor()
		v, _ := nc.Seek(c.curVal)
		if bytes.Equal(v, c.curVal) {
			v, _ = nc.Next()
		}
		if v != nil {
			c.set(c.curKey, v)
			return true, nil
		}
	}
	return c.nextKey(b)
}

// NextDistinct implements kvstore.Cursor.
func (c *boltCursor) NextDistinct() (bool, error) {
	b, err := c.ready()
	if err != nil {
		return false, err
	}
	if c.curKey == nil {
		return false, kvstore.ErrNotPositioned
	}
	if b == nil {
		return false, nil
	}
	return c.nextKey(b)
}

// nextKey positions on the first duplicate of the key following curKey.
func (c *boltCursor) nextKey(b *bolt.Bucket) (bool, error) {
	oc := b.Cursor()
	k, _ := oc.Seek(c.curKey)
	if bytes.Equal(k, c.curKey) {
		k, _ = oc.Next()
	}
	if k == nil {
		return false, nil
	}
	return c.firstOf(b, k), nil
}

// Prev implements kvstore.Cursor.
func (c *boltCursor) Prev() (bool, error) {
	b, err := c.ready()
	if err != nil {
		return false, err
	}
	if c.curKey == nil {
		return false, kvstore.ErrNotPositioned
	}
	if b == nil {
		return false, nil
	}
	if nested := b.Bucket(c.curKey); nested != nil {
		nc := nested.Cursor()
		v, _ := nc.Seek(c.curVal)
		if v == nil {
			// curVal sorts past every duplicate; the largest one precedes it.
			v, _ = nc.Last()
		} else {
			v, _ = nc.Prev()
		}
		if v != nil {
			c.set(c.curKey, v)
			return true, nil
		}
	}
	oc := b.Cursor()
	k, _ := oc.Seek(c.curKey)
	if k == nil {
		k, _ = oc.Last()
	} else {
		k, _ = oc.Prev()
	}
	if k == nil {
		return false, nil
	}
	return c.lastOf(b, k), nil
}

// Key implements kvstore.Cursor.
func (c *boltCursor) Key() []byte {
	return bytes.Clone(c.curKey)
}

// Value implements kvstore.Cursor.
func (c *boltCursor) Value() []byte {
	return bytes.Clone(c.curVal)
}

// CountDup implements kvstore.Cursor.
func (c *boltCursor) CountDup() (uint64, error) {
	b, err := c.ready()
	if err != nil {
		return 0, err
	}
	if c.curKey == nil {
		return 0, kvstore.ErrNotPositioned
	}
	if b == nil {
		return 0, nil
	}
	return countBucket(b.Bucket(c.curKey)), nil
}

// Delete implements kvstore.Cursor.
func (c *boltCursor) Delete() error {
	b, err := c.ready()
	if err != nil {
		return err
	}
	if c.curKey == nil {
		return kvstore.ErrNotPositioned
	}
	if !c.txn.writable {
		return kvstore.ErrReadOnlyTxn
	}
	if b == nil {
		return nil
	}
	nested := b.Bucket(c.curKey)
	if nested == nil {
		return nil
	}
	if err := nested.Delete(c.curVal); err != nil {
		return err
	}
	if v, _ := nested.Cursor().First(); v == nil {
		return b.DeleteBucket(c.curKey)
	}
	return nil
}

// Close implements kvstore.Cursor.
func (c *boltCursor) Close() error {
	c.closed = true
	return nil
}
