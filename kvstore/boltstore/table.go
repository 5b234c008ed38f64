package boltstore

import (
	"bytes"

	bolt "go.etcd.io/bbolt"

	"github.com/hupe1980/graphstore/kvstore"
)

type boltTable struct {
	store *Store
	name  []byte
}

var _ kvstore.Table = (*boltTable)(nil)

func (t *boltTable) Name() string { return string(t.name) }

// bucket resolves the table's top-level bucket within the transaction. With
// create set the bucket is made on demand inside the caller's transaction;
// otherwise a nil bucket (with nil error) means the table holds no data yet.
func (t *boltTable) bucket(txn kvstore.Txn, write, create bool) (*bolt.Bucket, error) {
	bt, err := resolveTxn(t.store, txn)
	if err != nil {
		return nil, err
	}
	if write && !bt.writable {
		return nil, kvstore.ErrReadOnlyTxn
	}
	if create {
		return bt.tx.CreateBucketIfNotExists(t.name)
	}
	return bt.tx.Bucket(t.name), nil
}

// Get implements kvstore.Table.
func (t *boltTable) Get(txn kvstore.Txn, key []byte) ([]byte, bool, error) {
	b, err := t.bucket(txn, false, false)
	if err != nil {
		return nil, false, err
	}
	if b == nil {
		return nil, false, nil
	}
	nested := b.Bucket(key)
	if nested == nil {
		return nil, false, nil
	}
	v, _ := nested.Cursor().First()
	if v == nil {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Put implements kvstore.Table. Duplicate values are the nested bucket's
// keys; re-putting an existing pair rewrites the same slot, so Put is
// idempotent.
func (t *boltTable) Put(txn kvstore.Txn, key, val []byte) error {
	b, err := t.bucket(txn, true, true)
	if err != nil {
		return err
	}
	nested, err := b.CreateBucketIfNotExists(key)
	if err != nil {
		return err
	}
	return nested.Put(val, []byte{})
}

// Delete implements kvstore.Table. An emptied key bucket is dropped so the
// key disappears from seeks and scans.
func (t *boltTable) Delete(txn kvstore.Txn, key, val []byte) (bool, error) {
	b, err := t.bucket(txn, true, false)
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
	if err := nested.Delete(val); err != nil {
		return false, err
	}
	if v, _ := nested.Cursor().First(); v == nil {
		if err := b.DeleteBucket(key); err != nil {
			return false, err
		}
	}
	return true, nil
}

// DeleteAll implements kvstore.Table.
func (t *boltTable) DeleteAll(txn kvstore.Txn, key []byte) (bool, error) {
	b, err := t.bucket(txn, true, false)
	if err != nil {
		return false, err
	}
	if b == nil || b.Bucket(key) == nil {
		return false, nil
	}
	if err := b.DeleteBucket(key); err != nil {
		return false, err
	}
	return true, nil
}

// Count implements kvstore.Table.
func (t *boltTable) Count(txn kvstore.Txn) (uint64, error) {
	b, err := t.bucket(txn, false, false)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, nil
	}
	var n uint64
	err = b.ForEachBucket(func(key []byte) error {
		n += countBucket(b.Bucket(key))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// countBucket counts keys with a cursor walk. Bucket.Stats is not reliable
// for pages dirtied by the current write transaction.
func countBucket(nested *bolt.Bucket) uint64 {
	if nested == nil {
		return 0
	}
	var n uint64
	c := nested.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

// CountKey implements kvstore.Table.
func (t *boltTable) CountKey(txn kvstore.Txn, key []byte) (uint64, error) {
	b, err := t.bucket(txn, false, false)
	if err != nil {
		return 0, err
	}
	if b == nil {
		return 0, nil
	}
	return countBucket(b.Bucket(key)), nil
}

// OpenCursor implements kvstore.Table.
func (t *boltTable) OpenCursor(txn kvstore.Txn) (kvstore.Cursor, error) {
	bt, err := resolveTxn(t.store, txn)
	if err != nil {
		return nil, err
	}
	return &boltCursor{txn: bt, table: t.name}, nil
}
