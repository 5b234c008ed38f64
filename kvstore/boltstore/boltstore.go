package boltstore

import (
	"context"
	"errors"
	"fmt"
	"os"

	bolt "go.etcd.io/bbolt"

	"github.com/hupe1980/graphstore/kvstore"
)

// errForeignTxn is returned when a transaction from another store (or
// another backend) is passed in.
var errForeignTxn = errors.New("boltstore: transaction belongs to a different store")

// Options configure a Store.
type Options struct {
	// FileMode is the mode the database file is created with.
	FileMode os.FileMode

	// NoSync disables fsync on commit. Faster, unsafe on power loss.
	NoSync bool
}

// DefaultOptions are the Store defaults.
var DefaultOptions = Options{
	FileMode: 0o600,
}

// Store is a bbolt-backed kvstore.Store.
type Store struct {
	db *bolt.DB
}

var _ kvstore.Store = (*Store)(nil)

// Open opens or creates the database file at path.
func Open(path string, optFns ...func(*Options)) (*Store, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	db, err := bolt.Open(path, opts.FileMode, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	db.NoSync = opts.NoSync
	return &Store{db: db}, nil
}

// Table implements kvstore.Store. Binding is lazy: the backing bucket is
// created inside the first writing transaction that touches the table, so
// Table itself never competes for bbolt's single writer slot. bbolt's byte
// order is part of its file format, so custom comparators are rejected.
func (s *Store) Table(name string, opts *kvstore.TableOptions) (kvstore.Table, error) {
	if opts != nil && (opts.Comparator != nil || opts.DupComparator != nil) {
		return nil, kvstore.ErrComparatorUnsupported
	}
	return &boltTable{store: s, name: []byte(name)}, nil
}

// Tables implements kvstore.Store. Only tables that have been written to
// have a bucket and are listed.
func (s *Store) Tables() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	if err != nil {
		if errors.Is(err, bolt.ErrDatabaseNotOpen) {
			return nil, kvstore.ErrStoreClosed
		}
		return nil, err
	}
	return names, nil
}

// Begin implements kvstore.Store. bbolt blocks until the single writer slot
// is free; the wait is abandoned when ctx ends, and the late transaction is
// rolled back.
func (s *Store) Begin(ctx context.Context, writable bool) (kvstore.Txn, error) {
	type beginResult struct {
		tx  *bolt.Tx
		err error
	}
	ch := make(chan beginResult, 1)
	go func() {
		tx, err := s.db.Begin(writable)
		ch <- beginResult{tx: tx, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			if errors.Is(r.err, bolt.ErrDatabaseNotOpen) {
				return nil, kvstore.ErrStoreClosed
			}
			return nil, r.err
		}
		return &boltTxn{tx: r.tx, writable: writable}, nil
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.tx != nil {
				_ = r.tx.Rollback()
			}
		}()
		return nil, ctx.Err()
	}
}

// Close implements kvstore.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

type boltTxn struct {
	tx       *bolt.Tx
	writable bool
	done     bool
}

var _ kvstore.Txn = (*boltTxn)(nil)

func (t *boltTxn) Writable() bool { return t.writable }

func (t *boltTxn) Commit() error {
	if t.done {
		return kvstore.ErrTxnDone
	}
	t.done = true
	if !t.writable {
		// Read transactions hold the mmap reference; bbolt ends them
		// with Rollback regardless of outcome.
		return t.tx.Rollback()
	}
	return t.tx.Commit()
}

func (t *boltTxn) Abort() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}

func resolveTxn(s *Store, txn kvstore.Txn) (*boltTxn, error) {
	bt, ok := txn.(*boltTxn)
	if !ok {
		return nil, errForeignTxn
	}
	if bt.done {
		return nil, kvstore.ErrTxnDone
	}
	if bt.tx.DB() != s.db {
		return nil, errForeignTxn
	}
	return bt, nil
}
