package pebblestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/hupe1980/graphstore/kvstore"
)

// errForeignTxn is returned when a transaction from another store (or
// another backend) is passed in.
var errForeignTxn = errors.New("pebblestore: transaction belongs to a different store")

// Options configure a Store.
type Options struct {
	// Sync forces a WAL fsync on every commit.
	Sync bool

	// Pebble overrides the raw pebble options. Nil uses pebble defaults.
	Pebble *pebble.Options
}

// DefaultOptions are the Store defaults.
var DefaultOptions = Options{
	Sync: true,
}

// Store is a pebble-backed kvstore.Store.
type Store struct {
	db       *pebble.DB
	writeOpt *pebble.WriteOptions

	mu     sync.Mutex
	writer chan struct{}
	closed bool
}

var _ kvstore.Store = (*Store)(nil)

// Open opens or creates the database at dir.
func Open(dir string, optFns ...func(*Options)) (*Store, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	db, err := pebble.Open(dir, opts.Pebble)
	if err != nil {
		return nil, fmt.Errorf("pebblestore: open %s: %w", dir, err)
	}
	wo := pebble.NoSync
	if opts.Sync {
		wo = pebble.Sync
	}
	return &Store{
		db:       db,
		writeOpt: wo,
		writer:   make(chan struct{}, 1),
	}, nil
}

// Table implements kvstore.Store. Pebble's byte order is part of its file
// format, so custom comparators are rejected. The table name is recorded in
// the on-disk catalog so Tables works after a reopen.
func (s *Store) Table(name string, opts *kvstore.TableOptions) (kvstore.Table, error) {
	if opts != nil && (opts.Comparator != nil || opts.DupComparator != nil) {
		return nil, kvstore.ErrComparatorUnsupported
	}
	if strings.Contains(name, "!") {
		return nil, fmt.Errorf("pebblestore: table name %q must not contain '!'", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, kvstore.ErrStoreClosed
	}
	if err := s.db.Set(metaKey(name), nil, s.writeOpt); err != nil {
		return nil, fmt.Errorf("pebblestore: create table %s: %w", name, err)
	}
	return &pebbleTable{store: s, name: name, prefix: tablePrefix(name)}, nil
}

// Tables implements kvstore.Store.
func (s *Store) Tables() ([]string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, kvstore.ErrStoreClosed
	}
	s.mu.Unlock()

	lower := []byte("m!")
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: prefixUpperBound(lower),
	})
	if err != nil {
		return nil, err
	}
	var names []string
	for iter.First(); iter.Valid(); iter.Next() {
		names = append(names, string(iter.Key()[len(lower):]))
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return names, nil
}

// Begin implements kvstore.Store. Writable transactions serialize on a
// single writer slot so the read-modify-write of a record is safe; ctx
// cancels the wait for the slot.
func (s *Store) Begin(ctx context.Context, writable bool) (kvstore.Txn, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, kvstore.ErrStoreClosed
	}
	s.mu.Unlock()

	if !writable {
		return &pebbleTxn{store: s, snap: s.db.NewSnapshot()}, nil
	}

	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &pebbleTxn{store: s, batch: s.db.NewIndexedBatch(), writable: true}, nil
}

// Close implements kvstore.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// pebbleTxn is either an indexed batch (writable) or a snapshot (read-only).
type pebbleTxn struct {
	store    *Store
	batch    *pebble.Batch
	snap     *pebble.Snapshot
	writable bool
	done     bool
}

var _ kvstore.Txn = (*pebbleTxn)(nil)

func (t *pebbleTxn) Writable() bool { return t.writable }

// reader returns the handle point reads and iterators go through.
func (t *pebbleTxn) reader() pebble.Reader {
	if t.writable {
		return t.batch
	}
	return t.snap
}

func (t *pebbleTxn) Commit() error {
	if t.done {
		return kvstore.ErrTxnDone
	}
	t.done = true
	if !t.writable {
		return t.snap.Close()
	}
	defer func() { <-t.store.writer }()
	return t.batch.Commit(t.store.writeOpt)
}

func (t *pebbleTxn) Abort() error {
	if t.done {
		return nil
	}
	t.done = true
	if !t.writable {
		return t.snap.Close()
	}
	defer func() { <-t.store.writer }()
	return t.batch.Close()
}

func resolveTxn(s *Store, txn kvstore.Txn) (*pebbleTxn, error) {
	pt, ok := txn.(*pebbleTxn)
	if !ok || pt.store != s {
		return nil, errForeignTxn
	}
	if pt.done {
		return nil, kvstore.ErrTxnDone
	}
	return pt, nil
}
