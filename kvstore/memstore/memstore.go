package memstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/btree"

	"github.com/hupe1980/graphstore/kvstore"
)

// errForeignTxn is returned when a transaction from another store (or
// another backend) is passed in.
var errForeignTxn = errors.New("memstore: transaction belongs to a different store")

const btreeDegree = 32

// item is one (key, value) entry. bound is only ever non-zero on transient
// seek pivots: -1 sorts before every duplicate of key, +1 after every
// duplicate and before the next distinct key.
type item struct {
	key   []byte
	val   []byte
	bound int8
}

// lessFunc builds the B-tree order from the table's comparators.
func lessFunc(keyCmp, dupCmp kvstore.Comparator) btree.LessFunc[item] {
	return func(a, b item) bool {
		if c := keyCmp(a.key, b.key); c != 0 {
			return c < 0
		}
		if a.bound != 0 || b.bound != 0 {
			return a.bound < b.bound
		}
		return dupCmp(a.val, b.val) < 0
	}
}

type tableState struct {
	name   string
	keyCmp kvstore.Comparator
	dupCmp kvstore.Comparator
	tree   *btree.BTreeG[item]
}

// Store is an in-memory kvstore.Store.
type Store struct {
	mu     sync.Mutex
	tables map[string]*tableState
	writer chan struct{}
	closed bool
}

var _ kvstore.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		tables: make(map[string]*tableState),
		writer: make(chan struct{}, 1),
	}
}

// Table implements kvstore.Store. Options only apply when the table is
// created; binding an existing table returns the existing state untouched.
func (s *Store) Table(name string, opts *kvstore.TableOptions) (kvstore.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, kvstore.ErrStoreClosed
	}
	ts, ok := s.tables[name]
	if !ok {
		var keyCmp, dupCmp kvstore.Comparator
		if opts != nil {
			keyCmp = opts.Comparator
			dupCmp = opts.DupComparator
		}
		keyCmp = kvstore.CompareOrDefault(keyCmp)
		dupCmp = kvstore.CompareOrDefault(dupCmp)
		ts = &tableState{
			name:   name,
			keyCmp: keyCmp,
			dupCmp: dupCmp,
			tree:   btree.NewG(btreeDegree, lessFunc(keyCmp, dupCmp)),
		}
		s.tables[name] = ts
	}
	return &memTable{store: s, state: ts}, nil
}

// Tables implements kvstore.Store.
func (s *Store) Tables() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, kvstore.ErrStoreClosed
	}
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Begin implements kvstore.Store. Writable transactions serialize on a
// single writer slot; ctx cancels the wait for it.
func (s *Store) Begin(ctx context.Context, writable bool) (kvstore.Txn, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, kvstore.ErrStoreClosed
	}
	s.mu.Unlock()

	if writable {
		select {
		case s.writer <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	txn := &memTxn{store: s, writable: writable, trees: make(map[string]*btree.BTreeG[item])}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if writable {
			<-s.writer
		}
		return nil, kvstore.ErrStoreClosed
	}
	for name, ts := range s.tables {
		txn.trees[name] = ts.tree.Clone()
	}
	s.mu.Unlock()

	return txn, nil
}

// Close implements kvstore.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type memTxn struct {
	store    *Store
	writable bool
	trees    map[string]*btree.BTreeG[item]
	done     bool
}

var _ kvstore.Txn = (*memTxn)(nil)

func (t *memTxn) Writable() bool { return t.writable }

// Commit swaps the transaction's table clones into the store.
func (t *memTxn) Commit() error {
	if t.done {
		return kvstore.ErrTxnDone
	}
	t.done = true
	if !t.writable {
		return nil
	}
	defer func() { <-t.store.writer }()

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.closed {
		return kvstore.ErrStoreClosed
	}
	for name, tree := range t.trees {
		if ts, ok := t.store.tables[name]; ok {
			ts.tree = tree
		}
	}
	return nil
}

func (t *memTxn) Abort() error {
	if t.done {
		return nil
	}
	t.done = true
	if t.writable {
		<-t.store.writer
	}
	return nil
}

// treeFor resolves the transaction's clone of the named table, cloning
// lazily when the table was created after the transaction began.
func (t *memTxn) treeFor(ts *tableState, write bool) (*btree.BTreeG[item], error) {
	if t.done {
		return nil, kvstore.ErrTxnDone
	}
	if write && !t.writable {
		return nil, kvstore.ErrReadOnlyTxn
	}
	tree, ok := t.trees[ts.name]
	if !ok {
		t.store.mu.Lock()
		tree = ts.tree.Clone()
		t.store.mu.Unlock()
		t.trees[ts.name] = tree
	}
	return tree, nil
}

func resolveTxn(s *Store, txn kvstore.Txn) (*memTxn, error) {
	mt, ok := txn.(*memTxn)
	if !ok || mt.store != s {
		return nil, errForeignTxn
	}
	return mt, nil
}
