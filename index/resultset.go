package index

import (
	"github.com/hupe1980/graphstore/cursor"
	"github.com/hupe1980/graphstore/kvstore"
	"github.com/hupe1980/graphstore/txn"
)

// resultSet adapts a positioned kvstore cursor to the cursor.Cursor
// contract. It is created with the store cursor already ON the first
// element ("primed"): the first Next yields that element without moving.
// Afterwards the store position tracks the logical position exactly; a
// HasNext/HasPrev probe moves once and immediately moves back.
type resultSet[T any] struct {
	tc *txn.Context
	kc kvstore.Cursor

	decode   func() (T, error)
	moveNext func() (bool, error)
	movePrev func() (bool, error)
	lookup   func(v T, exact bool) (cursor.GotoResult, error)

	cur        T
	positioned bool
	primed     bool
	closed     bool
}

var _ cursor.Cursor[any] = (*resultSet[any])(nil)

func (rs *resultSet[T]) take() (T, error) {
	v, err := rs.decode()
	if err != nil {
		var zero T
		return zero, err
	}
	rs.cur = v
	rs.positioned = true
	rs.primed = false
	return v, nil
}

// HasNext implements cursor.Cursor.
func (rs *resultSet[T]) HasNext() (bool, error) {
	if rs.closed {
		return false, cursor.ErrClosed
	}
	if rs.primed {
		return true, nil
	}
	ok, err := rs.moveNext()
	if err != nil || !ok {
		return false, err
	}
	if _, err := rs.movePrev(); err != nil {
		return false, err
	}
	return true, nil
}

// Next implements cursor.Cursor.
func (rs *resultSet[T]) Next() (T, error) {
	var zero T
	if rs.closed {
		return zero, cursor.ErrClosed
	}
	if rs.primed {
		return rs.take()
	}
	ok, err := rs.moveNext()
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, cursor.ErrExhausted
	}
	return rs.take()
}

// HasPrev implements cursor.Cursor.
func (rs *resultSet[T]) HasPrev() (bool, error) {
	if rs.closed {
		return false, cursor.ErrClosed
	}
	if rs.primed || !rs.positioned {
		return false, nil
	}
	ok, err := rs.movePrev()
	if err != nil || !ok {
		return false, err
	}
	if _, err := rs.moveNext(); err != nil {
		return false, err
	}
	return true, nil
}

// Prev implements cursor.Cursor.
func (rs *resultSet[T]) Prev() (T, error) {
	var zero T
	if rs.closed {
		return zero, cursor.ErrClosed
	}
	if rs.primed || !rs.positioned {
		return zero, cursor.ErrExhausted
	}
	ok, err := rs.movePrev()
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, cursor.ErrExhausted
	}
	return rs.take()
}

// Current implements cursor.Cursor.
func (rs *resultSet[T]) Current() (T, error) {
	var zero T
	if rs.closed {
		return zero, cursor.ErrClosed
	}
	if !rs.positioned {
		return zero, cursor.ErrNotPositioned
	}
	return rs.cur, nil
}

// GoTo implements cursor.Cursor. On GotoNone the store cursor kept its
// position, so the logical position is unchanged as well.
func (rs *resultSet[T]) GoTo(v T, exact bool) (cursor.GotoResult, error) {
	if rs.closed {
		return cursor.GotoNone, cursor.ErrClosed
	}
	r, err := rs.lookup(v, exact)
	if err != nil || r == cursor.GotoNone {
		return cursor.GotoNone, err
	}
	if _, err := rs.take(); err != nil {
		return cursor.GotoNone, err
	}
	return r, nil
}

// Ordered implements cursor.Cursor.
func (rs *resultSet[T]) Ordered() bool { return true }

// Close implements cursor.Cursor. It detaches from the transaction context
// and releases the store cursor. Close is idempotent.
func (rs *resultSet[T]) Close() error {
	if rs.closed {
		return nil
	}
	rs.closed = true
	rs.tc.Detach(rs)
	return rs.kc.Close()
}

// newSingleKeyResultSet wraps kc, positioned on the first duplicate of kb,
// as a cursor over exactly that key's values.
func newSingleKeyResultSet[K, V any](tc *txn.Context, kc kvstore.Cursor, kb []byte, ix *Index[K, V]) cursor.Cursor[V] {
	rs := &resultSet[V]{tc: tc, kc: kc, primed: true}
	rs.decode = func() (V, error) { return ix.valConv.Decode(kc.Value()) }
	rs.moveNext = func() (bool, error) { return boundedMove(kc, kb, ix.keyCmp, kc.Next, kc.Prev) }
	rs.movePrev = func() (bool, error) { return boundedMove(kc, kb, ix.keyCmp, kc.Prev, kc.Next) }
	rs.lookup = func(v V, exact bool) (cursor.GotoResult, error) {
		return lookupValue(kc, kb, v, exact, ix)
	}
	return rs
}

// newKeyRangeResultSet wraps kc, positioned on a boundary entry, as a
// cursor over the remaining entries of the whole table. Backward sets
// iterate toward smaller keys: their Next is the store's Prev.
func newKeyRangeResultSet[K, V any](tc *txn.Context, kc kvstore.Cursor, ix *Index[K, V], forward bool) cursor.Cursor[V] {
	rs := &resultSet[V]{tc: tc, kc: kc, primed: true}
	rs.decode = func() (V, error) { return ix.valConv.Decode(kc.Value()) }
	if forward {
		rs.moveNext, rs.movePrev = kc.Next, kc.Prev
	} else {
		rs.moveNext, rs.movePrev = kc.Prev, kc.Next
	}
	// Value lookup within the key at the store cursor's position.
	rs.lookup = func(v V, exact bool) (cursor.GotoResult, error) {
		return lookupValue(kc, kc.Key(), v, exact, ix)
	}
	return rs
}

// newKeyScanResultSet wraps kc, positioned on the table's first entry, as a
// cursor over the distinct keys.
func newKeyScanResultSet[K, V any](tc *txn.Context, kc kvstore.Cursor, ix *Index[K, V]) cursor.Cursor[K] {
	rs := &resultSet[K]{tc: tc, kc: kc, primed: true}
	rs.decode = func() (K, error) { return ix.keyConv.Decode(kc.Key()) }
	rs.moveNext = kc.NextDistinct
	rs.movePrev = func() (bool, error) { return prevDistinct(kc) }
	rs.lookup = func(k K, exact bool) (cursor.GotoResult, error) {
		kb, err := ix.keyConv.Encode(k)
		if err != nil {
			return cursor.GotoNone, err
		}
		if exact {
			ok, err := kc.Seek(kb)
			if err != nil || !ok {
				return cursor.GotoNone, err
			}
			return cursor.GotoFound, nil
		}
		ok, err := kc.SeekRange(kb)
		if err != nil || !ok {
			return cursor.GotoNone, err
		}
		if ix.keyCmp(kc.Key(), kb) == 0 {
			return cursor.GotoFound, nil
		}
		return cursor.GotoNear, nil
	}
	return rs
}

// boundedMove advances kc with move but refuses to leave the key kb,
// undoing the step with back when it crossed into another key.
func boundedMove(kc kvstore.Cursor, kb []byte, keyCmp kvstore.Comparator, move, back func() (bool, error)) (bool, error) {
	ok, err := move()
	if err != nil || !ok {
		return false, err
	}
	if keyCmp(kc.Key(), kb) != 0 {
		if _, err := back(); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// prevDistinct positions kc on the FIRST duplicate of the preceding
// distinct key.
func prevDistinct(kc kvstore.Cursor) (bool, error) {
	ok, err := kc.Prev()
	if err != nil || !ok {
		return false, err
	}
	// Prev lands on the previous key's last duplicate; rewind to its first.
	return kc.Seek(kc.Key())
}

// lookupValue repositions kc onto value v within the duplicates of key kb.
func lookupValue[K, V any](kc kvstore.Cursor, kb []byte, v V, exact bool, ix *Index[K, V]) (cursor.GotoResult, error) {
	vb, err := ix.valConv.Encode(v)
	if err != nil {
		return cursor.GotoNone, err
	}
	if exact {
		ok, err := kc.SeekPair(kb, vb)
		if err != nil || !ok {
			return cursor.GotoNone, err
		}
		return cursor.GotoFound, nil
	}
	ok, err := kc.SeekPairRange(kb, vb)
	if err != nil || !ok {
		return cursor.GotoNone, err
	}
	if ix.dupCmp(kc.Value(), vb) == 0 {
		return cursor.GotoFound, nil
	}
	return cursor.GotoNear, nil
}
