// Package container holds small in-memory collections that share the
// cursor contract of index result sets.
package container

import (
	"iter"

	"github.com/hupe1980/graphstore/cursor"
)

// ArraySet is a sorted set backed by a flat growable array. Lookup is
// O(log n); insertion and removal shift the tail, so the set suits a few
// dozen to a few thousand elements that are read much more often than they
// are changed. Compared to a pointer-linked tree, the flat array costs no
// per-element overhead and iterates by bumping an index, which is why this
// exists at all.
//
// The zero value is not usable; call NewArraySet. ArraySet is not safe for
// concurrent use. Head/tail/sub-range views are not supported: build a new
// set when a subset is needed.
type ArraySet[T any] struct {
	elems []T
	size  int
	cmp   func(a, b T) int
}

// NewArraySet creates an empty set ordered by cmp.
func NewArraySet[T any](cmp func(a, b T) int) *ArraySet[T] {
	return &ArraySet[T]{cmp: cmp}
}

// lookup binary-searches for v. It returns the index when found, and
// -(insertion point + 1) when not.
func (s *ArraySet[T]) lookup(v T) int {
	low, high := 0, s.size-1
	for low <= high {
		mid := (low + high) >> 1
		c := s.cmp(s.elems[mid], v)
		switch {
		case c < 0:
			low = mid + 1
		case c > 0:
			high = mid - 1
		default:
			return mid
		}
	}
	return -(low + 1)
}

// Add inserts v, keeping the array sorted. It reports whether the set
// changed; adding an element already present is a no-op.
func (s *ArraySet[T]) Add(v T) bool {
	idx := s.lookup(v)
	if idx >= 0 {
		return false
	}
	idx = -(idx + 1)
	if s.size < len(s.elems) {
		copy(s.elems[idx+1:s.size+1], s.elems[idx:s.size])
		s.elems[idx] = v
	} else {
		// Grow by 1.5x plus one, like the allocation never shrinks.
		grown := make([]T, s.size+s.size/2+1)
		copy(grown, s.elems[:idx])
		grown[idx] = v
		copy(grown[idx+1:], s.elems[idx:s.size])
		s.elems = grown
	}
	s.size++
	return true
}

// Remove deletes v. It reports whether the element was present. The
// backing allocation is kept.
func (s *ArraySet[T]) Remove(v T) bool {
	idx := s.lookup(v)
	if idx < 0 {
		return false
	}
	copy(s.elems[idx:s.size-1], s.elems[idx+1:s.size])
	s.size--
	var zero T
	s.elems[s.size] = zero
	return true
}

// Contains reports whether v is in the set.
func (s *ArraySet[T]) Contains(v T) bool {
	return s.lookup(v) >= 0
}

// Len returns the number of elements.
func (s *ArraySet[T]) Len() int { return s.size }

// First returns the smallest element.
func (s *ArraySet[T]) First() (T, bool) {
	if s.size == 0 {
		var zero T
		return zero, false
	}
	return s.elems[0], true
}

// Last returns the largest element.
func (s *ArraySet[T]) Last() (T, bool) {
	if s.size == 0 {
		var zero T
		return zero, false
	}
	return s.elems[s.size-1], true
}

// Clear empties the set, keeping the allocation.
func (s *ArraySet[T]) Clear() {
	var zero T
	for i := 0; i < s.size; i++ {
		s.elems[i] = zero
	}
	s.size = 0
}

// All iterates the elements in sort order.
func (s *ArraySet[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for i := 0; i < s.size; i++ {
			if !yield(s.elems[i]) {
				return
			}
		}
	}
}

// Cursor returns a cursor over the set with the same contract as index
// result sets, so in-memory sets and on-disk indices can be consumed
// polymorphically. Mutating the set invalidates outstanding cursors.
// Cursor-based removal is not supported.
func (s *ArraySet[T]) Cursor() cursor.Cursor[T] {
	return &arrayCursor[T]{set: s, pos: -1}
}

// arrayCursor tracks a position within the backing array. pos -1 is the
// unpositioned start state.
type arrayCursor[T any] struct {
	set *ArraySet[T]
	pos int
}

var _ cursor.Cursor[any] = (*arrayCursor[any])(nil)

// HasNext implements cursor.Cursor.
func (c *arrayCursor[T]) HasNext() (bool, error) {
	return c.pos+1 < c.set.size, nil
}

// Next implements cursor.Cursor.
func (c *arrayCursor[T]) Next() (T, error) {
	if c.pos+1 >= c.set.size {
		var zero T
		return zero, cursor.ErrExhausted
	}
	c.pos++
	return c.set.elems[c.pos], nil
}

// HasPrev implements cursor.Cursor.
func (c *arrayCursor[T]) HasPrev() (bool, error) {
	return c.pos > 0, nil
}

// Prev implements cursor.Cursor.
func (c *arrayCursor[T]) Prev() (T, error) {
	if c.pos <= 0 {
		var zero T
		return zero, cursor.ErrExhausted
	}
	c.pos--
	return c.set.elems[c.pos], nil
}

// Current implements cursor.Cursor.
func (c *arrayCursor[T]) Current() (T, error) {
	if c.pos < 0 {
		var zero T
		return zero, cursor.ErrNotPositioned
	}
	return c.set.elems[c.pos], nil
}

// GoTo implements cursor.Cursor.
func (c *arrayCursor[T]) GoTo(v T, exact bool) (cursor.GotoResult, error) {
	idx := c.set.lookup(v)
	if idx >= 0 {
		c.pos = idx
		return cursor.GotoFound, nil
	}
	if exact {
		return cursor.GotoNone, nil
	}
	idx = -(idx + 1)
	if idx >= c.set.size {
		return cursor.GotoNone, nil
	}
	c.pos = idx
	return cursor.GotoNear, nil
}

// Ordered implements cursor.Cursor.
func (c *arrayCursor[T]) Ordered() bool { return true }

// Close implements cursor.Cursor. Nothing is held, but the contract
// requires it.
func (c *arrayCursor[T]) Close() error { return nil }
