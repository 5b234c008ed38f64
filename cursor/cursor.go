// Package cursor defines the bidirectional random-access result contract
// shared by index queries and in-memory ordered sets.
//
// A Cursor starts out unpositioned: Current fails until a Next, Prev or
// GoTo succeeds. HasNext and HasPrev probe without committing, so an
// exhausted probe never disturbs the position. All cursors produced by this
// module preserve their source's order.
package cursor

import (
	"errors"
	"iter"
)

var (
	// ErrClosed is returned by operations on a closed cursor.
	ErrClosed = errors.New("cursor: closed")

	// ErrNotPositioned is returned by Current before the cursor has been
	// positioned by a successful Next, Prev or GoTo.
	ErrNotPositioned = errors.New("cursor: not positioned")

	// ErrExhausted is returned by Next or Prev when no element exists in
	// that direction.
	ErrExhausted = errors.New("cursor: no more elements")
)

// GotoResult reports the outcome of a GoTo call.
type GotoResult int

const (
	// GotoNone means no suitable position exists; the cursor kept its
	// previous position.
	GotoNone GotoResult = iota

	// GotoFound means the cursor is positioned on an element equal to the
	// target.
	GotoFound

	// GotoNear means the cursor is positioned on the nearest element
	// greater than or equal to the target. Only possible with exact=false.
	GotoNear
)

// String implements fmt.Stringer.
func (r GotoResult) String() string {
	switch r {
	case GotoFound:
		return "found"
	case GotoNear:
		return "near"
	default:
		return "none"
	}
}

// Cursor is a bidirectional, lazily advancing position over an ordered
// sequence of elements. Cursors are single-goroutine and must be closed
// when no longer needed; closing repeatedly is safe.
type Cursor[T any] interface {
	// HasNext reports whether an element follows the current position.
	HasNext() (bool, error)

	// Next advances and returns the following element. It fails with
	// ErrExhausted at the end of the sequence.
	Next() (T, error)

	// HasPrev reports whether an element precedes the current position.
	HasPrev() (bool, error)

	// Prev moves back and returns the preceding element. It fails with
	// ErrExhausted at the start of the sequence.
	Prev() (T, error)

	// Current returns the element at the position. It fails with
	// ErrNotPositioned before the first successful positioning call.
	Current() (T, error)

	// GoTo repositions to the element equal to v. With exact=false it may
	// instead position at the nearest element >= v, reporting GotoNear.
	// On GotoNone the previous position is kept.
	GoTo(v T, exact bool) (GotoResult, error)

	// Ordered reports whether iteration follows the source's sort order.
	// Every cursor in this module is ordered.
	Ordered() bool

	// Close releases the underlying resources. Close is idempotent.
	Close() error
}

type emptyCursor[T any] struct{}

// Empty returns the empty cursor: every probe reports nothing, Close is a
// no-op. It is usable wherever a Cursor is expected.
func Empty[T any]() Cursor[T] { return emptyCursor[T]{} }

func (emptyCursor[T]) HasNext() (bool, error) { return false, nil }

func (emptyCursor[T]) HasPrev() (bool, error) { return false, nil }

func (emptyCursor[T]) Next() (T, error) {
	var zero T
	return zero, ErrExhausted
}

func (emptyCursor[T]) Prev() (T, error) {
	var zero T
	return zero, ErrExhausted
}

func (emptyCursor[T]) Current() (T, error) {
	var zero T
	return zero, ErrNotPositioned
}

func (emptyCursor[T]) GoTo(T, bool) (GotoResult, error) { return GotoNone, nil }

func (emptyCursor[T]) Ordered() bool { return true }

func (emptyCursor[T]) Close() error { return nil }

// Collect drains the cursor forward from its current position and returns
// the elements in iteration order. The cursor is not closed.
func Collect[T any](c Cursor[T]) ([]T, error) {
	var out []T
	for {
		ok, err := c.HasNext()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		v, err := c.Next()
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

// All returns the cursor's remaining elements as a forward iterator.
// Iteration stops at the first error, which is yielded with a zero element.
func All[T any](c Cursor[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for {
			ok, err := c.HasNext()
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !ok {
				return
			}
			v, err := c.Next()
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}
