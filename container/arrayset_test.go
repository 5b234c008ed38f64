package container

import (
	"cmp"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphstore/cursor"
)

func TestArraySetAddRemove(t *testing.T) {
	s := NewArraySet[int](cmp.Compare[int])

	// 1) Add out of order, duplicates rejected.
	require.True(t, s.Add(3))
	require.True(t, s.Add(1))
	require.True(t, s.Add(2))
	require.False(t, s.Add(2))
	require.Equal(t, 3, s.Len())

	// 2) Elements come back sorted.
	var got []int
	for v := range s.All() {
		got = append(got, v)
	}
	assert.Equal(t, []int{1, 2, 3}, got)

	// 3) First/Last.
	first, ok := s.First()
	require.True(t, ok)
	assert.Equal(t, 1, first)
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 3, last)

	// 4) Remove present and absent.
	require.True(t, s.Remove(2))
	require.False(t, s.Remove(2))
	assert.Equal(t, 2, s.Len())
	assert.False(t, s.Contains(2))
	assert.True(t, s.Contains(1))

	// 5) Clear empties but stays usable.
	s.Clear()
	assert.Equal(t, 0, s.Len())
	_, ok = s.First()
	assert.False(t, ok)
	require.True(t, s.Add(7))
	assert.True(t, s.Contains(7))
}

func TestArraySetRandomAgainstReference(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewArraySet[int](cmp.Compare[int])
	ref := make(map[int]struct{})

	// 1) Mixed random adds and removes mirror a map.
	for i := 0; i < 2000; i++ {
		v := rng.Intn(200)
		if rng.Intn(2) == 0 {
			_, present := ref[v]
			assert.Equal(t, !present, s.Add(v))
			ref[v] = struct{}{}
		} else {
			_, present := ref[v]
			assert.Equal(t, present, s.Remove(v))
			delete(ref, v)
		}
	}

	// 2) Same size, same sorted contents.
	require.Equal(t, len(ref), s.Len())
	want := make([]int, 0, len(ref))
	for v := range ref {
		want = append(want, v)
	}
	sort.Ints(want)
	var got []int
	for v := range s.All() {
		got = append(got, v)
	}
	assert.Equal(t, want, got)

	// 3) Every element is found by lookup.
	for _, v := range want {
		assert.True(t, s.Contains(v))
	}
}

func TestArraySetCursor(t *testing.T) {
	s := NewArraySet[string](cmp.Compare[string])
	for _, v := range []string{"c", "a", "e"} {
		require.True(t, s.Add(v))
	}

	c := s.Cursor()
	defer c.Close()

	// 1) Fresh cursor is unpositioned.
	_, err := c.Current()
	require.ErrorIs(t, err, cursor.ErrNotPositioned)
	ok, err := c.HasPrev()
	require.NoError(t, err)
	assert.False(t, ok)

	// 2) Forward walk.
	got, err := cursor.Collect(c)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "e"}, got)

	// 3) Exhausted at the end.
	_, err = c.Next()
	require.ErrorIs(t, err, cursor.ErrExhausted)

	// 4) Backward from the end.
	v, err := c.Prev()
	require.NoError(t, err)
	assert.Equal(t, "c", v)
	v, err = c.Prev()
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	_, err = c.Prev()
	require.ErrorIs(t, err, cursor.ErrExhausted)

	// 5) Current reflects the last yield.
	v, err = c.Current()
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.True(t, c.Ordered())
}

func TestArraySetCursorGoTo(t *testing.T) {
	s := NewArraySet[string](cmp.Compare[string])
	for _, v := range []string{"a", "c", "e"} {
		s.Add(v)
	}
	c := s.Cursor()
	defer c.Close()

	// 1) Exact hit.
	r, err := c.GoTo("c", true)
	require.NoError(t, err)
	assert.Equal(t, cursor.GotoFound, r)
	v, err := c.Current()
	require.NoError(t, err)
	assert.Equal(t, "c", v)

	// 2) Exact miss leaves the position alone.
	r, err = c.GoTo("b", true)
	require.NoError(t, err)
	assert.Equal(t, cursor.GotoNone, r)
	v, err = c.Current()
	require.NoError(t, err)
	assert.Equal(t, "c", v)

	// 3) Inexact miss lands on the next greater element.
	r, err = c.GoTo("d", false)
	require.NoError(t, err)
	assert.Equal(t, cursor.GotoNear, r)
	v, err = c.Current()
	require.NoError(t, err)
	assert.Equal(t, "e", v)

	// 4) Past the last element there is nothing near.
	r, err = c.GoTo("z", false)
	require.NoError(t, err)
	assert.Equal(t, cursor.GotoNone, r)
}
