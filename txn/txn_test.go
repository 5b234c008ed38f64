package txn

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphstore/kvstore"
	"github.com/hupe1980/graphstore/kvstore/memstore"
)

type closer struct {
	closed int
	err    error
}

func (c *closer) Close() error {
	c.closed++
	return c.err
}

func TestContextClosesCursorsOnCommit(t *testing.T) {
	s := memstore.New()
	defer s.Close() //nolint:errcheck

	kt, err := s.Begin(context.Background(), true)
	require.NoError(t, err)
	tc := NewContext(kt)

	a, b := &closer{}, &closer{}
	require.NoError(t, tc.Attach(a))
	require.NoError(t, tc.Attach(b))

	require.NoError(t, tc.Commit())
	assert.Equal(t, 1, a.closed)
	assert.Equal(t, 1, b.closed)
	assert.True(t, tc.Done())

	// Attaching to a done context fails; ending again is rejected/no-op.
	assert.ErrorIs(t, tc.Attach(&closer{}), ErrDone)
	assert.ErrorIs(t, tc.Commit(), ErrDone)
	assert.NoError(t, tc.Abort())
}

func TestContextCommitAbortsOnCloseFailure(t *testing.T) {
	s := memstore.New()
	defer s.Close() //nolint:errcheck
	tbl, err := s.Table("t", nil)
	require.NoError(t, err)

	kt, err := s.Begin(context.Background(), true)
	require.NoError(t, err)
	tc := NewContext(kt)
	require.NoError(t, tbl.Put(tc.Txn(), []byte("k"), []byte("v")))

	boom := errors.New("boom")
	require.NoError(t, tc.Attach(&closer{err: boom}))

	assert.ErrorIs(t, tc.Commit(), boom)

	// The write must not have been committed.
	rt, err := s.Begin(context.Background(), false)
	require.NoError(t, err)
	defer rt.Abort() //nolint:errcheck
	_, ok, err := tbl.Get(rt, []byte("k"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContextDetach(t *testing.T) {
	s := memstore.New()
	defer s.Close() //nolint:errcheck

	kt, err := s.Begin(context.Background(), true)
	require.NoError(t, err)
	tc := NewContext(kt)

	c := &closer{}
	require.NoError(t, tc.Attach(c))
	tc.Detach(c)
	require.NoError(t, tc.Commit())
	assert.Equal(t, 0, c.closed)
}

func TestManagerUpdateAndView(t *testing.T) {
	s := memstore.New()
	defer s.Close() //nolint:errcheck
	tbl, err := s.Table("t", nil)
	require.NoError(t, err)

	m := NewManager(s)
	ctx := context.Background()

	// 1) Update commits on nil return.
	err = m.Update(ctx, func(tc *Context) error {
		return tbl.Put(tc.Txn(), []byte("k"), []byte("v"))
	})
	require.NoError(t, err)

	// 2) View observes the committed write.
	err = m.View(ctx, func(tc *Context) error {
		v, ok, err := tbl.Get(tc.Txn(), []byte("k"))
		if err != nil {
			return err
		}
		require.True(t, ok)
		assert.Equal(t, []byte("v"), v)
		assert.False(t, tc.Writable())
		return nil
	})
	require.NoError(t, err)

	// 3) An fn error aborts the transaction.
	boom := errors.New("boom")
	err = m.Update(ctx, func(tc *Context) error {
		if err := tbl.Put(tc.Txn(), []byte("k2"), []byte("v2")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = m.View(ctx, func(tc *Context) error {
		_, ok, err := tbl.Get(tc.Txn(), []byte("k2"))
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)

	stats := m.Monitor().Stats()
	assert.Equal(t, int64(4), stats.Started)
	assert.Equal(t, int64(3), stats.Committed)
	assert.Equal(t, int64(1), stats.Aborted)
}

func TestManagerPanicAborts(t *testing.T) {
	s := memstore.New()
	defer s.Close() //nolint:errcheck
	tbl, err := s.Table("t", nil)
	require.NoError(t, err)

	m := NewManager(s)
	require.Panics(t, func() {
		_ = m.Update(context.Background(), func(tc *Context) error {
			_ = tbl.Put(tc.Txn(), []byte("k"), []byte("v"))
			panic("boom")
		})
	})

	// The writer slot must be free again and the write gone.
	err = m.View(context.Background(), func(tc *Context) error {
		_, ok, err := tbl.Get(tc.Txn(), []byte("k"))
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

// conflictStore wraps a store and fails the first n commits with
// kvstore.ErrConflict.
type conflictStore struct {
	kvstore.Store
	remaining atomic.Int32
}

func (c *conflictStore) Begin(ctx context.Context, writable bool) (kvstore.Txn, error) {
	t, err := c.Store.Begin(ctx, writable)
	if err != nil {
		return nil, err
	}
	return &conflictTxn{Txn: t, store: c}, nil
}

type conflictTxn struct {
	kvstore.Txn
	store *conflictStore
}

func (t *conflictTxn) Commit() error {
	if t.store.remaining.Add(-1) >= 0 {
		_ = t.Txn.Abort()
		return kvstore.ErrConflict
	}
	return t.Txn.Commit()
}

func TestManagerRetriesOnConflict(t *testing.T) {
	inner := memstore.New()
	defer inner.Close() //nolint:errcheck
	tbl, err := inner.Table("t", nil)
	require.NoError(t, err)

	cs := &conflictStore{Store: inner}
	cs.remaining.Store(2)

	m := NewManager(cs, func(o *Options) {
		o.RetryBackoff = time.Microsecond
	})

	attempts := 0
	err = m.Update(context.Background(), func(tc *Context) error {
		attempts++
		return tbl.Put(tc.Txn(), []byte("k"), []byte("v"))
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)

	stats := m.Monitor().Stats()
	assert.Equal(t, int64(1), stats.Started)
	assert.Equal(t, int64(2), stats.Retries)
	assert.Equal(t, int64(1), stats.Committed)
}

func TestManagerRetriesExhausted(t *testing.T) {
	inner := memstore.New()
	defer inner.Close() //nolint:errcheck
	_, err := inner.Table("t", nil)
	require.NoError(t, err)

	cs := &conflictStore{Store: inner}
	cs.remaining.Store(100)

	m := NewManager(cs, func(o *Options) {
		o.MaxRetries = 2
		o.RetryBackoff = time.Microsecond
	})

	err = m.Update(context.Background(), func(tc *Context) error { return nil })
	assert.ErrorIs(t, err, kvstore.ErrConflict)
	assert.Equal(t, int64(2), m.Monitor().Stats().Retries)
}

func TestMonitorRecords(t *testing.T) {
	s := memstore.New()
	defer s.Close() //nolint:errcheck

	m := NewManager(s)
	ctx := context.Background()

	// Unnamed transactions are only recorded while collection is enabled.
	require.NoError(t, m.Update(ctx, func(*Context) error { return nil }))
	assert.Empty(t, m.Monitor().All())

	m.Monitor().Enable()
	require.NoError(t, m.Update(ctx, func(*Context) error { return nil }))
	assert.Len(t, m.Monitor().All(), 1)
	m.Monitor().Disable()

	// Transact records regardless of the collection flag.
	require.NoError(t, m.Transact(ctx, "rebuild", func(*Context) error { return nil }))
	infos := m.Monitor().Lookup("rebuild")
	require.Len(t, infos, 1)
	assert.True(t, infos[0].Committed)
	assert.Equal(t, 0, infos[0].Retries)

	m.Monitor().Reset()
	assert.Empty(t, m.Monitor().All())
	assert.False(t, m.Monitor().Enabled())
}
