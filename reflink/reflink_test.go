package reflink

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphstore/event"
	"github.com/hupe1980/graphstore/kvstore/memstore"
	"github.com/hupe1980/graphstore/txn"
)

// recordingAtomStore captures cascade calls.
type recordingAtomStore struct {
	removed []Handle
	managed []Handle
}

func (r *recordingAtomStore) RemoveAtom(_ *txn.Context, h Handle) error {
	r.removed = append(r.removed, h)
	return nil
}

func (r *recordingAtomStore) SetManaged(_ *txn.Context, h Handle) error {
	r.managed = append(r.managed, h)
	return nil
}

func newTestManager(t *testing.T) (*Manager, *recordingAtomStore, *event.Bus, *txn.Manager) {
	t.Helper()
	s := memstore.New()
	t.Cleanup(func() { _ = s.Close() })
	atoms := &recordingAtomStore{}
	bus := event.NewBus()
	m, err := NewManager(s, atoms, bus)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m, atoms, bus, txn.NewManager(s)
}

func TestRecordCodec(t *testing.T) {
	id := uuid.New()

	// 1) Round trip.
	rec := Record{Mode: Floating, Count: 7, Referent: id}
	b, err := rec.Encode()
	require.NoError(t, err)
	require.Len(t, b, 21)
	assert.Equal(t, byte(3), b[0])
	got, err := DecodeRecord(b)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	// 2) Unknown mode code fails to decode.
	b[0] = 9
	_, err = DecodeRecord(b)
	var ie *InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, Mode(9), ie.Mode)

	// 3) Zero count fails both ways.
	_, err = Record{Mode: Hard, Count: 0, Referent: id}.Encode()
	assert.ErrorAs(t, err, &ie)
	b[0] = 1
	b[1], b[2], b[3], b[4] = 0, 0, 0, 0
	_, err = DecodeRecord(b)
	assert.ErrorAs(t, err, &ie)

	// 4) Wrong length fails.
	_, err = DecodeRecord(b[:20])
	assert.Error(t, err)

	// 5) Mode validity.
	assert.True(t, Hard.Valid())
	assert.True(t, Symbolic.Valid())
	assert.True(t, Floating.Valid())
	assert.False(t, Mode(0).Valid())
	assert.False(t, Mode(4).Valid())
}

func TestAcquireCounts(t *testing.T) {
	m, _, _, tm := newTestManager(t)
	ctx := context.Background()
	id := uuid.New()

	err := tm.Update(ctx, func(tc *txn.Context) error {
		// 1) First acquire creates the record with count 1.
		n, err := m.Acquire(tc, id, Hard)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), n)

		// 2) Repeated acquires increment.
		n, err = m.Acquire(tc, id, Hard)
		require.NoError(t, err)
		assert.Equal(t, uint32(2), n)
		n, err = m.Acquire(tc, id, Hard)
		require.NoError(t, err)
		assert.Equal(t, uint32(3), n)

		// 3) Modes count independently.
		n, err = m.Acquire(tc, id, Symbolic)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), n)

		// 4) Count reflects the records; absent mode counts zero.
		n, err = m.Count(tc, id, Hard)
		require.NoError(t, err)
		assert.Equal(t, uint32(3), n)
		n, err = m.Count(tc, id, Floating)
		require.NoError(t, err)
		assert.Equal(t, uint32(0), n)

		// 5) An invalid mode fails fast.
		_, err = m.Acquire(tc, id, Mode(0))
		var ie *InvariantError
		assert.ErrorAs(t, err, &ie)
		return nil
	})
	require.NoError(t, err)
}

func TestReleaseLastHardRemovesAtom(t *testing.T) {
	m, atoms, _, tm := newTestManager(t)
	ctx := context.Background()
	id := uuid.New()

	err := tm.Update(ctx, func(tc *txn.Context) error {
		_, err := m.Acquire(tc, id, Hard)
		require.NoError(t, err)
		n, err := m.Acquire(tc, id, Hard)
		require.NoError(t, err)
		require.Equal(t, uint32(2), n)

		// 1) Releasing above zero just decrements.
		d, err := m.Release(tc, id, Hard)
		require.NoError(t, err)
		assert.Equal(t, RecordRetained, d)

		// 2) The last hard release with no floating record removes the atom.
		d, err = m.Release(tc, id, Hard)
		require.NoError(t, err)
		assert.Equal(t, AtomRemoved, d)
		assert.Equal(t, []Handle{id}, atoms.removed)

		// 3) Nothing is left behind in any index.
		recs, err := m.Records(tc, id)
		require.NoError(t, err)
		assert.Empty(t, recs)
		return nil
	})
	require.NoError(t, err)
}

func TestReleaseLastHardWithFloatingManages(t *testing.T) {
	m, atoms, _, tm := newTestManager(t)
	ctx := context.Background()
	id := uuid.New()

	err := tm.Update(ctx, func(tc *txn.Context) error {
		_, err := m.Acquire(tc, id, Hard)
		require.NoError(t, err)
		_, err = m.Acquire(tc, id, Floating)
		require.NoError(t, err)

		// 1) The floating record keeps the atom: it becomes managed.
		d, err := m.Release(tc, id, Hard)
		require.NoError(t, err)
		assert.Equal(t, AtomManaged, d)
		assert.Equal(t, []Handle{id}, atoms.managed)
		assert.Empty(t, atoms.removed)

		// 2) Releasing the floating record with no hard record left removes
		// the atom.
		d, err = m.Release(tc, id, Floating)
		require.NoError(t, err)
		assert.Equal(t, AtomRemoved, d)
		assert.Equal(t, []Handle{id}, atoms.removed)
		return nil
	})
	require.NoError(t, err)
}

func TestReleaseFloatingWithHardKeepsAtom(t *testing.T) {
	m, atoms, _, tm := newTestManager(t)
	ctx := context.Background()
	id := uuid.New()

	err := tm.Update(ctx, func(tc *txn.Context) error {
		_, err := m.Acquire(tc, id, Hard)
		require.NoError(t, err)
		_, err = m.Acquire(tc, id, Floating)
		require.NoError(t, err)

		// The hard record survives: the floating release has no atom-level
		// effect.
		d, err := m.Release(tc, id, Floating)
		require.NoError(t, err)
		assert.Equal(t, RecordRemoved, d)
		assert.Empty(t, atoms.removed)
		assert.Empty(t, atoms.managed)
		return nil
	})
	require.NoError(t, err)
}

func TestReleaseSymbolicNeverCascades(t *testing.T) {
	m, atoms, _, tm := newTestManager(t)
	ctx := context.Background()
	id := uuid.New()

	err := tm.Update(ctx, func(tc *txn.Context) error {
		_, err := m.Acquire(tc, id, Symbolic)
		require.NoError(t, err)
		d, err := m.Release(tc, id, Symbolic)
		require.NoError(t, err)
		assert.Equal(t, RecordRemoved, d)
		assert.Empty(t, atoms.removed)
		assert.Empty(t, atoms.managed)
		return nil
	})
	require.NoError(t, err)
}

func TestReleaseWithoutRecordFails(t *testing.T) {
	m, _, _, tm := newTestManager(t)
	ctx := context.Background()
	id := uuid.New()

	err := tm.Update(ctx, func(tc *txn.Context) error {
		_, err := m.Release(tc, id, Hard)
		return err
	})
	var ie *InvariantError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, id, ie.Referent)
	assert.Equal(t, Hard, ie.Mode)
}

func TestRecordsAcrossModes(t *testing.T) {
	m, _, _, tm := newTestManager(t)
	ctx := context.Background()
	id := uuid.New()
	other := uuid.New()

	err := tm.Update(ctx, func(tc *txn.Context) error {
		for i := 0; i < 2; i++ {
			if _, err := m.Acquire(tc, id, Hard); err != nil {
				return err
			}
		}
		if _, err := m.Acquire(tc, id, Floating); err != nil {
			return err
		}
		if _, err := m.Acquire(tc, other, Symbolic); err != nil {
			return err
		}

		// Records returns only the referent's live records, in mode order.
		recs, err := m.Records(tc, id)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, Record{Mode: Hard, Count: 2, Referent: id}, recs[0])
		assert.Equal(t, Record{Mode: Floating, Count: 1, Referent: id}, recs[1])
		return nil
	})
	require.NoError(t, err)
}

func TestRemovalVeto(t *testing.T) {
	m, _, bus, tm := newTestManager(t)
	ctx := context.Background()
	hardAtom := uuid.New()
	floatAtom := uuid.New()
	symAtom := uuid.New()

	err := tm.Update(ctx, func(tc *txn.Context) error {
		if _, err := m.Acquire(tc, hardAtom, Hard); err != nil {
			return err
		}
		if _, err := m.Acquire(tc, floatAtom, Floating); err != nil {
			return err
		}
		if _, err := m.Acquire(tc, symAtom, Symbolic); err != nil {
			return err
		}
		return nil
	})
	require.NoError(t, err)

	err = tm.Update(ctx, func(tc *txn.Context) error {
		// 1) A hard reference vetoes removal.
		r, err := bus.PublishRemoveRequest(event.RemoveRequest{Atom: hardAtom, Tx: tc})
		require.NoError(t, err)
		assert.Equal(t, event.Cancel, r)

		// 2) A floating reference vetoes removal.
		r, err = bus.PublishRemoveRequest(event.RemoveRequest{Atom: floatAtom, Tx: tc})
		require.NoError(t, err)
		assert.Equal(t, event.Cancel, r)

		// 3) A symbolic reference alone never blocks removal.
		r, err = bus.PublishRemoveRequest(event.RemoveRequest{Atom: symAtom, Tx: tc})
		require.NoError(t, err)
		assert.Equal(t, event.Proceed, r)

		// 4) Unreferenced atoms are removable.
		r, err = bus.PublishRemoveRequest(event.RemoveRequest{Atom: uuid.New(), Tx: tc})
		require.NoError(t, err)
		assert.Equal(t, event.Proceed, r)
		return nil
	})
	require.NoError(t, err)

	// 5) A request without a transaction is refused.
	_, err = bus.PublishRemoveRequest(event.RemoveRequest{Atom: hardAtom})
	assert.Error(t, err)

	// 6) After Close the handler is unsubscribed.
	require.NoError(t, m.Close())
	r, err := bus.PublishRemoveRequest(event.RemoveRequest{Atom: hardAtom})
	require.NoError(t, err)
	assert.Equal(t, event.Proceed, r)
}

func TestReferencesPersistAcrossTransactions(t *testing.T) {
	m, atoms, _, tm := newTestManager(t)
	ctx := context.Background()
	id := uuid.New()

	err := tm.Update(ctx, func(tc *txn.Context) error {
		_, err := m.Acquire(tc, id, Hard)
		return err
	})
	require.NoError(t, err)

	err = tm.View(ctx, func(tc *txn.Context) error {
		n, err := m.Count(tc, id, Hard)
		require.NoError(t, err)
		assert.Equal(t, uint32(1), n)
		return nil
	})
	require.NoError(t, err)

	err = tm.Update(ctx, func(tc *txn.Context) error {
		d, err := m.Release(tc, id, Hard)
		require.NoError(t, err)
		assert.Equal(t, AtomRemoved, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []Handle{id}, atoms.removed)
}
