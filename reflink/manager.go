package reflink

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/hupe1980/graphstore/event"
	"github.com/hupe1980/graphstore/index"
	"github.com/hupe1980/graphstore/kvstore"
	"github.com/hupe1980/graphstore/txn"
)

// AtomStore is the collaborator the manager cascades to when the last
// keeping reference goes away.
type AtomStore interface {
	// RemoveAtom removes the atom record of the referent.
	RemoveAtom(tx *txn.Context, referent Handle) error
	// SetManaged marks the referent as managed-only: no hard holders are
	// left but a floating reference still needs it.
	SetManaged(tx *txn.Context, referent Handle) error
}

// NoopAtomStore ignores cascade calls. Useful when reference bookkeeping is
// wanted without atom lifecycle management.
type NoopAtomStore struct{}

func (NoopAtomStore) RemoveAtom(*txn.Context, Handle) error { return nil }

func (NoopAtomStore) SetManaged(*txn.Context, Handle) error { return nil }

// Disposition reports what a Release did beyond decrementing.
type Disposition int

const (
	// RecordRetained: the count stayed above zero, the record lives on.
	RecordRetained Disposition = iota
	// RecordRemoved: the record was deleted with no atom-level effect.
	RecordRemoved
	// AtomManaged: the last hard reference went away but a floating
	// reference remains, so the atom was handed over to managed state.
	AtomManaged
	// AtomRemoved: the last keeping reference went away and the atom was
	// removed.
	AtomRemoved
)

func (d Disposition) String() string {
	switch d {
	case RecordRetained:
		return "record retained"
	case RecordRemoved:
		return "record removed"
	case AtomManaged:
		return "atom managed"
	case AtomRemoved:
		return "atom removed"
	default:
		return fmt.Sprintf("disposition(%d)", int(d))
	}
}

// Options configure a Manager.
type Options struct {
	// Logger receives acquire/release events. Nil discards them.
	Logger *slog.Logger
}

// Manager keeps one reference index per mode and applies the removal
// policy. It subscribes a veto handler on the event bus: removal requests
// for atoms with live hard or floating references are cancelled. All
// operations run under the caller's transaction context.
type Manager struct {
	atoms       AtomStore
	hard        *index.Index[Handle, []byte]
	symbolic    *index.Index[Handle, []byte]
	floating    *index.Index[Handle, []byte]
	logger      *slog.Logger
	unsubscribe func()
}

// NewManager opens the three mode indices in store and, when bus is not
// nil, subscribes the removal veto handler. atoms may be nil; cascades are
// then dropped.
func NewManager(store kvstore.Store, atoms AtomStore, bus *event.Bus, optFns ...func(*Options)) (*Manager, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if atoms == nil {
		atoms = NoopAtomStore{}
	}
	m := &Manager{atoms: atoms, logger: opts.Logger}

	var err error
	for _, b := range []struct {
		name string
		dst  **index.Index[Handle, []byte]
	}{
		{"refs_hard", &m.hard},
		{"refs_symbolic", &m.symbolic},
		{"refs_floating", &m.floating},
	} {
		*b.dst, err = index.Open(store, b.name, index.UUID(), index.Bytes(), func(o *index.Options) {
			o.Logger = opts.Logger
		})
		if err != nil {
			return nil, fmt.Errorf("reflink: open %s: %w", b.name, err)
		}
	}

	if bus != nil {
		m.unsubscribe = bus.Subscribe(m.handleRemoveRequest)
	}
	return m, nil
}

// Close unsubscribes the veto handler and closes the mode indices.
func (m *Manager) Close() error {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	var firstErr error
	for _, ix := range []*index.Index[Handle, []byte]{m.hard, m.symbolic, m.floating} {
		if err := ix.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Manager) indexFor(referent Handle, mode Mode) (*index.Index[Handle, []byte], error) {
	switch mode {
	case Hard:
		return m.hard, nil
	case Symbolic:
		return m.symbolic, nil
	case Floating:
		return m.floating, nil
	default:
		return nil, &InvariantError{Referent: referent, Mode: mode, Reason: "invalid mode"}
	}
}

// read returns the live record for referent in ix, if any.
func (m *Manager) read(tx *txn.Context, ix *index.Index[Handle, []byte], referent Handle) (Record, bool, error) {
	vb, ok, err := ix.FindFirst(tx, referent)
	if err != nil || !ok {
		return Record{}, false, err
	}
	rec, err := DecodeRecord(vb)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// replace swaps the referent's stored record for rec within one write.
func (m *Manager) replace(tx *txn.Context, ix *index.Index[Handle, []byte], old Record, rec Record) error {
	ob, err := old.Encode()
	if err != nil {
		return err
	}
	if err := ix.RemoveEntry(tx, old.Referent, ob); err != nil {
		return err
	}
	nb, err := rec.Encode()
	if err != nil {
		return err
	}
	return ix.Add(tx, rec.Referent, nb)
}

// Acquire adds one reference to referent under mode and returns the new
// count. The first acquire of a mode creates its record with count 1.
func (m *Manager) Acquire(tx *txn.Context, referent Handle, mode Mode) (uint32, error) {
	ix, err := m.indexFor(referent, mode)
	if err != nil {
		return 0, err
	}
	old, ok, err := m.read(tx, ix, referent)
	if err != nil {
		return 0, err
	}
	if !ok {
		rec := Record{Mode: mode, Count: 1, Referent: referent}
		b, err := rec.Encode()
		if err != nil {
			return 0, err
		}
		if err := ix.Add(tx, referent, b); err != nil {
			return 0, err
		}
		m.logger.Debug("reference acquired", "referent", referent, "mode", mode.String(), "count", 1)
		return 1, nil
	}
	rec := old
	rec.Count++
	if err := m.replace(tx, ix, old, rec); err != nil {
		return 0, err
	}
	m.logger.Debug("reference acquired", "referent", referent, "mode", mode.String(), "count", rec.Count)
	return rec.Count, nil
}

// Release drops one reference to referent under mode. Releasing a referent
// with no live record is an InvariantError. When the count reaches zero the
// record is deleted and the mode's removal policy applies; the returned
// Disposition says what happened.
func (m *Manager) Release(tx *txn.Context, referent Handle, mode Mode) (Disposition, error) {
	ix, err := m.indexFor(referent, mode)
	if err != nil {
		return RecordRetained, err
	}
	old, ok, err := m.read(tx, ix, referent)
	if err != nil {
		return RecordRetained, err
	}
	if !ok {
		return RecordRetained, &InvariantError{Referent: referent, Mode: mode, Reason: "release without live record"}
	}

	if old.Count > 1 {
		rec := old
		rec.Count--
		if err := m.replace(tx, ix, old, rec); err != nil {
			return RecordRetained, err
		}
		m.logger.Debug("reference released", "referent", referent, "mode", mode.String(), "count", rec.Count)
		return RecordRetained, nil
	}

	// Last holder: the record goes away and the mode's policy decides the
	// atom's fate.
	ob, err := old.Encode()
	if err != nil {
		return RecordRetained, err
	}
	if err := ix.RemoveEntry(tx, referent, ob); err != nil {
		return RecordRetained, err
	}

	d, err := m.cascade(tx, referent, mode)
	if err != nil {
		return d, err
	}
	m.logger.Debug("reference released", "referent", referent, "mode", mode.String(), "count", 0, "disposition", d.String())
	return d, nil
}

// cascade applies the policy after the last reference of mode went away:
// hard hands the atom over to a surviving floating reference or removes it;
// floating removes the atom unless a hard reference survives; symbolic
// never touches the atom.
func (m *Manager) cascade(tx *txn.Context, referent Handle, mode Mode) (Disposition, error) {
	switch mode {
	case Hard:
		_, live, err := m.read(tx, m.floating, referent)
		if err != nil {
			return RecordRemoved, err
		}
		if live {
			if err := m.atoms.SetManaged(tx, referent); err != nil {
				return RecordRemoved, err
			}
			return AtomManaged, nil
		}
		if err := m.atoms.RemoveAtom(tx, referent); err != nil {
			return RecordRemoved, err
		}
		return AtomRemoved, nil
	case Floating:
		_, live, err := m.read(tx, m.hard, referent)
		if err != nil {
			return RecordRemoved, err
		}
		if live {
			return RecordRemoved, nil
		}
		if err := m.atoms.RemoveAtom(tx, referent); err != nil {
			return RecordRemoved, err
		}
		return AtomRemoved, nil
	default:
		return RecordRemoved, nil
	}
}

// Count returns the referent's count under mode, zero when no record is
// live.
func (m *Manager) Count(tx *txn.Context, referent Handle, mode Mode) (uint32, error) {
	ix, err := m.indexFor(referent, mode)
	if err != nil {
		return 0, err
	}
	rec, ok, err := m.read(tx, ix, referent)
	if err != nil || !ok {
		return 0, err
	}
	return rec.Count, nil
}

// Records returns the referent's live records across all modes, in mode
// order.
func (m *Manager) Records(tx *txn.Context, referent Handle) ([]Record, error) {
	var out []Record
	for _, ix := range []*index.Index[Handle, []byte]{m.hard, m.symbolic, m.floating} {
		rec, ok, err := m.read(tx, ix, referent)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// handleRemoveRequest vetoes atom removals that a hard or floating
// reference still keeps alive. Symbolic references never block removal.
func (m *Manager) handleRemoveRequest(req event.RemoveRequest) (event.Result, error) {
	if req.Tx == nil {
		return event.Cancel, fmt.Errorf("reflink: remove request for %s without transaction", req.Atom)
	}
	for _, ix := range []*index.Index[Handle, []byte]{m.hard, m.floating} {
		_, live, err := m.read(req.Tx, ix, req.Atom)
		if err != nil {
			return event.Cancel, err
		}
		if live {
			return event.Cancel, nil
		}
	}
	return event.Proceed, nil
}
