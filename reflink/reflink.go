// Package reflink manages counted reference links to atoms. A referent can
// be held under three modes with different removal semantics: hard and
// floating references keep the atom alive, symbolic references never do.
// Releasing the last hard or floating reference cascades to the atom store.
package reflink

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Handle identifies a referent.
type Handle = uuid.UUID

// Mode classifies a reference link.
type Mode uint8

const (
	// Hard references keep the referent alive; releasing the last one
	// removes the atom unless a floating reference remains.
	Hard Mode = 1
	// Symbolic references never prevent removal.
	Symbolic Mode = 2
	// Floating references keep the referent alive without owning it.
	Floating Mode = 3
)

// Valid reports whether m is one of the defined modes.
func (m Mode) Valid() bool {
	return m >= Hard && m <= Floating
}

func (m Mode) String() string {
	switch m {
	case Hard:
		return "hard"
	case Symbolic:
		return "symbolic"
	case Floating:
		return "floating"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// recordLen is the fixed encoded size: mode byte, big-endian count, raw
// referent bytes.
const recordLen = 1 + 4 + 16

// Record is one live reference link: Count holders of Referent under Mode.
// Count is at least 1 while the record exists; a decrement to zero deletes
// the record instead.
type Record struct {
	Mode     Mode
	Count    uint32
	Referent Handle
}

// Encode serializes the record as [mode:1][count:4 big-endian][referent:16].
func (r Record) Encode() ([]byte, error) {
	if !r.Mode.Valid() {
		return nil, &InvariantError{Referent: r.Referent, Mode: r.Mode, Reason: "invalid mode"}
	}
	if r.Count == 0 {
		return nil, &InvariantError{Referent: r.Referent, Mode: r.Mode, Reason: "zero count"}
	}
	b := make([]byte, recordLen)
	b[0] = byte(r.Mode)
	binary.BigEndian.PutUint32(b[1:5], r.Count)
	copy(b[5:], r.Referent[:])
	return b, nil
}

// DecodeRecord parses an encoded record, rejecting wrong lengths, unknown
// mode codes, and zero counts.
func DecodeRecord(b []byte) (Record, error) {
	if len(b) != recordLen {
		return Record{}, fmt.Errorf("reflink: record is %d bytes, want %d", len(b), recordLen)
	}
	r := Record{
		Mode:  Mode(b[0]),
		Count: binary.BigEndian.Uint32(b[1:5]),
	}
	copy(r.Referent[:], b[5:])
	if !r.Mode.Valid() {
		return Record{}, &InvariantError{Referent: r.Referent, Mode: r.Mode, Reason: "unknown mode code"}
	}
	if r.Count == 0 {
		return Record{}, &InvariantError{Referent: r.Referent, Mode: r.Mode, Reason: "zero count"}
	}
	return r, nil
}

// InvariantError reports a violated reference-counting invariant, such as
// releasing a referent with no live record.
type InvariantError struct {
	Referent Handle
	Mode     Mode
	Reason   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("reflink: %s reference to %s: %s", e.Mode, e.Referent, e.Reason)
}
