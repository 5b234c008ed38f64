package index

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// Converter is a bidirectional, deterministic codec between a domain type
// and its canonical byte representation. Indices compare the byte form,
// never the domain type, so a converter for a natural-byte-order table must
// be order-preserving.
type Converter[T any] interface {
	Encode(v T) ([]byte, error)
	Decode(b []byte) (T, error)
}

type bytesConverter struct{}

// Bytes returns the identity converter for raw byte strings. Encode copies
// its input so index entries never alias caller buffers.
func Bytes() Converter[[]byte] { return bytesConverter{} }

func (bytesConverter) Encode(v []byte) ([]byte, error) { return bytes.Clone(v), nil }

func (bytesConverter) Decode(b []byte) ([]byte, error) { return bytes.Clone(b), nil }

type stringConverter struct{}

// String returns the converter for strings in their UTF-8 byte form, which
// is order-preserving under the default comparator.
func String() Converter[string] { return stringConverter{} }

func (stringConverter) Encode(v string) ([]byte, error) { return []byte(v), nil }

func (stringConverter) Decode(b []byte) (string, error) { return string(b), nil }

type uint64Converter struct{}

// Uint64 returns the converter for uint64 in fixed-width big-endian form,
// which is order-preserving under the default comparator.
func Uint64() Converter[uint64] { return uint64Converter{} }

func (uint64Converter) Encode(v uint64) ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, v), nil
}

func (uint64Converter) Decode(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("index: uint64 converter: want 8 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

type uuidConverter struct{}

// UUID returns the converter for uuid.UUID in its 16-byte binary form.
func UUID() Converter[uuid.UUID] { return uuidConverter{} }

func (uuidConverter) Encode(v uuid.UUID) ([]byte, error) { return v[:], nil }

func (uuidConverter) Decode(b []byte) (uuid.UUID, error) {
	return uuid.FromBytes(b)
}
