package pebblestore

import (
	"bytes"
	"errors"
	"fmt"
)

// Composite key layout:
//
//	't' '!' <table> '!' esc(key) 0x00 0x01 esc(val)
//
// esc replaces 0x00 with 0x00 0xFF, which keeps lexicographic order: the
// 0x00 0x01 separator sorts after the end of a shorter key and before any
// escaped or plain content byte. 0x00 0x02 is the successor of a key's
// duplicate block, used for distinct-key seeks. Table names must not
// contain '!'.
//
// The table catalog lives under the 'm' '!' prefix so Tables survives a
// reopen.

var errCorruptKey = errors.New("pebblestore: corrupt composite key")

const (
	sepByte  = 0x01
	distByte = 0x02
	escByte  = 0xFF
)

func tablePrefix(table string) []byte {
	return []byte("t!" + table + "!")
}

func metaKey(table string) []byte {
	return []byte("m!" + table)
}

// appendEscaped appends src to dst with 0x00 escaped as 0x00 0xFF.
func appendEscaped(dst, src []byte) []byte {
	for _, b := range src {
		if b == 0x00 {
			dst = append(dst, 0x00, escByte)
		} else {
			dst = append(dst, b)
		}
	}
	return dst
}

// encodePair packs (key, val) into a composite pebble key.
func encodePair(prefix, key, val []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(key)+len(val)+4)
	out = append(out, prefix...)
	out = appendEscaped(out, key)
	out = append(out, 0x00, sepByte)
	out = appendEscaped(out, val)
	return out
}

// keyLowerBound is the smallest composite key of key's duplicate block.
func keyLowerBound(prefix, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(key)+2)
	out = append(out, prefix...)
	out = appendEscaped(out, key)
	return append(out, 0x00, sepByte)
}

// keyUpperBound is the exclusive end of key's duplicate block.
func keyUpperBound(prefix, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(key)+2)
	out = append(out, prefix...)
	out = appendEscaped(out, key)
	return append(out, 0x00, distByte)
}

// prefixUpperBound is the exclusive end of the whole table's keyspace.
func prefixUpperBound(prefix []byte) []byte {
	out := bytes.Clone(prefix)
	out[len(out)-1]++
	return out
}

// successor is the smallest byte string greater than k.
func successor(k []byte) []byte {
	return append(bytes.Clone(k), 0x00)
}

// decodePair splits a composite key back into (key, val).
func decodePair(prefix, composite []byte) (key, val []byte, err error) {
	if !bytes.HasPrefix(composite, prefix) {
		return nil, nil, fmt.Errorf("%w: missing table prefix", errCorruptKey)
	}
	rest := composite[len(prefix):]
	out := make([]byte, 0, len(rest))
	for i := 0; i < len(rest); i++ {
		b := rest[i]
		if b != 0x00 {
			out = append(out, b)
			continue
		}
		if i+1 >= len(rest) {
			return nil, nil, fmt.Errorf("%w: truncated escape", errCorruptKey)
		}
		i++
		switch rest[i] {
		case escByte:
			out = append(out, 0x00)
		case sepByte:
			if key != nil {
				return nil, nil, fmt.Errorf("%w: duplicate separator", errCorruptKey)
			}
			key = out
			out = make([]byte, 0, len(rest)-i)
		default:
			return nil, nil, fmt.Errorf("%w: bad escape byte %#x", errCorruptKey, rest[i])
		}
	}
	if key == nil {
		return nil, nil, fmt.Errorf("%w: missing separator", errCorruptKey)
	}
	return key, out, nil
}
