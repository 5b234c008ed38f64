package graphstore

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/hupe1980/graphstore/compress"
	"github.com/hupe1980/graphstore/internal/resource"
	"github.com/hupe1980/graphstore/txn"
)

// snapshotMagic identifies a snapshot stream. The stream is
// self-describing: the codec name follows the magic uncompressed, so
// Restore never depends on configuration.
var snapshotMagic = []byte("GSNAP1")

// Payload markers. Tables are written as
// 0x01 | name | entries (0x02 | key | value) | 0x03, with a final 0x00.
const (
	markerEnd          = 0x00
	markerSectionStart = 0x01
	markerEntry        = 0x02
	markerSectionEnd   = 0x03
)

// Snapshot streams the whole store to w: every table, every entry, in
// cursor order, compressed with the configured codec. It runs in one read
// transaction, holds one background-job slot, and honors the store's IO
// limit. The stream is restorable with Restore regardless of backend.
func (s *Store) Snapshot(ctx context.Context, w io.Writer) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	start := time.Now()
	written, err := s.snapshot(ctx, w)
	d := time.Since(start)
	s.metrics.RecordSnapshot(written, d, err)
	s.logger.LogSnapshot(ctx, s.codec.Name(), written, err)
	return err
}

func (s *Store) snapshot(ctx context.Context, w io.Writer) (int64, error) {
	if err := s.ctrl.AcquireBackground(ctx); err != nil {
		return 0, err
	}
	defer s.ctrl.ReleaseBackground()

	cw := &countingWriter{w: w}
	limited := resource.NewRateLimitedWriter(ctx, cw, s.ctrl)

	// Header: magic and codec name stay uncompressed.
	if _, err := limited.Write(snapshotMagic); err != nil {
		return cw.n, err
	}
	if err := writeBytes(limited, []byte(s.codec.Name())); err != nil {
		return cw.n, err
	}

	enc, err := s.codec.NewWriter(limited)
	if err != nil {
		return cw.n, err
	}
	bw := bufio.NewWriter(enc)

	tables, err := s.kv.Tables()
	if err != nil {
		return cw.n, err
	}
	sort.Strings(tables)

	t, err := s.kv.Begin(ctx, false)
	if err != nil {
		return cw.n, err
	}
	tc := txn.NewContext(t)
	defer tc.Abort() //nolint:errcheck

	for _, name := range tables {
		if err := s.snapshotTable(tc, name, bw); err != nil {
			return cw.n, err
		}
	}
	if err := bw.WriteByte(markerEnd); err != nil {
		return cw.n, err
	}
	if err := bw.Flush(); err != nil {
		return cw.n, err
	}
	if err := enc.Close(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

func (s *Store) snapshotTable(tc *txn.Context, name string, bw *bufio.Writer) error {
	table, err := s.kv.Table(name, nil)
	if err != nil {
		return err
	}
	if err := bw.WriteByte(markerSectionStart); err != nil {
		return err
	}
	if err := writeBytes(bw, []byte(name)); err != nil {
		return err
	}

	c, err := table.OpenCursor(tc.Txn())
	if err != nil {
		return err
	}
	defer c.Close() //nolint:errcheck

	ok, err := c.First()
	for ok && err == nil {
		if err := bw.WriteByte(markerEntry); err != nil {
			return err
		}
		if err := writeBytes(bw, c.Key()); err != nil {
			return err
		}
		if err := writeBytes(bw, c.Value()); err != nil {
			return err
		}
		ok, err = c.Next()
	}
	if err != nil {
		return err
	}
	return bw.WriteByte(markerSectionEnd)
}

// Restore replays a snapshot stream into the store within one write
// transaction. Puts are idempotent, so restoring into a non-empty store
// merges. The codec is resolved from the stream header; an unrecognized
// name fails with ErrUnknownCodec.
func (s *Store) Restore(ctx context.Context, r io.Reader) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	start := time.Now()
	entries, codecName, err := s.restore(ctx, r)
	d := time.Since(start)
	s.metrics.RecordRestore(entries, d, err)
	s.logger.LogRestore(ctx, codecName, entries, err)
	return err
}

func (s *Store) restore(ctx context.Context, r io.Reader) (int, string, error) {
	if err := s.ctrl.AcquireBackground(ctx); err != nil {
		return 0, "", err
	}
	defer s.ctrl.ReleaseBackground()

	hr := bufio.NewReader(resource.NewRateLimitedReader(ctx, r, s.ctrl))

	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(hr, magic); err != nil {
		return 0, "", &ErrBadSnapshot{Offset: 0, Reason: "short magic", cause: err}
	}
	if string(magic) != string(snapshotMagic) {
		return 0, "", &ErrBadSnapshot{Offset: 0, Reason: "bad magic"}
	}
	nameBytes, err := readBytes(hr)
	if err != nil {
		return 0, "", &ErrBadSnapshot{Offset: int64(len(snapshotMagic)), Reason: "unreadable codec name", cause: err}
	}
	codecName := string(nameBytes)
	codec, ok := compress.ByName(codecName)
	if !ok {
		return 0, codecName, &ErrUnknownCodec{Name: codecName}
	}

	dec, err := codec.NewReader(hr)
	if err != nil {
		return 0, codecName, err
	}
	defer dec.Close() //nolint:errcheck
	cr := &countingReader{r: dec}
	br := bufio.NewReader(cr)
	offset := func() int64 { return cr.n - int64(br.Buffered()) }

	t, err := s.kv.Begin(ctx, true)
	if err != nil {
		return 0, codecName, err
	}
	tc := txn.NewContext(t)

	entries, err := s.replay(tc, br, offset)
	if err != nil {
		_ = tc.Abort()
		return entries, codecName, err
	}
	return entries, codecName, tc.Commit()
}

func (s *Store) replay(tc *txn.Context, br *bufio.Reader, offset func() int64) (int, error) {
	entries := 0
	for {
		marker, err := br.ReadByte()
		if err != nil {
			return entries, &ErrBadSnapshot{Offset: offset(), Reason: "missing end marker", cause: err}
		}
		switch marker {
		case markerEnd:
			return entries, nil
		case markerSectionStart:
		default:
			return entries, &ErrBadSnapshot{Offset: offset(), Reason: fmt.Sprintf("unexpected marker 0x%02x", marker)}
		}

		nameBytes, err := readBytes(br)
		if err != nil {
			return entries, &ErrBadSnapshot{Offset: offset(), Reason: "unreadable table name", cause: err}
		}
		table, err := s.kv.Table(string(nameBytes), nil)
		if err != nil {
			return entries, err
		}

		for {
			marker, err := br.ReadByte()
			if err != nil {
				return entries, &ErrBadSnapshot{Offset: offset(), Reason: "truncated section", cause: err}
			}
			if marker == markerSectionEnd {
				break
			}
			if marker != markerEntry {
				return entries, &ErrBadSnapshot{Offset: offset(), Reason: fmt.Sprintf("unexpected marker 0x%02x in section", marker)}
			}
			key, err := readBytes(br)
			if err != nil {
				return entries, &ErrBadSnapshot{Offset: offset(), Reason: "unreadable entry key", cause: err}
			}
			val, err := readBytes(br)
			if err != nil {
				return entries, &ErrBadSnapshot{Offset: offset(), Reason: "unreadable entry value", cause: err}
			}
			if err := table.Put(tc.Txn(), key, val); err != nil {
				return entries, err
			}
			entries++
		}
	}
}

// writeBytes writes a uvarint length prefix followed by b.
func writeBytes(w io.Writer, b []byte) error {
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(b)))
	if _, err := w.Write(lenBuf[:n]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// readBytes reads one uvarint-length-prefixed byte string.
func readBytes(br *bufio.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(br)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(br, b); err != nil {
		return nil, err
	}
	return b, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
