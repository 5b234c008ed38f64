package graphstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/graphstore/compress"
	"github.com/hupe1980/graphstore/cursor"
	"github.com/hupe1980/graphstore/index"
	"github.com/hupe1980/graphstore/txn"
)

func seedStore(t *testing.T, s *Store) *index.Index[string, string] {
	t.Helper()
	idx, err := OpenIndex(s, "byName", index.String(), index.String())
	require.NoError(t, err)
	err = s.Update(context.Background(), func(tc *txn.Context) error {
		for _, e := range []struct{ k, v string }{
			{"a", "v1"}, {"a", "v2"}, {"b", "w1"}, {"c", "x1"},
		} {
			if err := idx.Add(tc, e.k, e.v); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return idx
}

func allValues(t *testing.T, s *Store, idx *index.Index[string, string]) []string {
	t.Helper()
	var got []string
	err := s.View(context.Background(), func(tc *txn.Context) error {
		c, err := idx.ScanValues(tc)
		if err != nil {
			return err
		}
		defer c.Close() //nolint:errcheck
		got, err = cursor.Collect(c)
		return err
	})
	require.NoError(t, err)
	return got
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	for _, codec := range []compress.Codec{compress.Zstd{}, compress.LZ4{}, compress.None{}} {
		t.Run(codec.Name(), func(t *testing.T) {
			src, err := Memory().SnapshotCodec(codec).Build()
			require.NoError(t, err)
			defer src.Close() //nolint:errcheck
			srcIdx := seedStore(t, src)

			// 1) Snapshot the source.
			var buf bytes.Buffer
			require.NoError(t, src.Snapshot(context.Background(), &buf))

			// 2) Restore into a fresh store.
			dst, err := Memory().Build()
			require.NoError(t, err)
			defer dst.Close() //nolint:errcheck
			require.NoError(t, dst.Restore(context.Background(), bytes.NewReader(buf.Bytes())))

			// 3) Same contents.
			dstIdx, err := OpenIndex(dst, "byName", index.String(), index.String())
			require.NoError(t, err)
			assert.Equal(t, allValues(t, src, srcIdx), allValues(t, dst, dstIdx))
		})
	}
}

func TestSnapshotRestoreAcrossBackends(t *testing.T) {
	src, err := Pebble(t.TempDir()).Build()
	require.NoError(t, err)
	defer src.Close() //nolint:errcheck
	srcIdx := seedStore(t, src)

	var buf bytes.Buffer
	require.NoError(t, src.Snapshot(context.Background(), &buf))

	dst, err := Bolt(t.TempDir() + "/graph.db").NoSync().Build()
	require.NoError(t, err)
	defer dst.Close() //nolint:errcheck
	require.NoError(t, dst.Restore(context.Background(), bytes.NewReader(buf.Bytes())))

	dstIdx, err := OpenIndex(dst, "byName", index.String(), index.String())
	require.NoError(t, err)
	assert.Equal(t, allValues(t, src, srcIdx), allValues(t, dst, dstIdx))
}

func TestSnapshotRestoreMerges(t *testing.T) {
	src, err := Memory().Build()
	require.NoError(t, err)
	defer src.Close() //nolint:errcheck
	seedStore(t, src)

	var buf bytes.Buffer
	require.NoError(t, src.Snapshot(context.Background(), &buf))

	// The destination already holds an overlapping and a disjoint entry.
	dst, err := Memory().Build()
	require.NoError(t, err)
	defer dst.Close() //nolint:errcheck
	dstIdx, err := OpenIndex(dst, "byName", index.String(), index.String())
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, dst.Update(ctx, func(tc *txn.Context) error {
		if err := dstIdx.Add(tc, "a", "v1"); err != nil {
			return err
		}
		return dstIdx.Add(tc, "z", "local")
	}))

	require.NoError(t, dst.Restore(ctx, bytes.NewReader(buf.Bytes())))

	// Idempotent puts: "a"/"v1" stays single, "z" survives.
	assert.Equal(t, []string{"v1", "v2", "w1", "x1", "local"}, allValues(t, dst, dstIdx))
}

func TestSnapshotEmptyStore(t *testing.T) {
	s, err := Memory().Build()
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	var buf bytes.Buffer
	require.NoError(t, s.Snapshot(context.Background(), &buf))
	assert.NotZero(t, buf.Len())

	dst, err := Memory().Build()
	require.NoError(t, err)
	defer dst.Close() //nolint:errcheck
	require.NoError(t, dst.Restore(context.Background(), bytes.NewReader(buf.Bytes())))
}

func TestRestoreRejectsBadStreams(t *testing.T) {
	s, err := Memory().Build()
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck
	ctx := context.Background()

	// 1) Wrong magic.
	err = s.Restore(ctx, bytes.NewReader([]byte("NOTASNAPSHOT")))
	var bad *ErrBadSnapshot
	require.ErrorAs(t, err, &bad)

	// 2) Truncated stream.
	err = s.Restore(ctx, bytes.NewReader([]byte("GSN")))
	require.ErrorAs(t, err, &bad)

	// 3) Unknown codec name in an otherwise valid header.
	var hdr bytes.Buffer
	hdr.WriteString("GSNAP1")
	name := "deflate"
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(name)))
	hdr.Write(lenBuf[:n])
	hdr.WriteString(name)
	err = s.Restore(ctx, bytes.NewReader(hdr.Bytes()))
	var unknown *ErrUnknownCodec
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "deflate", unknown.Name)
}

func TestSnapshotHonorsIOLimitConfig(t *testing.T) {
	// A generous limit only proves the throttled path works end to end.
	s, err := Memory().IOLimit(1 << 20).Build()
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck
	idx := seedStore(t, s)

	var buf bytes.Buffer
	require.NoError(t, s.Snapshot(context.Background(), &buf))

	dst, err := Memory().IOLimit(1 << 20).Build()
	require.NoError(t, err)
	defer dst.Close() //nolint:errcheck
	require.NoError(t, dst.Restore(context.Background(), bytes.NewReader(buf.Bytes())))

	dstIdx, err := OpenIndex(dst, "byName", index.String(), index.String())
	require.NoError(t, err)
	assert.Equal(t, allValues(t, s, idx), allValues(t, dst, dstIdx))
}

func TestSnapshotMetrics(t *testing.T) {
	metrics := &BasicMetricsCollector{}
	s, err := Memory().Metrics(metrics).Build()
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck
	seedStore(t, s)

	var buf bytes.Buffer
	require.NoError(t, s.Snapshot(context.Background(), &buf))
	require.NoError(t, s.Restore(context.Background(), bytes.NewReader(buf.Bytes())))

	stats := metrics.GetStats()
	assert.Equal(t, int64(1), stats.SnapshotCount)
	assert.Equal(t, int64(buf.Len()), stats.SnapshotBytes)
	assert.Equal(t, int64(1), stats.RestoreCount)
	assert.Equal(t, int64(4), stats.RestoreEntries)
}
