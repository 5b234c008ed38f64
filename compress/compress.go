// Package compress centralizes the stream compression codecs used by
// snapshot persistence.
//
// Codec selection is a breaking-change boundary: snapshots store the codec
// name in their header, and a build that drops a codec can no longer read
// streams written with it.
package compress

import (
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec wraps a byte stream in a compression format. Implementations must
// be safe for concurrent use; the writers and readers they hand out are not.
type Codec interface {
	// Name is the stable identifier stored in stream headers.
	Name() string
	// NewWriter wraps w. The returned writer must be closed to flush.
	// Closing it does not close w.
	NewWriter(w io.Writer) (io.WriteCloser, error)
	// NewReader wraps r. Closing the returned reader does not close r.
	NewReader(r io.Reader) (io.ReadCloser, error)
}

// Default is the codec used when none is configured.
var Default Codec = Zstd{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "zstd":
		return Zstd{}, true
	case "lz4":
		return LZ4{}, true
	case "none":
		return None{}, true
	default:
		return nil, false
	}
}

// Zstd compresses with zstandard at the default speed/ratio trade-off.
type Zstd struct{}

// Name implements Codec.
func (Zstd) Name() string { return "zstd" }

// NewWriter implements Codec.
func (Zstd) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

// NewReader implements Codec.
func (Zstd) NewReader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

// LZ4 compresses with the LZ4 frame format: faster than zstd at a lower
// ratio.
type LZ4 struct{}

// Name implements Codec.
func (LZ4) Name() string { return "lz4" }

// NewWriter implements Codec.
func (LZ4) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return lz4.NewWriter(w), nil
}

// NewReader implements Codec.
func (LZ4) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(r)), nil
}

// None passes bytes through unchanged.
type None struct{}

// Name implements Codec.
func (None) Name() string { return "none" }

// NewWriter implements Codec.
func (None) NewWriter(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

// NewReader implements Codec.
func (None) NewReader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
