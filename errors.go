package graphstore

import (
	"errors"
	"fmt"

	"github.com/hupe1980/graphstore/index"
	"github.com/hupe1980/graphstore/kvstore"
)

var (
	// ErrClosed is returned when the store is used after Close.
	ErrClosed = errors.New("graphstore: store is closed")

	// ErrConflict is returned when a write transaction lost against a
	// concurrent one even after the configured retries.
	ErrConflict = errors.New("graphstore: transaction conflict")
)

// ErrUnknownCodec indicates a snapshot stream names a compression codec
// this build does not carry.
type ErrUnknownCodec struct {
	Name string
}

func (e *ErrUnknownCodec) Error() string {
	return fmt.Sprintf("unknown snapshot codec: %q", e.Name)
}

// ErrBadSnapshot indicates a malformed snapshot stream.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrBadSnapshot struct {
	Offset int64
	Reason string
	cause  error
}

func (e *ErrBadSnapshot) Error() string {
	return fmt.Sprintf("malformed snapshot at offset %d: %s", e.Offset, e.Reason)
}

func (e *ErrBadSnapshot) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Conflict unification: callers retry against one sentinel.
	if errors.Is(err, kvstore.ErrConflict) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}

	// Closed-state unification.
	if errors.Is(err, kvstore.ErrStoreClosed) || errors.Is(err, index.ErrIndexClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	return err
}
