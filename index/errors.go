package index

import (
	"errors"
	"fmt"
)

// ErrIndexClosed is returned by operations on a closed index. The operation
// fails fast, before touching storage.
var ErrIndexClosed = errors.New("index: index is closed")

// StorageError wraps a fault of the underlying store, naming the index and
// the operation that hit it.
//
// The original underlying error can be accessed via errors.Unwrap.
type StorageError struct {
	Index string
	Op    string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("index %q: %s: %v", e.Index, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// storageErr wraps err unless it is nil.
func storageErr(name, op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Index: name, Op: op, Err: err}
}
