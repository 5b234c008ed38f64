// Package txn supplies explicit transaction contexts for index operations,
// a manager that runs functions inside retried transactions, and a monitor
// collecting transaction metrics.
package txn

import (
	"errors"
	"io"
	"sync"

	"github.com/hupe1980/graphstore/kvstore"
)

// ErrDone is returned when a finished context is used again.
var ErrDone = errors.New("txn: context is done")

// Context owns one kvstore transaction together with every cursor opened
// under it. Index operations borrow the context; the cursors they return
// attach themselves so that ending the transaction closes them all.
type Context struct {
	txn kvstore.Txn

	mu      sync.Mutex
	cursors map[io.Closer]struct{}
	done    bool
}

// NewContext wraps a started transaction.
func NewContext(t kvstore.Txn) *Context {
	return &Context{txn: t, cursors: make(map[io.Closer]struct{})}
}

// Txn returns the underlying transaction handle.
func (c *Context) Txn() kvstore.Txn { return c.txn }

// Writable reports whether the transaction accepts writes.
func (c *Context) Writable() bool { return c.txn.Writable() }

// Done reports whether the context has committed or aborted.
func (c *Context) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Attach registers a cursor to be closed when the transaction ends.
func (c *Context) Attach(cl io.Closer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return ErrDone
	}
	c.cursors[cl] = struct{}{}
	return nil
}

// Detach removes a cursor that closed itself.
func (c *Context) Detach(cl io.Closer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cursors, cl)
}

// take marks the context done and returns the cursors to close.
func (c *Context) take() ([]io.Closer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return nil, ErrDone
	}
	c.done = true
	cursors := make([]io.Closer, 0, len(c.cursors))
	for cl := range c.cursors {
		cursors = append(cursors, cl)
	}
	c.cursors = nil
	return cursors, nil
}

// Commit closes every attached cursor and commits the transaction. If a
// cursor close fails the transaction is aborted instead and the close
// error is returned.
func (c *Context) Commit() error {
	cursors, err := c.take()
	if err != nil {
		return err
	}
	var firstErr error
	for _, cl := range cursors {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		_ = c.txn.Abort()
		return firstErr
	}
	return c.txn.Commit()
}

// Abort closes every attached cursor and aborts the transaction. Cursor
// close failures are ignored so the caller's primary error is not masked.
// Aborting a done context is a no-op.
func (c *Context) Abort() error {
	cursors, err := c.take()
	if err != nil {
		return nil
	}
	for _, cl := range cursors {
		_ = cl.Close()
	}
	return c.txn.Abort()
}
