// Package event carries the removal-approval protocol: before an atom
// record is removed, interested parties get a chance to veto it.
package event

import (
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/graphstore/txn"
)

// Result is a handler's answer to a removal request.
type Result int

const (
	// Proceed lets the removal go ahead.
	Proceed Result = iota
	// Cancel vetoes the removal.
	Cancel
)

// RemoveRequest announces that the atom identified by Atom is about to be
// removed. Tx is the transaction performing the removal; handlers consult
// their state through it so vetoes see the removal's own view.
type RemoveRequest struct {
	Atom uuid.UUID
	Tx   *txn.Context
}

// Handler inspects a removal request and answers Proceed or Cancel. A
// handler error counts as neither: it aborts the publication.
type Handler func(RemoveRequest) (Result, error)

// Bus fans removal requests out to subscribed handlers in subscription
// order. The zero value is ready to use. Bus is safe for concurrent use;
// handlers run on the publishing goroutine and must not subscribe from
// within a callback.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers []subscription
}

type subscription struct {
	id int
	h  Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers h and returns a function that removes it again.
// Unsubscribing twice is harmless.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.handlers = append(b.handlers, subscription{id: id, h: h})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.handlers {
			if s.id == id {
				b.handlers = append(b.handlers[:i], b.handlers[i+1:]...)
				return
			}
		}
	}
}

// PublishRemoveRequest asks every handler about the removal, stopping at
// the first Cancel or handler error. With no handlers the removal proceeds.
func (b *Bus) PublishRemoveRequest(req RemoveRequest) (Result, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.handlers {
		r, err := s.h(req)
		if err != nil {
			return Cancel, err
		}
		if r == Cancel {
			return Cancel, nil
		}
	}
	return Proceed, nil
}
