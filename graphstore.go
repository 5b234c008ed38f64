package graphstore

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/graphstore/compress"
	"github.com/hupe1980/graphstore/event"
	"github.com/hupe1980/graphstore/index"
	"github.com/hupe1980/graphstore/internal/resource"
	"github.com/hupe1980/graphstore/kvstore"
	"github.com/hupe1980/graphstore/reflink"
	"github.com/hupe1980/graphstore/txn"
)

// Store is the facade over one storage backend: transactions, indices,
// reference links, snapshots. It is safe for concurrent use.
type Store struct {
	kv      kvstore.Store
	manager *txn.Manager
	bus     *event.Bus
	ctrl    *resource.Controller
	logger  *Logger
	metrics MetricsCollector
	codec   compress.Codec
	maxJobs int

	mu      sync.Mutex
	closers []io.Closer
	closed  atomic.Bool
}

// New wraps an already-opened backend. The backends under kvstore/ satisfy
// the interface; the Memory/Bolt/Pebble builders open one for you.
func New(kv kvstore.Store, optFns ...Option) (*Store, error) {
	o := applyOptions(optFns)

	manager := txn.NewManager(kv, func(to *txn.Options) {
		to.Logger = o.logger.Logger
		if o.retryAttempts > 0 {
			to.MaxRetries = o.retryAttempts
		}
		if o.retryBackoff > 0 {
			to.RetryBackoff = o.retryBackoff
		}
	})
	if o.monitorRecords {
		manager.Monitor().Enable()
	}

	return &Store{
		kv:      kv,
		manager: manager,
		bus:     event.NewBus(),
		ctrl: resource.NewController(resource.Config{
			MaxBackgroundJobs:  o.maxBackgroundJobs,
			IOLimitBytesPerSec: o.ioLimitBytes,
		}),
		logger:  o.logger,
		metrics: o.metricsCollector,
		codec:   o.snapshotCodec,
		maxJobs: int(max(1, o.maxBackgroundJobs)),
	}, nil
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

// track registers a closer to be closed with the store.
func (s *Store) track(cl io.Closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closers = append(s.closers, cl)
}

// Update runs fn inside a writable transaction, committing on nil return
// and retrying on backend conflicts.
func (s *Store) Update(ctx context.Context, fn func(*txn.Context) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	start := time.Now()
	err := translateError(s.manager.Update(ctx, fn))
	d := time.Since(start)
	s.metrics.RecordUpdate(d, err)
	s.logger.LogUpdate(ctx, "", d, err)
	return err
}

// View runs fn inside a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(*txn.Context) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	start := time.Now()
	err := translateError(s.manager.View(ctx, fn))
	d := time.Since(start)
	s.metrics.RecordView(d, err)
	s.logger.LogView(ctx, "", d, err)
	return err
}

// TransactNamed runs fn like Update and records a named entry with the
// transaction monitor regardless of whether record collection is enabled.
func (s *Store) TransactNamed(ctx context.Context, name string, fn func(*txn.Context) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	start := time.Now()
	err := translateError(s.manager.Transact(ctx, name, fn))
	d := time.Since(start)
	s.metrics.RecordUpdate(d, err)
	s.logger.LogUpdate(ctx, name, d, err)
	return err
}

// Bus returns the store's removal-approval event bus.
func (s *Store) Bus() *event.Bus { return s.bus }

// Monitor returns the transaction monitor.
func (s *Store) Monitor() *txn.Monitor { return s.manager.Monitor() }

// Backend exposes the underlying kvstore for direct table access.
func (s *Store) Backend() kvstore.Store { return s.kv }

// OpenIndex opens (or creates) a named duplicate-sorted index on the store.
// The index is closed with the store.
//
// This is a package-level function because methods cannot introduce type
// parameters.
func OpenIndex[K, V any](s *Store, name string, keyConv index.Converter[K], valConv index.Converter[V], optFns ...func(*index.Options)) (*index.Index[K, V], error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	fns := append([]func(*index.Options){func(o *index.Options) {
		o.Logger = s.logger.Logger
	}}, optFns...)
	ix, err := index.Open(s.kv, name, keyConv, valConv, fns...)
	s.logger.LogIndexOpen(name, err)
	if err != nil {
		return nil, translateError(err)
	}
	s.track(ix)
	return ix, nil
}

// RefManager constructs the reference-link manager over the store's
// backend and event bus. atoms receives the removal cascades; nil drops
// them. The manager is closed with the store.
func (s *Store) RefManager(atoms reflink.AtomStore) (*reflink.Manager, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	m, err := reflink.NewManager(s.kv, atoms, s.bus, func(o *reflink.Options) {
		o.Logger = s.logger.Logger
	})
	if err != nil {
		return nil, translateError(err)
	}
	s.track(m)
	return m, nil
}

// Close closes everything opened through the store, then the backend
// itself. The first error wins but the remaining closers still run. Close
// is idempotent.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	var firstErr error
	for _, cl := range closers {
		if err := cl.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.kv.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if firstErr != nil {
		s.logger.Error("store close failed", "error", firstErr)
	} else {
		s.logger.Debug("store closed")
	}
	return firstErr
}
