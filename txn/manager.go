package txn

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"time"

	"github.com/hupe1980/graphstore/kvstore"
)

// Options configure a Manager.
type Options struct {
	// Logger receives retry and outcome events. Nil discards them.
	Logger *slog.Logger

	// Monitor collects transaction metrics. Nil creates a fresh one.
	Monitor *Monitor

	// MaxRetries bounds how often a transaction failing with
	// kvstore.ErrConflict is re-run.
	MaxRetries int

	// RetryBackoff is the base delay before the first retry; it doubles
	// per attempt with jitter.
	RetryBackoff time.Duration
}

// DefaultOptions are the Manager defaults.
var DefaultOptions = Options{
	MaxRetries:   8,
	RetryBackoff: time.Millisecond,
}

// Manager runs functions inside transactions of one store, retrying on
// conflicts. It is safe for concurrent use.
type Manager struct {
	store   kvstore.Store
	logger  *slog.Logger
	monitor *Monitor

	maxRetries int
	backoff    time.Duration
}

// NewManager creates a Manager over the given store.
func NewManager(store kvstore.Store, optFns ...func(*Options)) *Manager {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Monitor == nil {
		opts.Monitor = NewMonitor()
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Manager{
		store:      store,
		logger:     opts.Logger,
		monitor:    opts.Monitor,
		maxRetries: opts.MaxRetries,
		backoff:    opts.RetryBackoff,
	}
}

// Monitor returns the manager's transaction monitor.
func (m *Manager) Monitor() *Monitor { return m.monitor }

// Update runs fn inside a writable transaction, committing on nil return.
// A transaction failing with kvstore.ErrConflict is aborted and re-run
// with exponential backoff; any other error aborts and is returned.
func (m *Manager) Update(ctx context.Context, fn func(*Context) error) error {
	return m.run(ctx, "", true, false, fn)
}

// View runs fn inside a read-only transaction.
func (m *Manager) View(ctx context.Context, fn func(*Context) error) error {
	return m.run(ctx, "", false, false, fn)
}

// Transact runs fn like Update and records a named TxInfo with the monitor
// regardless of whether collection is enabled.
func (m *Manager) Transact(ctx context.Context, name string, fn func(*Context) error) error {
	return m.run(ctx, name, true, true, fn)
}

func (m *Manager) run(ctx context.Context, name string, writable, forceRecord bool, fn func(*Context) error) error {
	start := time.Now()
	m.monitor.started.Add(1)

	var err error
	retries := 0
	for {
		err = m.attempt(ctx, writable, fn)
		if err == nil || !errors.Is(err, kvstore.ErrConflict) || retries >= m.maxRetries {
			break
		}
		retries++
		m.monitor.retries.Add(1)
		delay := m.retryDelay(retries)
		m.logger.DebugContext(ctx, "transaction conflict, retrying",
			"name", name,
			"attempt", retries,
			"backoff", delay,
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			err = ctx.Err()
		}
		if err != nil && !errors.Is(err, kvstore.ErrConflict) {
			break
		}
	}

	if err == nil {
		m.monitor.committed.Add(1)
	} else {
		m.monitor.aborted.Add(1)
		m.logger.DebugContext(ctx, "transaction failed",
			"name", name,
			"retries", retries,
			"error", err,
		)
	}
	m.monitor.record(TxInfo{
		Name:      name,
		Start:     start,
		Duration:  time.Since(start),
		Retries:   retries,
		Committed: err == nil,
	}, forceRecord)
	return err
}

// attempt runs fn in one fresh transaction. A panic inside fn aborts the
// transaction before propagating.
func (m *Manager) attempt(ctx context.Context, writable bool, fn func(*Context) error) error {
	t, err := m.store.Begin(ctx, writable)
	if err != nil {
		return err
	}
	tc := NewContext(t)

	done := false
	defer func() {
		if !done {
			_ = tc.Abort()
		}
	}()

	if err := fn(tc); err != nil {
		done = true
		_ = tc.Abort()
		return err
	}
	done = true
	return tc.Commit()
}

func (m *Manager) retryDelay(attempt int) time.Duration {
	const ceiling = 250 * time.Millisecond
	if m.backoff <= 0 {
		return 0
	}
	d := m.backoff
	for i := 1; i < attempt && d < ceiling; i++ {
		d *= 2
	}
	if d > ceiling {
		d = ceiling
	}
	// Half fixed, half jitter, to spread out conflicting writers.
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}
