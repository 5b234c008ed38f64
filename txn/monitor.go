package txn

import (
	"sync"
	"sync/atomic"
	"time"
)

// TxInfo describes one finished transaction.
type TxInfo struct {
	Name      string
	Start     time.Time
	Duration  time.Duration
	Retries   int
	Committed bool
}

// Stats is a snapshot of the monitor's counters.
type Stats struct {
	Started   int64
	Committed int64
	Aborted   int64
	Retries   int64
}

// Monitor collects transaction metrics. The counters are always on; the
// per-transaction TxInfo records are only kept while collection is enabled
// (or when the transaction was run via Manager.Transact). Records are
// retained until Reset, so collection left enabled grows without bound.
type Monitor struct {
	collecting atomic.Bool

	started   atomic.Int64
	committed atomic.Int64
	aborted   atomic.Int64
	retries   atomic.Int64

	mu      sync.Mutex
	records []TxInfo
}

// NewMonitor creates a Monitor with collection disabled.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Enabled reports whether TxInfo collection is on.
func (m *Monitor) Enabled() bool { return m.collecting.Load() }

// Enable starts TxInfo collection and returns the monitor.
func (m *Monitor) Enable() *Monitor {
	m.collecting.Store(true)
	return m
}

// Disable stops TxInfo collection and returns the monitor.
func (m *Monitor) Disable() *Monitor {
	m.collecting.Store(false)
	return m
}

// Stats returns a snapshot of the counters.
func (m *Monitor) Stats() Stats {
	return Stats{
		Started:   m.started.Load(),
		Committed: m.committed.Load(),
		Aborted:   m.aborted.Load(),
		Retries:   m.retries.Load(),
	}
}

func (m *Monitor) record(info TxInfo, force bool) {
	if !force && !m.collecting.Load() {
		return
	}
	m.mu.Lock()
	m.records = append(m.records, info)
	m.mu.Unlock()
}

// Lookup returns the records of transactions run under the given name.
func (m *Monitor) Lookup(name string) []TxInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TxInfo
	for _, r := range m.records {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

// All returns a copy of every collected record.
func (m *Monitor) All() []TxInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TxInfo, len(m.records))
	copy(out, m.records)
	return out
}

// Reset discards the collected records. Counters are unaffected.
func (m *Monitor) Reset() {
	m.mu.Lock()
	m.records = nil
	m.mu.Unlock()
}
