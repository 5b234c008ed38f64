package graphstore

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    updateCounter    prometheus.Counter
//	    updateHistogram  prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordUpdate(duration time.Duration, err error) {
//	    p.updateCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordUpdate is called after each write transaction.
	// duration is the total time taken, err is nil if committed.
	RecordUpdate(duration time.Duration, err error)

	// RecordView is called after each read transaction.
	RecordView(duration time.Duration, err error)

	// RecordSnapshot is called after each snapshot.
	// bytes is the compressed output size; 0 when err is non-nil.
	RecordSnapshot(bytes int64, duration time.Duration, err error)

	// RecordRestore is called after each restore.
	// entries is the number of entries replayed.
	RecordRestore(entries int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordUpdate(time.Duration, error)          {}
func (NoopMetricsCollector) RecordView(time.Duration, error)            {}
func (NoopMetricsCollector) RecordSnapshot(int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordRestore(int, time.Duration, error)    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	UpdateCount      atomic.Int64
	UpdateErrors     atomic.Int64
	UpdateTotalNanos atomic.Int64
	ViewCount        atomic.Int64
	ViewErrors       atomic.Int64
	ViewTotalNanos   atomic.Int64
	SnapshotCount    atomic.Int64
	SnapshotErrors   atomic.Int64
	SnapshotBytes    atomic.Int64
	RestoreCount     atomic.Int64
	RestoreErrors    atomic.Int64
	RestoreEntries   atomic.Int64
}

// RecordUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpdate(duration time.Duration, err error) {
	b.UpdateCount.Add(1)
	b.UpdateTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.UpdateErrors.Add(1)
	}
}

// RecordView implements MetricsCollector.
func (b *BasicMetricsCollector) RecordView(duration time.Duration, err error) {
	b.ViewCount.Add(1)
	b.ViewTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ViewErrors.Add(1)
	}
}

// RecordSnapshot implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSnapshot(bytes int64, duration time.Duration, err error) {
	b.SnapshotCount.Add(1)
	b.SnapshotBytes.Add(bytes)
	if err != nil {
		b.SnapshotErrors.Add(1)
	}
}

// RecordRestore implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRestore(entries int, duration time.Duration, err error) {
	b.RestoreCount.Add(1)
	b.RestoreEntries.Add(int64(entries))
	if err != nil {
		b.RestoreErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		UpdateCount:    b.UpdateCount.Load(),
		UpdateErrors:   b.UpdateErrors.Load(),
		UpdateAvgNanos: avgNanos(b.UpdateTotalNanos.Load(), b.UpdateCount.Load()),
		ViewCount:      b.ViewCount.Load(),
		ViewErrors:     b.ViewErrors.Load(),
		ViewAvgNanos:   avgNanos(b.ViewTotalNanos.Load(), b.ViewCount.Load()),
		SnapshotCount:  b.SnapshotCount.Load(),
		SnapshotErrors: b.SnapshotErrors.Load(),
		SnapshotBytes:  b.SnapshotBytes.Load(),
		RestoreCount:   b.RestoreCount.Load(),
		RestoreErrors:  b.RestoreErrors.Load(),
		RestoreEntries: b.RestoreEntries.Load(),
	}
}

func avgNanos(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	UpdateCount    int64
	UpdateErrors   int64
	UpdateAvgNanos int64
	ViewCount      int64
	ViewErrors     int64
	ViewAvgNanos   int64
	SnapshotCount  int64
	SnapshotErrors int64
	SnapshotBytes  int64
	RestoreCount   int64
	RestoreErrors  int64
	RestoreEntries int64
}
