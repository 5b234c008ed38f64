// This file implements backend-specific fluent builder APIs for creating
// and configuring Store instances. Builders are immutable - each method
// returns a new builder with the updated configuration.
package graphstore

import (
	"time"

	"github.com/hupe1980/graphstore/compress"
	"github.com/hupe1980/graphstore/kvstore/boltstore"
	"github.com/hupe1980/graphstore/kvstore/memstore"
	"github.com/hupe1980/graphstore/kvstore/pebblestore"
)

// builderBase carries the backend-independent configuration shared by all
// builders.
type builderBase struct {
	opts []Option
}

func (b builderBase) with(opt Option) builderBase {
	// Copy so earlier builder values stay usable.
	opts := make([]Option, len(b.opts), len(b.opts)+1)
	copy(opts, b.opts)
	return builderBase{opts: append(opts, opt)}
}

// =============================================================================
// Memory Builder (Immutable)
// =============================================================================

// Memory creates a builder for an in-memory store. Data lives for the
// process only; snapshots provide persistence when needed.
//
// The builder is immutable - each method returns a new builder with the
// updated configuration.
//
// Example:
//
//	store, err := graphstore.Memory().
//	    Logger(graphstore.NewTextLogger(slog.LevelInfo)).
//	    SnapshotCodec(compress.LZ4{}).
//	    Build()
func Memory() MemoryBuilder {
	return MemoryBuilder{}
}

// MemoryBuilder is an immutable fluent builder for memory-backed stores.
type MemoryBuilder struct {
	base builderBase
}

// Logger sets the structured logger for operation tracing.
func (b MemoryBuilder) Logger(l *Logger) MemoryBuilder {
	b.base = b.base.with(WithLogger(l))
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b MemoryBuilder) Metrics(mc MetricsCollector) MemoryBuilder {
	b.base = b.base.with(WithMetricsCollector(mc))
	return b
}

// SnapshotCodec sets the compression codec for snapshots.
func (b MemoryBuilder) SnapshotCodec(c compress.Codec) MemoryBuilder {
	b.base = b.base.with(WithSnapshotCodec(c))
	return b
}

// IOLimit caps snapshot throughput in bytes per second.
func (b MemoryBuilder) IOLimit(bytesPerSec int64) MemoryBuilder {
	b.base = b.base.with(WithIOLimit(bytesPerSec))
	return b
}

// MaxBackgroundJobs bounds concurrent background work.
func (b MemoryBuilder) MaxBackgroundJobs(n int64) MemoryBuilder {
	b.base = b.base.with(WithMaxBackgroundJobs(n))
	return b
}

// Retry configures the conflict retry policy.
func (b MemoryBuilder) Retry(attempts int, backoff time.Duration) MemoryBuilder {
	b.base = b.base.with(WithRetry(attempts, backoff))
	return b
}

// MonitorRecords enables per-transaction info collection.
func (b MemoryBuilder) MonitorRecords() MemoryBuilder {
	b.base = b.base.with(WithMonitorRecords())
	return b
}

// Build opens the backend and wraps it in a Store.
func (b MemoryBuilder) Build() (*Store, error) {
	return New(memstore.New(), b.base.opts...)
}

// =============================================================================
// Bolt Builder (Immutable)
// =============================================================================

// Bolt creates a builder for a bbolt-backed store at path. Single file,
// single writer, fully transactional.
//
// Example:
//
//	store, err := graphstore.Bolt("./data/graph.db").
//	    NoSync().
//	    Build()
func Bolt(path string) BoltBuilder {
	return BoltBuilder{path: path}
}

// BoltBuilder is an immutable fluent builder for bbolt-backed stores.
type BoltBuilder struct {
	base   builderBase
	path   string
	noSync bool
}

// Logger sets the structured logger for operation tracing.
func (b BoltBuilder) Logger(l *Logger) BoltBuilder {
	b.base = b.base.with(WithLogger(l))
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b BoltBuilder) Metrics(mc MetricsCollector) BoltBuilder {
	b.base = b.base.with(WithMetricsCollector(mc))
	return b
}

// SnapshotCodec sets the compression codec for snapshots.
func (b BoltBuilder) SnapshotCodec(c compress.Codec) BoltBuilder {
	b.base = b.base.with(WithSnapshotCodec(c))
	return b
}

// IOLimit caps snapshot throughput in bytes per second.
func (b BoltBuilder) IOLimit(bytesPerSec int64) BoltBuilder {
	b.base = b.base.with(WithIOLimit(bytesPerSec))
	return b
}

// MaxBackgroundJobs bounds concurrent background work.
func (b BoltBuilder) MaxBackgroundJobs(n int64) BoltBuilder {
	b.base = b.base.with(WithMaxBackgroundJobs(n))
	return b
}

// Retry configures the conflict retry policy.
func (b BoltBuilder) Retry(attempts int, backoff time.Duration) BoltBuilder {
	b.base = b.base.with(WithRetry(attempts, backoff))
	return b
}

// MonitorRecords enables per-transaction info collection.
func (b BoltBuilder) MonitorRecords() BoltBuilder {
	b.base = b.base.with(WithMonitorRecords())
	return b
}

// NoSync skips fsync on commit. Faster, at the cost of durability across
// power loss.
func (b BoltBuilder) NoSync() BoltBuilder {
	b.noSync = true
	return b
}

// Build opens the backend and wraps it in a Store.
func (b BoltBuilder) Build() (*Store, error) {
	kv, err := boltstore.Open(b.path, func(o *boltstore.Options) {
		o.NoSync = b.noSync
	})
	if err != nil {
		return nil, err
	}
	return New(kv, b.base.opts...)
}

// =============================================================================
// Pebble Builder (Immutable)
// =============================================================================

// Pebble creates a builder for a pebble-backed store in dir. LSM storage
// for write-heavy workloads.
//
// Example:
//
//	store, err := graphstore.Pebble("./data/graph").
//	    SyncWrites().
//	    Build()
func Pebble(dir string) PebbleBuilder {
	return PebbleBuilder{dir: dir}
}

// PebbleBuilder is an immutable fluent builder for pebble-backed stores.
type PebbleBuilder struct {
	base builderBase
	dir  string
	sync bool
}

// Logger sets the structured logger for operation tracing.
func (b PebbleBuilder) Logger(l *Logger) PebbleBuilder {
	b.base = b.base.with(WithLogger(l))
	return b
}

// Metrics sets the metrics collector for monitoring.
func (b PebbleBuilder) Metrics(mc MetricsCollector) PebbleBuilder {
	b.base = b.base.with(WithMetricsCollector(mc))
	return b
}

// SnapshotCodec sets the compression codec for snapshots.
func (b PebbleBuilder) SnapshotCodec(c compress.Codec) PebbleBuilder {
	b.base = b.base.with(WithSnapshotCodec(c))
	return b
}

// IOLimit caps snapshot throughput in bytes per second.
func (b PebbleBuilder) IOLimit(bytesPerSec int64) PebbleBuilder {
	b.base = b.base.with(WithIOLimit(bytesPerSec))
	return b
}

// MaxBackgroundJobs bounds concurrent background work.
func (b PebbleBuilder) MaxBackgroundJobs(n int64) PebbleBuilder {
	b.base = b.base.with(WithMaxBackgroundJobs(n))
	return b
}

// Retry configures the conflict retry policy.
func (b PebbleBuilder) Retry(attempts int, backoff time.Duration) PebbleBuilder {
	b.base = b.base.with(WithRetry(attempts, backoff))
	return b
}

// MonitorRecords enables per-transaction info collection.
func (b PebbleBuilder) MonitorRecords() PebbleBuilder {
	b.base = b.base.with(WithMonitorRecords())
	return b
}

// SyncWrites makes every commit wait for the WAL fsync.
func (b PebbleBuilder) SyncWrites() PebbleBuilder {
	b.sync = true
	return b
}

// Build opens the backend and wraps it in a Store.
func (b PebbleBuilder) Build() (*Store, error) {
	kv, err := pebblestore.Open(b.dir, func(o *pebblestore.Options) {
		o.Sync = b.sync
	})
	if err != nil {
		return nil, err
	}
	return New(kv, b.base.opts...)
}
