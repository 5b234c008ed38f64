package graphstore

import (
	"log/slog"
	"time"

	"github.com/hupe1980/graphstore/compress"
)

type options struct {
	logger            *Logger
	metricsCollector  MetricsCollector
	snapshotCodec     compress.Codec
	ioLimitBytes      int64
	maxBackgroundJobs int64
	retryAttempts     int
	retryBackoff      time.Duration
	monitorRecords    bool
}

// Option configures Store constructor behavior.
//
// Today options primarily exist to avoid exploding the API surface
// (e.g. codec-specific constructor variants).
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := graphstore.NewJSONLogger(slog.LevelInfo)
//	s, _ := graphstore.New(kv, graphstore.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to keep the default no-op collector.
//
// Example with BasicMetricsCollector:
//
//	metrics := &graphstore.BasicMetricsCollector{}
//	s, _ := graphstore.New(kv, graphstore.WithMetricsCollector(metrics))
//	// ... use s ...
//	stats := metrics.GetStats()
//	fmt.Printf("Updates: %d, Avg latency: %dns\n", stats.UpdateCount, stats.UpdateAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithSnapshotCodec configures the compression codec used when writing
// snapshots. Restore always resolves the codec from the stream header, so
// this only affects new snapshots.
//
// If nil is passed, compress.Default is used.
func WithSnapshotCodec(c compress.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = compress.Default
		}
		o.snapshotCodec = c
	}
}

// WithIOLimit caps snapshot and restore throughput in bytes per second.
// Zero means unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimitBytes = bytesPerSec
	}
}

// WithMaxBackgroundJobs bounds concurrent background work (snapshots,
// stats). Defaults to 1.
func WithMaxBackgroundJobs(n int64) Option {
	return func(o *options) {
		o.maxBackgroundJobs = n
	}
}

// WithRetry configures the transaction retry policy applied when the
// backend reports a write conflict: attempts bounds the number of tries,
// backoff is the base delay between them.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(o *options) {
		o.retryAttempts = attempts
		o.retryBackoff = backoff
	}
}

// WithMonitorRecords enables per-transaction info collection on the
// monitor. Records grow without bound while enabled; prefer enabling it
// around the window under observation.
func WithMonitorRecords() Option {
	return func(o *options) {
		o.monitorRecords = true
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		snapshotCodec:    compress.Default,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
