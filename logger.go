package graphstore

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with graphstore-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithIndex adds an index name field to the logger.
func (l *Logger) WithIndex(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("index", name),
	}
}

// WithTable adds a table name field to the logger.
func (l *Logger) WithTable(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("table", name),
	}
}

// LogUpdate logs a write transaction.
func (l *Logger) LogUpdate(ctx context.Context, name string, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "update failed",
			"name", name,
			"duration", duration,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "update committed",
			"name", name,
			"duration", duration,
		)
	}
}

// LogView logs a read transaction.
func (l *Logger) LogView(ctx context.Context, name string, duration time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "view failed",
			"name", name,
			"duration", duration,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "view completed",
			"name", name,
			"duration", duration,
		)
	}
}

// LogIndexOpen logs an index being opened.
func (l *Logger) LogIndexOpen(name string, err error) {
	if err != nil {
		l.Error("index open failed",
			"index", name,
			"error", err,
		)
	} else {
		l.Info("index opened",
			"index", name,
		)
	}
}

// LogSnapshot logs a snapshot operation.
func (l *Logger) LogSnapshot(ctx context.Context, codec string, bytes int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"codec", codec,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot written",
			"codec", codec,
			"bytes", bytes,
		)
	}
}

// LogRestore logs a restore operation.
func (l *Logger) LogRestore(ctx context.Context, codec string, entries int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "restore failed",
			"codec", codec,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "restore completed",
			"codec", codec,
			"entries", entries,
		)
	}
}
