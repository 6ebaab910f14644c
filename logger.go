package txgraph

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with txgraph-specific context.
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
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithWorker adds a worker field to the logger.
func (l *Logger) WithWorker(id int) *Logger {
	return &Logger{
		Logger: l.Logger.With("worker", id),
	}
}

// LogOpen logs graph construction.
func (l *Logger) LogOpen(ctx context.Context, threads, maxTxnSize, estimatedOps int, reservedBytes uint64) {
	l.InfoContext(ctx, "graph opened",
		"threads", threads,
		"max_txn_size", maxTxnSize,
		"estimated_ops", estimatedOps,
		"reserved_mb", float64(reservedBytes)/(1024*1024),
	)
}

// LogWorker logs worker registration.
func (l *Logger) LogWorker(ctx context.Context, id int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "worker registration failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "worker registered",
			"worker", id,
		)
	}
}

// LogExecute logs the outcome of a transaction.
func (l *Logger) LogExecute(ctx context.Context, size int, committed bool) {
	l.DebugContext(ctx, "transaction executed",
		"ops", size,
		"committed", committed,
	)
}

// LogExhausted logs a capacity violation right before it is re-raised.
func (l *Logger) LogExhausted(ctx context.Context, worker int, cause error) {
	l.ErrorContext(ctx, "worker ran out of preallocated capacity",
		"worker", worker,
		"error", cause,
	)
}

// LogClose logs graph shutdown.
func (l *Logger) LogClose(ctx context.Context, commits, aborts uint64) {
	l.InfoContext(ctx, "graph closed",
		"commits", commits,
		"aborts", aborts,
	)
}
