package txgraph

import (
	"log/slog"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	memoryLimit      int64
	slotMargin       int
	maxInflight      int64
	txnPerSec        float64
	txnBurst         int
}

// Option configures the Graph constructor.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring transactions.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &txgraph.BasicMetricsCollector{}
//	g, _ := txgraph.New(4, 4, 10_000, txgraph.WithMetricsCollector(metrics))
//	// ... execute transactions ...
//	stats := metrics.GetStats()
//	fmt.Printf("Commits: %d, Aborts: %d\n", stats.CommitCount, stats.AbortCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := txgraph.NewJSONLogger(slog.LevelInfo)
//	g, _ := txgraph.New(4, 4, 10_000, txgraph.WithLogger(logger))
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

// WithMemoryLimit caps the bytes the graph may reserve for its arenas.
// New fails with ErrMemoryLimitExceeded when the sizing does not fit.
// A limit of 0 only tracks usage.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

// WithSlotMargin multiplies the per-worker node budget.
// Raise it for workloads that rebind the same nodes many times.
func WithSlotMargin(factor int) Option {
	return func(o *options) {
		o.slotMargin = factor
	}
}

// WithAdmission bounds transactions executed through ExecuteContext.
// maxInflight caps concurrently executing transactions; txnPerSec and burst
// configure a token bucket on their start rate. Zero disables a limit.
func WithAdmission(maxInflight int64, txnPerSec float64, burst int) Option {
	return func(o *options) {
		o.maxInflight = maxInflight
		o.txnPerSec = txnPerSec
		o.txnBurst = burst
	}
}
