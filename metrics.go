package txgraph

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
//	    commits   prometheus.Counter
//	    latencies prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordCommit(ops int, duration time.Duration) {
//	    p.commits.Inc()
//	    p.latencies.Observe(duration.Seconds())
//	}
type MetricsCollector interface {
	// RecordCommit is called after a transaction of ops operators committed.
	RecordCommit(ops int, duration time.Duration)

	// RecordAbort is called after a transaction of ops operators aborted.
	RecordAbort(ops int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordCommit(int, time.Duration) {}
func (NoopMetricsCollector) RecordAbort(int, time.Duration)  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	CommitCount      atomic.Int64
	CommitOps        atomic.Int64
	CommitTotalNanos atomic.Int64
	AbortCount       atomic.Int64
	AbortOps         atomic.Int64
	AbortTotalNanos  atomic.Int64
}

// RecordCommit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCommit(ops int, duration time.Duration) {
	b.CommitCount.Add(1)
	b.CommitOps.Add(int64(ops))
	b.CommitTotalNanos.Add(duration.Nanoseconds())
}

// RecordAbort implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAbort(ops int, duration time.Duration) {
	b.AbortCount.Add(1)
	b.AbortOps.Add(int64(ops))
	b.AbortTotalNanos.Add(duration.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	commits := b.CommitCount.Load()
	aborts := b.AbortCount.Load()

	s := BasicMetricsStats{
		CommitCount: commits,
		CommitOps:   b.CommitOps.Load(),
		AbortCount:  aborts,
		AbortOps:    b.AbortOps.Load(),
	}
	if commits > 0 {
		s.CommitAvgNanos = b.CommitTotalNanos.Load() / commits
	}
	if aborts > 0 {
		s.AbortAvgNanos = b.AbortTotalNanos.Load() / aborts
	}
	return s
}

// BasicMetricsStats is a snapshot of metrics from BasicMetricsCollector.
type BasicMetricsStats struct {
	CommitCount    int64
	CommitOps      int64
	CommitAvgNanos int64
	AbortCount     int64
	AbortOps       int64
	AbortAvgNanos  int64
}

// SuccessRate returns the fraction of transactions that committed.
func (s BasicMetricsStats) SuccessRate() float64 {
	total := s.CommitCount + s.AbortCount
	if total == 0 {
		return 0
	}
	return float64(s.CommitCount) / float64(total)
}
