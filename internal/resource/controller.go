package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when memory limit would be exceeded.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for arena memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// MaxInflight is the maximum number of transactions executing at once.
	// If 0, unlimited.
	MaxInflight int64

	// TxnPerSec is the sustained transaction start rate.
	// If 0, unlimited.
	TxnPerSec float64

	// TxnBurst is the token bucket size. Defaults to 1 when a rate is set.
	TxnBurst int
}

// Controller manages global resources (memory, admission).
type Controller struct {
	cfg Config

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// Admission
	txnSem     *semaphore.Weighted // nil if unlimited
	txnLimiter *rate.Limiter       // nil if unlimited
	inflight   atomic.Int64
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.MaxInflight > 0 {
		c.txnSem = semaphore.NewWeighted(cfg.MaxInflight)
	}

	if cfg.TxnPerSec > 0 {
		burst := cfg.TxnBurst
		if burst <= 0 {
			burst = 1
		}
		c.txnLimiter = rate.NewLimiter(rate.Limit(cfg.TxnPerSec), burst)
	}

	return c
}

// AcquireMemory attempts to reserve memory.
// Returns ErrMemoryLimitExceeded if limit would be exceeded.
// Non-blocking - callers control retry/backoff policy.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil {
		return nil
	}
	if bytes <= 0 {
		return nil
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return ErrMemoryLimitExceeded
		}
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil {
		return
	}
	if bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireTxn waits for the rate limiter and an in-flight slot.
// Every successful call must be paired with ReleaseTxn.
func (c *Controller) AcquireTxn(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.txnLimiter != nil {
		if err := c.txnLimiter.Wait(ctx); err != nil {
			return err
		}
	}
	if c.txnSem != nil {
		if err := c.txnSem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	c.inflight.Add(1)
	return nil
}

// TryAcquireTxn attempts to admit a transaction without blocking.
func (c *Controller) TryAcquireTxn() bool {
	if c == nil {
		return true
	}
	if c.txnLimiter != nil && !c.txnLimiter.AllowN(time.Now(), 1) {
		return false
	}
	if c.txnSem != nil && !c.txnSem.TryAcquire(1) {
		return false
	}
	c.inflight.Add(1)
	return true
}

// ReleaseTxn returns an in-flight slot.
func (c *Controller) ReleaseTxn() {
	if c == nil {
		return
	}
	if c.txnSem != nil {
		c.txnSem.Release(1)
	}
	c.inflight.Add(-1)
}

// Inflight returns the number of admitted transactions not yet released.
func (c *Controller) Inflight() int64 {
	if c == nil {
		return 0
	}
	return c.inflight.Load()
}
