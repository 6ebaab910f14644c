// Package resource implements the Controller for global limits and governance.
//
// The Controller provides centralized management of two resource types:
//
//   - Memory: Track and limit the arena memory reserved by a graph (non-blocking, fail-fast)
//   - Admission: Bound in-flight transactions and their start rate
//
// # Architecture
//
//	┌─────────────────────────────────────────────┐
//	│                 Controller                  │
//	├─────────────────┬───────────────────────────┤
//	│  Memory Limit   │  Transaction Admission    │
//	│  (fail-fast)    │  (semaphore + token bucket)│
//	├─────────────────┼───────────────────────────┤
//	│  AcquireMemory  │  AcquireTxn               │
//	│  ReleaseMemory  │  TryAcquireTxn            │
//	│  MemoryUsage    │  ReleaseTxn               │
//	└─────────────────┴───────────────────────────┘
//
// # Memory Management
//
// Arenas are reserved once at construction, so AcquireMemory is non-blocking and
// returns ErrMemoryLimitExceeded immediately:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30, // 1GB limit
//	})
//
//	if err := rc.AcquireMemory(1024 * 1024); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(1024 * 1024)
//
// # Transaction Admission
//
//	rc := resource.NewController(resource.Config{
//	    MaxInflight: 8,
//	    TxnPerSec:   10_000,
//	})
//
//	if err := rc.AcquireTxn(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseTxn()
//
// # Nil Safety
//
// All methods handle nil Controller gracefully - they become no-ops.
// This allows optional resource limiting without nil checks everywhere.
package resource
