// Package arena provides the bump allocator backing every graph node and descriptor.
//
// A Region reserves one contiguous, typed slab sized for a fixed number of worker
// partitions. Each worker claims a partition exactly once and allocates from it
// through a Cursor without any synchronization. Slots are never freed: the region
// lives as long as the graph that owns it.
//
// # Features
//
//   - O(1) allocation, no cross-worker sharing
//   - Ref handles with two free tag bits for lock-free state (mark, invalid)
//   - Optional memory budget through a MemoryAcquirer
//
// # Safety
//
// Exhausting a partition's budget is a capacity-planning violation and panics with
// an error wrapping ErrExhausted. Construction and partition claims return errors.
package arena
