package arena

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"
)

// MemoryAcquirer is an interface for acquiring memory.
type MemoryAcquirer interface {
	AcquireMemory(amount int64) error
	ReleaseMemory(amount int64)
}

var (
	// ErrExhausted is the panic value (wrapped) raised when a partition runs out of slots.
	ErrExhausted = errors.New("arena: partition budget exhausted")
	// ErrNoPartition is returned when every partition of a region is already claimed.
	ErrNoPartition = errors.New("arena: no free partition")
	// ErrInvalidConfig is returned for non-positive partition or slot counts.
	ErrInvalidConfig = errors.New("arena: invalid configuration")
	// ErrClosed is returned when claiming from a closed region.
	ErrClosed = errors.New("arena: region is closed")
)

// Ref is a handle to a slot in a Region.
//
// The zero Ref is nil. Slot indices are shifted left by TagBits, so the low bits are
// free to carry per-reference state the way an aligned pointer would.
//
// Bit Layout:
// [0:2]  Tags
// [2:64] Slot index + 1
type Ref uint64

const (
	// TagBits is the number of low bits available for tags.
	TagBits = 2
	// TagMask selects the tag bits of a Ref.
	TagMask Ref = 1<<TagBits - 1
)

func refOf(index uint64) Ref {
	return Ref((index + 1) << TagBits)
}

func (r Ref) index() uint64 {
	return uint64(r>>TagBits) - 1
}

// IsNil reports whether r references no slot, ignoring tags.
func (r Ref) IsNil() bool { return r.Clear() == 0 }

// Clear returns r without tags.
func (r Ref) Clear() Ref { return r &^ TagMask }

// Tags returns only the tag bits of r.
func (r Ref) Tags() Ref { return r & TagMask }

// Has reports whether any bit of tag is set on r.
func (r Ref) Has(tag Ref) bool { return r&tag != 0 }

// With returns r with tag set.
func (r Ref) With(tag Ref) Ref { return r | (tag & TagMask) }

// Without returns r with tag cleared.
func (r Ref) Without(tag Ref) Ref { return r &^ (tag & TagMask) }

// Config sizes a Region.
type Config struct {
	// Name identifies the region in stats and panics.
	Name string
	// Partitions is the number of workers that may claim a cursor.
	Partitions int
	// SlotsPerPartition is the per-worker slot budget.
	SlotsPerPartition int
	// Reserved slots precede all partitions and are handed out by Reserved.
	Reserved int
	// Acquirer, if set, is charged for the whole slab before it is reserved.
	Acquirer MemoryAcquirer
}

// Stats tracks region usage.
type Stats struct {
	Name              string
	SlotSize          uint64 // Size of one slot in bytes
	SlotsReserved     uint64 // Total slots in the slab
	SlotsUsed         uint64 // Slots handed out by cursors
	BytesReserved     uint64
	PartitionsClaimed uint64
}

// Region is a typed bump-allocated slab partitioned between workers.
type Region[T any] struct {
	name         string
	slots        []T
	reserved     uint64
	perPartition uint64
	partitions   uint64
	bytes        int64
	acquirer     MemoryAcquirer

	claimed atomic.Uint64
	cursors []atomic.Pointer[Cursor[T]]
	closed  atomic.Bool
}

// NewRegion reserves the slab described by cfg.
func NewRegion[T any](cfg Config) (*Region[T], error) {
	if cfg.Partitions <= 0 || cfg.SlotsPerPartition <= 0 || cfg.Reserved < 0 {
		return nil, fmt.Errorf("%w: region %q partitions=%d slots=%d reserved=%d",
			ErrInvalidConfig, cfg.Name, cfg.Partitions, cfg.SlotsPerPartition, cfg.Reserved)
	}

	total := uint64(cfg.Reserved) + uint64(cfg.Partitions)*uint64(cfg.SlotsPerPartition)
	var zero T
	bytes := total * uint64(unsafe.Sizeof(zero))
	if bytes > 1<<62 {
		return nil, fmt.Errorf("%w: region %q needs %d bytes", ErrInvalidConfig, cfg.Name, bytes)
	}

	r := &Region[T]{
		name:         cfg.Name,
		reserved:     uint64(cfg.Reserved),
		perPartition: uint64(cfg.SlotsPerPartition),
		partitions:   uint64(cfg.Partitions),
		bytes:        int64(bytes),
		acquirer:     cfg.Acquirer,
		cursors:      make([]atomic.Pointer[Cursor[T]], cfg.Partitions),
	}

	if r.acquirer != nil {
		if err := r.acquirer.AcquireMemory(r.bytes); err != nil {
			return nil, fmt.Errorf("arena: reserve region %q (%d bytes): %w", cfg.Name, bytes, err)
		}
	}

	r.slots = make([]T, total)
	return r, nil
}

// Init runs fn over every slot. It must be called before any cursor is claimed.
func (r *Region[T]) Init(fn func(ref Ref, slot *T)) {
	for i := range r.slots {
		fn(refOf(uint64(i)), &r.slots[i])
	}
}

// Reserved returns the i-th reserved slot.
func (r *Region[T]) Reserved(i int) (Ref, *T) {
	if i < 0 || uint64(i) >= r.reserved {
		panic(fmt.Sprintf("arena: reserved slot %d out of range for region %q", i, r.name))
	}
	return refOf(uint64(i)), &r.slots[i]
}

// Claim hands out the next unclaimed partition.
func (r *Region[T]) Claim() (*Cursor[T], error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}

	id := r.claimed.Add(1) - 1
	if id >= r.partitions {
		return nil, fmt.Errorf("%w: region %q has %d partitions", ErrNoPartition, r.name, r.partitions)
	}

	base := r.reserved + id*r.perPartition
	c := &Cursor[T]{
		region: r,
		id:     int(id),
		base:   base,
		limit:  base + r.perPartition,
	}
	c.next.Store(base)
	r.cursors[id].Store(c)
	return c, nil
}

// At returns the slot referenced by ref. Tags are ignored.
// It performs no liveness checking beyond the slice bounds check.
func (r *Region[T]) At(ref Ref) *T {
	return &r.slots[ref.Clear().index()]
}

// Stats returns the current region statistics.
func (r *Region[T]) Stats() Stats {
	var zero T
	s := Stats{
		Name:          r.name,
		SlotSize:      uint64(unsafe.Sizeof(zero)),
		SlotsReserved: uint64(len(r.slots)),
		BytesReserved: uint64(r.bytes),
	}
	for i := range r.cursors {
		if c := r.cursors[i].Load(); c != nil {
			s.PartitionsClaimed++
			s.SlotsUsed += c.Used()
		}
	}
	return s
}

// Close releases the slab and returns its bytes to the acquirer.
// It must not be called concurrently with allocations.
func (r *Region[T]) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	if r.acquirer != nil {
		r.acquirer.ReleaseMemory(r.bytes)
	}
	r.slots = nil
}

func (r *Region[T]) String() string {
	s := r.Stats()
	return fmt.Sprintf("Region{%s: slots: %d/%d, reserved: %.2f MB, partitions: %d/%d}",
		s.Name, s.SlotsUsed, s.SlotsReserved, float64(s.BytesReserved)/(1024*1024),
		s.PartitionsClaimed, r.partitions)
}

// Cursor allocates from one worker's partition.
// A Cursor must only be used by the goroutine that owns the partition.
type Cursor[T any] struct {
	_      cpu.CacheLinePad
	region *Region[T]
	id     int
	base   uint64
	limit  uint64
	next   atomic.Uint64 // written by the owner only; atomic for Stats readers
	_      cpu.CacheLinePad
}

// ID returns the partition id claimed by this cursor.
func (c *Cursor[T]) ID() int { return c.id }

// New returns the next free slot of the partition.
// It panics with an error wrapping ErrExhausted when the budget is spent.
func (c *Cursor[T]) New() (Ref, *T) {
	idx := c.next.Load()
	if idx >= c.limit {
		panic(fmt.Errorf("%w: region %q partition %d (%d slots)",
			ErrExhausted, c.region.name, c.id, c.limit-c.base))
	}
	c.next.Store(idx + 1)
	return refOf(idx), &c.region.slots[idx]
}

// Used returns the number of slots handed out so far.
func (c *Cursor[T]) Used() uint64 {
	return c.next.Load() - c.base
}

// Remaining returns the number of slots left in the partition.
func (c *Cursor[T]) Remaining() uint64 {
	return c.limit - c.next.Load()
}
