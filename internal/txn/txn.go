package txn

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/hupe1980/txgraph/internal/arena"
)

// MaxSize is the largest number of operators a single transaction may carry.
const MaxSize = 255

var (
	// ErrFull is returned when appending past a descriptor's capacity.
	ErrFull = errors.New("txn: transaction is full")
	// ErrCapacity is returned when a descriptor is reset with an unsupported capacity.
	ErrCapacity = errors.New("txn: invalid transaction capacity")
)

// OpType is the kind of a transaction operator.
type OpType uint8

const (
	// OpFind asserts that a vertex is present.
	OpFind OpType = iota
	// OpInsertVertex adds a vertex.
	OpInsertVertex
	// OpDeleteVertex removes a vertex and all of its outgoing edges.
	OpDeleteVertex
	// OpInsertEdge adds an edge from an existing vertex.
	OpInsertEdge
	// OpDeleteEdge removes an edge.
	OpDeleteEdge
)

func (t OpType) String() string {
	switch t {
	case OpFind:
		return "Find"
	case OpInsertVertex:
		return "InsertVertex"
	case OpDeleteVertex:
		return "DeleteVertex"
	case OpInsertEdge:
		return "InsertEdge"
	case OpDeleteEdge:
		return "DeleteEdge"
	default:
		return fmt.Sprintf("OpType(%d)", t)
	}
}

// Status is the lifecycle state of a transaction.
// It moves out of Active exactly once.
type Status uint32

const (
	Active Status = iota
	Committed
	Aborted
)

func (s Status) String() string {
	switch s {
	case Active:
		return "Active"
	case Committed:
		return "Committed"
	case Aborted:
		return "Aborted"
	default:
		return fmt.Sprintf("Status(%d)", s)
	}
}

// ReturnCode is the outcome of running one operator.
type ReturnCode uint8

const (
	// OK means this executor applied the operator.
	OK ReturnCode = iota
	// Skip means another executor already applied it.
	Skip
	// Fail means the operator's precondition does not hold; the transaction aborts.
	Fail
)

func (rc ReturnCode) String() string {
	switch rc {
	case OK:
		return "OK"
	case Skip:
		return "Skip"
	case Fail:
		return "Fail"
	default:
		return fmt.Sprintf("ReturnCode(%d)", rc)
	}
}

// Operator is one suboperation of a transaction.
// EdgeKey is only meaningful for edge operators.
type Operator struct {
	Type    OpType
	Key     uint32
	EdgeKey uint32
}

func (o Operator) String() string {
	switch o.Type {
	case OpInsertEdge, OpDeleteEdge:
		return fmt.Sprintf("%s(%d->%d)", o.Type, o.Key, o.EdgeKey)
	default:
		return fmt.Sprintf("%s(%d)", o.Type, o.Key)
	}
}

// Desc is a transaction descriptor.
//
// The operator list is written by the owning worker before the descriptor is first
// published through a NodeDesc and is read-only afterwards. Status and pending flags
// are shared with helpers.
type Desc struct {
	status  atomic.Uint32
	size    int
	limit   int
	ops     []Operator
	pending []atomic.Bool
}

// Bind attaches preallocated operator and pending storage to d.
// Both slices must have the same length; it is the maximum capacity of d.
func (d *Desc) Bind(ops []Operator, pending []atomic.Bool) {
	d.ops = ops
	d.pending = pending
}

// Reset prepares a freshly allocated descriptor for capacity operators.
func (d *Desc) Reset(capacity int) error {
	if capacity <= 0 || capacity > len(d.ops) {
		return fmt.Errorf("%w: %d (max %d)", ErrCapacity, capacity, len(d.ops))
	}
	d.status.Store(uint32(Active))
	d.size = 0
	d.limit = capacity
	for i := 0; i < capacity; i++ {
		d.pending[i].Store(true)
	}
	return nil
}

// Append adds op to the end of the operator list.
func (d *Desc) Append(op Operator) error {
	if d.size >= d.limit {
		return fmt.Errorf("%w: capacity %d", ErrFull, d.limit)
	}
	d.ops[d.size] = op
	d.size++
	return nil
}

// Size returns the number of operators.
func (d *Desc) Size() int { return d.size }

// Cap returns the operator capacity chosen at Reset.
func (d *Desc) Cap() int { return d.limit }

// Op returns the operator at opid.
func (d *Desc) Op(opid int) Operator { return d.ops[opid] }

// Ops returns the operator list.
func (d *Desc) Ops() []Operator { return d.ops[:d.size] }

// Status returns the current status.
func (d *Desc) Status() Status { return Status(d.status.Load()) }

// Decide moves d from Active to s. It reports whether this call made the transition.
func (d *Desc) Decide(s Status) bool {
	return d.status.CompareAndSwap(uint32(Active), uint32(s))
}

// Pending reports whether the operator at opid still needs its completion step.
func (d *Desc) Pending(opid int) bool { return d.pending[opid].Load() }

// ClearPending clears the pending flag of opid. Exactly one caller wins.
func (d *Desc) ClearPending(opid int) bool {
	return d.pending[opid].CompareAndSwap(true, false)
}

// NodeDesc binds a node to the transaction operator that last touched it.
// It is immutable once published.
type NodeDesc struct {
	Desc arena.Ref
	OpID uint8
	// ForceFind and ForceDelete pin the node's presence regardless of the
	// owner's status. At most one is set.
	ForceFind   bool
	ForceDelete bool
}

// Forced reports whether presence is pinned by an override flag.
func (nd *NodeDesc) Forced() bool { return nd.ForceFind || nd.ForceDelete }

// SameOperation reports whether nd was written by operator opid of desc.
func (nd *NodeDesc) SameOperation(desc arena.Ref, opid int) bool {
	return nd.Desc.Clear() == desc.Clear() && int(nd.OpID) == opid
}

// Exists evaluates whether a node bound to nd is logically present when the
// owning transaction is (or is treated as) committed or not.
//
// Override flags take precedence. Otherwise presence follows the operator kind:
// a Find asserts presence, an insert is effective once committed and a delete is
// effective once committed.
func Exists(nd *NodeDesc, op OpType, committed bool) bool {
	if nd.ForceFind {
		return true
	}
	if nd.ForceDelete {
		return false
	}
	switch op {
	case OpFind:
		return true
	case OpInsertVertex, OpInsertEdge:
		return committed
	case OpDeleteVertex, OpDeleteEdge:
		return !committed
	default:
		panic(fmt.Sprintf("txn: unknown operator %d", op))
	}
}

// IsKeyExist evaluates nd against the live status of its owner.
func IsKeyExist(nd *NodeDesc, owner *Desc) bool {
	return Exists(nd, owner.Op(int(nd.OpID)).Type, owner.Status() == Committed)
}
