package engine

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/hupe1980/txgraph/internal/arena"
	"github.com/hupe1980/txgraph/internal/mdlist"
	"github.com/hupe1980/txgraph/internal/txn"
)

const (
	// HeadKey is the key of the head sentinel.
	HeadKey uint32 = 0
	// TailKey is the key of the tail sentinel.
	TailKey uint32 = math.MaxUint32
)

// marked tags a vertex next reference or a node descriptor reference as removed.
const marked arena.Ref = 1

var (
	// ErrInvalidOptions is returned by New for unusable sizing.
	ErrInvalidOptions = errors.New("engine: invalid options")
	// ErrInvalidKey is returned for keys reserved by sentinels.
	ErrInvalidKey = errors.New("engine: invalid key")
	// ErrTxnSize is returned by Begin for sizes outside [1, MaxTxnSize].
	ErrTxnSize = errors.New("engine: invalid transaction size")
)

// Options contains configuration for the engine.
type Options struct {
	// Workers is the number of workers that may be registered.
	Workers int
	// MaxTxnSize is the largest transaction a worker may begin.
	MaxTxnSize int
	// OpsPerWorker is the expected number of operators a worker executes.
	OpsPerWorker int
	// SlotMargin multiplies OpsPerWorker into the per-worker node budget.
	SlotMargin int
	// Acquirer, if set, is charged for every arena reservation.
	Acquirer arena.MemoryAcquirer
}

// DefaultOptions contains the default configuration.
var DefaultOptions = Options{
	Workers:      1,
	MaxTxnSize:   4,
	OpsPerWorker: 1 << 12,
	SlotMargin:   4,
}

func (o Options) validate() error {
	switch {
	case o.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidOptions, o.Workers)
	case o.MaxTxnSize <= 0 || o.MaxTxnSize > txn.MaxSize:
		return fmt.Errorf("%w: max transaction size must be in [1, %d], got %d", ErrInvalidOptions, txn.MaxSize, o.MaxTxnSize)
	case o.OpsPerWorker <= 0:
		return fmt.Errorf("%w: operations per worker must be positive, got %d", ErrInvalidOptions, o.OpsPerWorker)
	case o.SlotMargin <= 0:
		return fmt.Errorf("%w: slot margin must be positive, got %d", ErrInvalidOptions, o.SlotMargin)
	}
	return nil
}

// ValidateOperator checks that op does not address a sentinel key.
func ValidateOperator(op txn.Operator) error {
	if op.Key == HeadKey || op.Key == TailKey {
		return fmt.Errorf("%w: vertex key %d is reserved", ErrInvalidKey, op.Key)
	}
	switch op.Type {
	case txn.OpFind, txn.OpInsertVertex, txn.OpDeleteVertex:
	case txn.OpInsertEdge, txn.OpDeleteEdge:
		if op.EdgeKey == 0 {
			return fmt.Errorf("%w: edge key 0 is reserved", ErrInvalidKey)
		}
	default:
		return fmt.Errorf("%w: unknown operator %s", ErrInvalidKey, op.Type)
	}
	return nil
}

type vertex struct {
	next     atomic.Uint64 // arena.Ref to vertex, tagged marked
	nodeDesc atomic.Uint64 // arena.Ref to txn.NodeDesc, tagged marked
	adj      arena.Ref     // mdlist head; nil on sentinels
	key      uint32
}

func (v *vertex) loadNext() arena.Ref { return arena.Ref(v.next.Load()) }

func (v *vertex) casNext(old, new arena.Ref) bool {
	return v.next.CompareAndSwap(uint64(old), uint64(new))
}

// markNext tags the next reference and returns the untagged successor.
func (v *vertex) markNext() arena.Ref {
	return arena.Ref(v.next.Or(uint64(marked))).Clear()
}

func (v *vertex) loadDesc() arena.Ref { return arena.Ref(v.nodeDesc.Load()) }

func (v *vertex) casDesc(old, new arena.Ref) bool {
	return v.nodeDesc.CompareAndSwap(uint64(old), uint64(new))
}

// Engine is a lock-free transactional directed graph.
type Engine struct {
	opts Options

	vertices  *arena.Region[vertex]
	nodeDescs *arena.Region[txn.NodeDesc]
	descs     *arena.Region[txn.Desc]
	mdNodes   *arena.Region[mdlist.Node]
	mdDescs   *arena.Region[mdlist.Desc]
	md        *mdlist.Store

	head arena.Ref
	tail arena.Ref

	nextWorker atomic.Int64
	workers    []atomic.Pointer[Worker]
}

// New creates an engine and reserves every arena up front.
func New(optFns ...func(o *Options)) (*Engine, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		opts:    opts,
		workers: make([]atomic.Pointer[Worker], opts.Workers),
	}
	if err := e.reserve(); err != nil {
		e.Close()
		return nil, err
	}

	var h, t *vertex
	e.head, h = e.vertices.Reserved(0)
	e.tail, t = e.vertices.Reserved(1)
	h.key = HeadKey
	t.key = TailKey
	h.next.Store(uint64(e.tail))

	return e, nil
}

func (e *Engine) reserve() error {
	slots := e.opts.OpsPerWorker * e.opts.SlotMargin
	cfg := func(name string, perWorker, reserved int) arena.Config {
		return arena.Config{
			Name:              name,
			Partitions:        e.opts.Workers,
			SlotsPerPartition: perWorker,
			Reserved:          reserved,
			Acquirer:          e.opts.Acquirer,
		}
	}

	var err error
	if e.vertices, err = arena.NewRegion[vertex](cfg("vertices", slots, 2)); err != nil {
		return err
	}
	// Helpers allocate descriptors on behalf of others, so this budget is the widest.
	if e.nodeDescs, err = arena.NewRegion[txn.NodeDesc](cfg("node-descs", 2*slots, 0)); err != nil {
		return err
	}
	if e.descs, err = arena.NewRegion[txn.Desc](cfg("txn-descs", e.opts.OpsPerWorker, 0)); err != nil {
		return err
	}
	if e.mdNodes, err = arena.NewRegion[mdlist.Node](cfg("md-nodes", slots, 0)); err != nil {
		return err
	}
	if e.mdDescs, err = arena.NewRegion[mdlist.Desc](cfg("md-descs", slots, 0)); err != nil {
		return err
	}
	e.md = mdlist.NewStore(e.mdNodes, e.mdDescs)

	// Operator and pending storage for every descriptor is carved out of two slabs.
	m := e.opts.MaxTxnSize
	n := int(e.descs.Stats().SlotsReserved)
	ops := make([]txn.Operator, n*m)
	pending := make([]atomic.Bool, n*m)
	i := 0
	e.descs.Init(func(_ arena.Ref, d *txn.Desc) {
		d.Bind(ops[i*m:(i+1)*m:(i+1)*m], pending[i*m:(i+1)*m:(i+1)*m])
		i++
	})
	return nil
}

// Options returns the configuration the engine was built with.
func (e *Engine) Options() Options { return e.opts }

// Close releases every arena. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e.vertices != nil {
		e.vertices.Close()
	}
	if e.nodeDescs != nil {
		e.nodeDescs.Close()
	}
	if e.descs != nil {
		e.descs.Close()
	}
	if e.mdNodes != nil {
		e.mdNodes.Close()
	}
	if e.mdDescs != nil {
		e.mdDescs.Close()
	}
}

func (e *Engine) vertex(ref arena.Ref) *vertex { return e.vertices.At(ref) }

func (e *Engine) nodeDesc(ref arena.Ref) *txn.NodeDesc { return e.nodeDescs.At(ref) }

func (e *Engine) desc(ref arena.Ref) *txn.Desc { return e.descs.At(ref) }

// Desc resolves a transaction descriptor handed out by Begin.
func (e *Engine) Desc(ref arena.Ref) *txn.Desc { return e.desc(ref) }

// exists evaluates the node descriptor cd as seen by transaction self.
// Operators of self count as applied; pass a nil self for the committed view.
func (e *Engine) exists(cd, self arena.Ref) bool {
	nd := e.nodeDesc(cd)
	owner := e.desc(nd.Desc)
	committed := (!self.IsNil() && nd.Desc.Clear() == self.Clear()) || owner.Status() == txn.Committed
	return txn.Exists(nd, owner.Op(int(nd.OpID)).Type, committed)
}

// before returns the presence a node bound to cd falls back to if self aborts.
func (e *Engine) before(cd, self arena.Ref) bool {
	nd := e.nodeDesc(cd)
	if nd.Desc.Clear() != self.Clear() {
		return e.exists(cd, arena.Ref(0))
	}
	owner := e.desc(nd.Desc)
	return txn.Exists(nd, owner.Op(int(nd.OpID)).Type, false)
}

func (e *Engine) ownedBy(cd, self arena.Ref) bool {
	return e.nodeDesc(cd).Desc.Clear() == self.Clear()
}

// locatePred advances (pred, curr) to the first vertex with a key not below key,
// unlinking marked vertices on the way. stats may be nil.
func (e *Engine) locatePred(pred, curr *arena.Ref, key uint32, stats *workerStats) {
	for e.vertex(*curr).key < key {
		*pred = *curr
		p := e.vertex(*pred)
		predNext := p.loadNext().Clear()
		c := predNext
		for {
			next := e.vertex(c).loadNext()
			if !next.Has(marked) {
				break
			}
			c = next.Clear()
		}

		if c != predNext {
			if p.casNext(predNext, c) {
				if stats != nil {
					stats.retired.Add(1)
				}
			} else {
				c = e.head
			}
		}
		*curr = c
	}
}
