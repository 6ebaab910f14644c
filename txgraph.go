package txgraph

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/txgraph/internal/arena"
	"github.com/hupe1980/txgraph/internal/engine"
	"github.com/hupe1980/txgraph/internal/resource"
	"github.com/hupe1980/txgraph/internal/txn"
)

// Operator is one suboperation of a transaction.
type Operator = txn.Operator

// OpType is the kind of an Operator.
type OpType = txn.OpType

// Operator kinds.
const (
	OpFind         = txn.OpFind
	OpInsertVertex = txn.OpInsertVertex
	OpDeleteVertex = txn.OpDeleteVertex
	OpInsertEdge   = txn.OpInsertEdge
	OpDeleteEdge   = txn.OpDeleteEdge
)

// MaxTransactionSize is the largest supported transaction.
const MaxTransactionSize = txn.MaxSize

// Stats holds engine counters and per-arena usage.
type Stats = engine.Stats

// Graph is a lock-free transactional directed graph.
//
// All memory is reserved by New. Each goroutine that executes transactions
// registers its own Worker.
type Graph struct {
	e       *engine.Engine
	rc      *resource.Controller
	logger  *Logger
	metrics MetricsCollector
	closed  atomic.Bool
}

// New creates a graph for threads workers, transactions of up to maxTxnSize
// operators, and estimatedOps operators executed per worker.
func New(threads, maxTxnSize, estimatedOps int, optFns ...Option) (*Graph, error) {
	opts := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		slotMargin:       engine.DefaultOptions.SlotMargin,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.metricsCollector == nil {
		opts.metricsCollector = NoopMetricsCollector{}
	}
	if opts.logger == nil {
		opts.logger = NoopLogger()
	}

	switch {
	case threads <= 0:
		return nil, &ErrInvalidConfig{Field: "threads", Value: threads, cause: ErrInvalidOptions}
	case maxTxnSize <= 0 || maxTxnSize > MaxTransactionSize:
		return nil, &ErrInvalidConfig{Field: "maxTxnSize", Value: maxTxnSize, cause: ErrInvalidOptions}
	case estimatedOps <= 0:
		return nil, &ErrInvalidConfig{Field: "estimatedOps", Value: estimatedOps, cause: ErrInvalidOptions}
	case opts.slotMargin <= 0:
		return nil, &ErrInvalidConfig{Field: "slotMargin", Value: opts.slotMargin, cause: ErrInvalidOptions}
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes: opts.memoryLimit,
		MaxInflight:      opts.maxInflight,
		TxnPerSec:        opts.txnPerSec,
		TxnBurst:         opts.txnBurst,
	})

	e, err := engine.New(func(o *engine.Options) {
		o.Workers = threads
		o.MaxTxnSize = maxTxnSize
		o.OpsPerWorker = estimatedOps
		o.SlotMargin = opts.slotMargin
		o.Acquirer = rc
	})
	if err != nil {
		return nil, translateError(err)
	}

	g := &Graph{
		e:       e,
		rc:      rc,
		logger:  opts.logger,
		metrics: opts.metricsCollector,
	}
	g.logger.LogOpen(context.Background(), threads, maxTxnSize, estimatedOps, uint64(rc.MemoryUsage()))

	return g, nil
}

// NewWorker registers a worker. At most threads workers can be registered.
// A Worker must only be used by one goroutine at a time.
func (g *Graph) NewWorker() (*Worker, error) {
	if g.closed.Load() {
		return nil, ErrClosed
	}

	w, err := g.e.NewWorker()
	if err != nil {
		err = translateError(err)
		g.logger.LogWorker(context.Background(), -1, err)
		return nil, err
	}
	g.logger.LogWorker(context.Background(), w.ID(), nil)

	return &Worker{
		g:      g,
		w:      w,
		logger: g.logger.WithWorker(w.ID()),
	}, nil
}

// ContainsVertex reports whether key is a present vertex.
// Transactions still in flight are treated as not applied.
func (g *Graph) ContainsVertex(key uint32) bool {
	return g.e.ContainsVertex(key)
}

// ContainsEdge reports whether the edge v->edge is present.
// Transactions still in flight are treated as not applied.
func (g *Graph) ContainsEdge(v, edge uint32) bool {
	return g.e.ContainsEdge(v, edge)
}

// Vertices returns the keys of all present vertices.
// The result is exact only while no transaction is executing.
func (g *Graph) Vertices() *roaring.Bitmap {
	return g.e.Vertices()
}

// Edges returns the targets of all present edges leaving v.
// The result is exact only while no transaction is executing.
func (g *Graph) Edges(v uint32) *roaring.Bitmap {
	return g.e.Edges(v)
}

// Stats returns engine counters and arena usage.
func (g *Graph) Stats() Stats {
	return g.e.Stats()
}

// MemoryUsage returns the bytes reserved by the graph's arenas.
func (g *Graph) MemoryUsage() int64 {
	return g.rc.MemoryUsage()
}

// Close releases the arenas. No worker may be executing.
func (g *Graph) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	s := g.e.Stats()
	g.e.Close()
	g.logger.LogClose(context.Background(), s.Commits, s.Aborts)
	return nil
}

// Worker executes transactions on behalf of one goroutine.
type Worker struct {
	g      *Graph
	w      *engine.Worker
	logger *Logger
}

// ID returns the worker index.
func (w *Worker) ID() int { return w.w.ID() }

// NewTransaction allocates a transaction with room for size operators.
func (w *Worker) NewTransaction(size int) (*Transaction, error) {
	if w.g.closed.Load() {
		return nil, ErrClosed
	}

	ref, d, err := w.w.Begin(size)
	if err != nil {
		if errors.Is(err, engine.ErrTxnSize) {
			return nil, &ErrInvalidTransactionSize{Size: size, Max: w.g.e.Options().MaxTxnSize, cause: err}
		}
		return nil, translateError(err)
	}
	return &Transaction{ref: ref, d: d}, nil
}

// Execute runs tx to completion and reports whether it committed.
// Executing a transaction twice returns the first outcome.
//
// Running out of preallocated capacity is a sizing error and panics with an
// error wrapping ErrExhausted.
func (w *Worker) Execute(tx *Transaction) bool {
	if tx.done {
		return tx.committed
	}

	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok && (errors.Is(err, arena.ErrExhausted) || errors.Is(err, txn.ErrHelpStackOverflow)) {
				w.logger.LogExhausted(context.Background(), w.ID(), err)
			}
			panic(r)
		}
	}()

	start := time.Now()
	committed := w.w.Execute(tx.ref)
	elapsed := time.Since(start)

	tx.done = true
	tx.committed = committed

	if committed {
		w.g.metrics.RecordCommit(tx.Len(), elapsed)
	} else {
		w.g.metrics.RecordAbort(tx.Len(), elapsed)
	}
	w.logger.LogExecute(context.Background(), tx.Len(), committed)

	return committed
}

// ExecuteContext is Execute behind the graph's admission limits.
// It returns the context error if admission is canceled.
func (w *Worker) ExecuteContext(ctx context.Context, tx *Transaction) (bool, error) {
	if tx.done {
		return tx.committed, nil
	}
	if err := w.g.rc.AcquireTxn(ctx); err != nil {
		return false, err
	}
	defer w.g.rc.ReleaseTxn()

	return w.Execute(tx), nil
}

// Transaction is an ordered list of operators executed atomically.
type Transaction struct {
	ref       arena.Ref
	d         *txn.Desc
	done      bool
	committed bool
}

// Add appends op.
func (t *Transaction) Add(op Operator) error {
	if t.done {
		return ErrTransactionDone
	}
	if err := engine.ValidateOperator(op); err != nil {
		return translateError(err)
	}
	return translateError(t.d.Append(op))
}

// InsertVertex appends an insertion of vertex key.
func (t *Transaction) InsertVertex(key uint32) error {
	return t.Add(Operator{Type: OpInsertVertex, Key: key})
}

// DeleteVertex appends a deletion of vertex key and all its outgoing edges.
func (t *Transaction) DeleteVertex(key uint32) error {
	return t.Add(Operator{Type: OpDeleteVertex, Key: key})
}

// InsertEdge appends an insertion of the edge v->edge.
func (t *Transaction) InsertEdge(v, edge uint32) error {
	return t.Add(Operator{Type: OpInsertEdge, Key: v, EdgeKey: edge})
}

// DeleteEdge appends a deletion of the edge v->edge.
func (t *Transaction) DeleteEdge(v, edge uint32) error {
	return t.Add(Operator{Type: OpDeleteEdge, Key: v, EdgeKey: edge})
}

// Find appends a check that vertex key is present.
func (t *Transaction) Find(key uint32) error {
	return t.Add(Operator{Type: OpFind, Key: key})
}

// Len returns the number of operators added.
func (t *Transaction) Len() int { return t.d.Size() }

// Cap returns the number of operators the transaction can hold.
func (t *Transaction) Cap() int { return t.d.Cap() }

// Operators returns the operators added so far.
func (t *Transaction) Operators() []Operator {
	return append([]Operator(nil), t.d.Ops()...)
}

// Done reports whether the transaction was executed.
func (t *Transaction) Done() bool { return t.done }

// Committed reports whether the executed transaction committed.
func (t *Transaction) Committed() bool { return t.committed }
