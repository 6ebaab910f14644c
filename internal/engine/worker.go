package engine

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/hupe1980/txgraph/internal/arena"
	"github.com/hupe1980/txgraph/internal/mdlist"
	"github.com/hupe1980/txgraph/internal/txn"
)

type workerStats struct {
	commits     atomic.Uint64
	aborts      atomic.Uint64
	helps       atomic.Uint64
	cycleAborts atomic.Uint64
	retired     atomic.Uint64
}

// touched is a node an operator linked or rebound, kept for cleanup once the
// transaction is decided. head is nil for vertices.
type touched struct {
	node    arena.Ref
	pred    arena.Ref
	head    arena.Ref
	predDim int
}

// Worker executes transactions on behalf of one goroutine.
// It owns one partition of every arena and its help stack; it is not safe for
// concurrent use.
type Worker struct {
	_ cpu.CacheLinePad

	e  *Engine
	id int

	vertices  *arena.Cursor[vertex]
	nodeDescs *arena.Cursor[txn.NodeDesc]
	descs     *arena.Cursor[txn.Desc]
	mdNodes   *arena.Cursor[mdlist.Node]
	mdDescs   *arena.Cursor[mdlist.Desc]

	help    txn.HelpStack
	scratch [txn.MaxHelpDepth][]touched
	stats   workerStats

	_ cpu.CacheLinePad
}

// NewWorker registers a worker and claims its arena partitions.
func (e *Engine) NewWorker() (*Worker, error) {
	id := e.nextWorker.Add(1) - 1
	if id >= int64(e.opts.Workers) {
		return nil, fmt.Errorf("%w: %d workers registered", arena.ErrNoPartition, e.opts.Workers)
	}

	w := &Worker{e: e, id: int(id)}
	var err error
	if w.vertices, err = e.vertices.Claim(); err != nil {
		return nil, err
	}
	if w.nodeDescs, err = e.nodeDescs.Claim(); err != nil {
		return nil, err
	}
	if w.descs, err = e.descs.Claim(); err != nil {
		return nil, err
	}
	if w.mdNodes, err = e.mdNodes.Claim(); err != nil {
		return nil, err
	}
	if w.mdDescs, err = e.mdDescs.Claim(); err != nil {
		return nil, err
	}

	e.workers[id].Store(w)
	return w, nil
}

// ID returns the worker index.
func (w *Worker) ID() int { return w.id }

// Begin allocates a transaction descriptor with room for size operators.
// The caller appends operators to the returned Desc before calling Execute.
func (w *Worker) Begin(size int) (arena.Ref, *txn.Desc, error) {
	if size <= 0 || size > w.e.opts.MaxTxnSize {
		return 0, nil, fmt.Errorf("%w: %d (max %d)", ErrTxnSize, size, w.e.opts.MaxTxnSize)
	}
	ref, d := w.descs.New()
	if err := d.Reset(size); err != nil {
		return 0, nil, err
	}
	return ref, d, nil
}

// Execute runs the transaction until it is decided and reports whether it committed.
func (w *Worker) Execute(desc arena.Ref) bool {
	w.help.Reset()
	w.helpOps(desc, 0)

	if w.e.desc(desc).Status() == txn.Committed {
		w.stats.commits.Add(1)
		return true
	}
	w.stats.aborts.Add(1)
	return false
}

// helpOps runs the operators of desc from opid on and decides the transaction.
func (w *Worker) helpOps(desc arena.Ref, opid int) {
	d := w.e.desc(desc)
	if d.Status() != txn.Active {
		return
	}
	if w.help.Contains(desc) {
		if d.Decide(txn.Aborted) {
			w.stats.cycleAborts.Add(1)
		}
		return
	}

	depth := w.help.Len()
	w.help.Push(desc)
	recs := w.scratch[depth][:0]

	rc := txn.OK
	for ; opid < d.Size() && rc != txn.Fail && d.Status() == txn.Active; opid++ {
		op := d.Op(opid)
		var t touched
		switch op.Type {
		case txn.OpFind:
			rc = w.find(op.Key, desc, opid)
		case txn.OpInsertVertex:
			rc, t = w.insertVertex(op.Key, desc, opid)
		case txn.OpDeleteVertex:
			rc, t = w.deleteVertex(op.Key, desc, opid)
		case txn.OpInsertEdge:
			rc, t = w.insertEdge(op.Key, op.EdgeKey, desc, opid)
		case txn.OpDeleteEdge:
			rc, t = w.deleteEdge(op.Key, op.EdgeKey, desc, opid)
		default:
			rc = txn.Fail
		}
		if rc != txn.Fail && !t.node.IsNil() {
			recs = append(recs, t)
		}
	}

	if rc != txn.Fail {
		d.Decide(txn.Committed)
	} else {
		d.Decide(txn.Aborted)
	}
	w.markForDeletion(recs, desc)

	w.scratch[depth] = recs[:0]
	w.help.Pop()
}

// finishPendingTxn completes the transaction bound through cd unless it is self.
//
// Helping resumes after the operator that wrote cd, except when that operator may
// still have work left: an override descriptor marks an edge insert that has not
// linked its node yet, and a pending delete still has to tear down the subtree.
func (w *Worker) finishPendingTxn(cd, self arena.Ref) {
	nd := w.e.nodeDesc(cd)
	if nd.Desc.Clear() == self.Clear() {
		return
	}
	owner := w.e.desc(nd.Desc)
	if owner.Status() != txn.Active {
		return
	}

	opid := int(nd.OpID)
	w.stats.helps.Add(1)
	if nd.Forced() || (owner.Op(opid).Type == txn.OpDeleteVertex && owner.Pending(opid)) {
		w.helpOps(nd.Desc, opid)
		return
	}
	w.helpOps(nd.Desc, opid+1)
}

// markForDeletion marks every recorded node that desc left bound but absent, and
// unlinks what can be unlinked right away.
func (w *Worker) markForDeletion(recs []touched, desc arena.Ref) {
	for _, r := range recs {
		if r.head.IsNil() {
			w.markVertex(r, desc)
		} else {
			w.markEdge(r, desc)
		}
	}
}

func (w *Worker) markVertex(r touched, desc arena.Ref) {
	e := w.e
	v := e.vertex(r.node)
	cd := v.loadDesc()
	if cd.Has(marked) || !e.ownedBy(cd, desc) || e.exists(cd, 0) {
		return
	}
	if !v.casDesc(cd, cd.With(marked)) {
		return
	}
	succ := v.markNext()
	if e.vertex(r.pred).casNext(r.node, succ) {
		w.stats.retired.Add(1)
	}
}

func (w *Worker) markEdge(r touched, desc arena.Ref) {
	e := w.e
	n := e.md.Node(r.node)
	cd := n.NodeDesc()
	if cd.Has(marked) || !e.ownedBy(cd, desc) || e.exists(cd, 0) {
		return
	}
	if !n.CompareAndSwapNodeDesc(cd, cd.With(marked)) {
		return
	}
	pos := mdlist.Position{Pred: r.pred, Curr: r.node, PredDim: r.predDim, Dim: mdlist.Dimension}
	if e.md.List(r.head).Delete(pos) {
		w.stats.retired.Add(1)
	}
}

// binding hands out the node descriptors one operator installs. Descriptors are
// immutable, so each variant is allocated at most once per operator run.
type binding struct {
	desc        arena.Ref
	opid        int
	normal      arena.Ref
	forceFind   arena.Ref
	forceDelete arena.Ref
}

func (w *Worker) newNodeDesc(desc arena.Ref, opid int, find, del bool) arena.Ref {
	ref, nd := w.nodeDescs.New()
	*nd = txn.NodeDesc{Desc: desc.Clear(), OpID: uint8(opid), ForceFind: find, ForceDelete: del}
	return ref
}

func (b *binding) plain(w *Worker) arena.Ref {
	if b.normal.IsNil() {
		b.normal = w.newNodeDesc(b.desc, b.opid, false, false)
	}
	return b.normal
}

// forced returns a descriptor pinning presence to present.
func (b *binding) forced(w *Worker, present bool) arena.Ref {
	if present {
		if b.forceFind.IsNil() {
			b.forceFind = w.newNodeDesc(b.desc, b.opid, true, false)
		}
		return b.forceFind
	}
	if b.forceDelete.IsNil() {
		b.forceDelete = w.newNodeDesc(b.desc, b.opid, false, true)
	}
	return b.forceDelete
}

// transition returns the descriptor that leaves a node present iff want once the
// transaction commits and restores prior on abort.
func (b *binding) transition(w *Worker, prior, want bool) arena.Ref {
	if prior == want {
		return b.forced(w, want)
	}
	return b.plain(w)
}
