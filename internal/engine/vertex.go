package engine

import (
	"github.com/hupe1980/txgraph/internal/arena"
	"github.com/hupe1980/txgraph/internal/mdlist"
	"github.com/hupe1980/txgraph/internal/txn"
)

func (w *Worker) find(key uint32, desc arena.Ref, opid int) txn.ReturnCode {
	e := w.e
	d := e.desc(desc)
	b := binding{desc: desc, opid: opid}

	pred, curr := e.head, e.head
	for {
		e.locatePred(&pred, &curr, key, &w.stats)
		v := e.vertex(curr)
		if v.key != key {
			return txn.Fail
		}

		cd := v.loadDesc()
		if cd.Has(marked) {
			v.markNext()
			curr = e.head
			continue
		}

		w.finishPendingTxn(cd, desc)
		if e.nodeDesc(cd).SameOperation(desc, opid) {
			return txn.Skip
		}
		if !e.exists(cd, desc) {
			return txn.Fail
		}
		if e.ownedBy(cd, desc) {
			// Bound by an earlier operator of this transaction already.
			return txn.OK
		}
		if d.Status() != txn.Active {
			return txn.Fail
		}
		if v.casDesc(cd, b.plain(w)) {
			return txn.OK
		}
	}
}

func (w *Worker) insertVertex(key uint32, desc arena.Ref, opid int) (txn.ReturnCode, touched) {
	e := w.e
	d := e.desc(desc)
	b := binding{desc: desc, opid: opid}

	var (
		newRef arena.Ref
		nv     *vertex
	)
	pred, curr := e.head, e.head
	for {
		e.locatePred(&pred, &curr, key, &w.stats)
		v := e.vertex(curr)

		if v.key != key {
			if d.Status() != txn.Active {
				return txn.Fail, touched{}
			}
			if newRef.IsNil() {
				newRef, nv = w.vertices.New()
				nv.key = key
				nv.nodeDesc.Store(uint64(b.plain(w)))
				adj, head := w.mdNodes.New()
				head.Init(0)
				head.SetNodeDesc(b.plain(w))
				nv.adj = adj
			}
			nv.next.Store(uint64(curr))

			p := e.vertex(pred)
			if p.casNext(curr, newRef) {
				return txn.OK, touched{node: newRef, pred: pred}
			}
			if p.loadNext().Has(marked) {
				curr = e.head
			} else {
				curr = pred
			}
			continue
		}

		cd := v.loadDesc()
		if cd.Has(marked) {
			v.markNext()
			curr = e.head
			continue
		}

		w.finishPendingTxn(cd, desc)
		if e.nodeDesc(cd).SameOperation(desc, opid) {
			return txn.Skip, touched{node: curr, pred: pred}
		}
		if e.exists(cd, desc) || d.Status() != txn.Active {
			return txn.Fail, touched{}
		}
		if v.casDesc(cd, b.transition(w, e.before(cd, desc), true)) {
			return txn.OK, touched{node: curr, pred: pred}
		}
	}
}

func (w *Worker) deleteVertex(key uint32, desc arena.Ref, opid int) (txn.ReturnCode, touched) {
	e := w.e
	d := e.desc(desc)
	b := binding{desc: desc, opid: opid}

	pred, curr := e.head, e.head
	for {
		e.locatePred(&pred, &curr, key, &w.stats)
		v := e.vertex(curr)
		if v.key != key {
			return txn.Fail, touched{}
		}

		cd := v.loadDesc()
		if cd.Has(marked) {
			return txn.Fail, touched{}
		}

		w.finishPendingTxn(cd, desc)
		if e.nodeDesc(cd).SameOperation(desc, opid) {
			return w.completeDelete(v, &b), touched{node: curr, pred: pred}
		}
		if !e.exists(cd, desc) || d.Status() != txn.Active {
			return txn.Fail, touched{}
		}
		if v.casDesc(cd, b.transition(w, e.before(cd, desc), false)) {
			return w.completeDelete(v, &b), touched{node: curr, pred: pred}
		}
	}
}

// completeDelete tears down the adjacency of a claimed vertex. The executor that
// clears the pending flag owns the result.
func (w *Worker) completeDelete(v *vertex, b *binding) txn.ReturnCode {
	d := w.e.desc(b.desc)
	if !d.Pending(b.opid) {
		return txn.Skip
	}
	w.finishDeleteVertex(v.adj, v.adj, 0, b)
	if d.ClearPending(b.opid) {
		return txn.OK
	}
	return txn.Skip
}

// finishDeleteVertex binds every node below n to the deleting operator, parents
// before children. It returns false once the transaction is no longer active.
func (w *Worker) finishDeleteVertex(head, n arena.Ref, dim int, b *binding) bool {
	e := w.e
	d := e.desc(b.desc)
	node := e.md.Node(n)

	for {
		cd := node.NodeDesc()
		if cd.IsNil() || cd.Has(marked) {
			break
		}
		w.finishPendingTxn(cd, b.desc)
		if d.Status() != txn.Active {
			return false
		}
		if e.nodeDesc(cd).SameOperation(b.desc, b.opid) {
			break
		}
		if node.CompareAndSwapNodeDesc(cd, b.transition(w, e.before(cd, b.desc), false)) {
			break
		}
	}

	l := e.md.List(head)
	if p := node.Pending(); !p.IsNil() {
		l.FinishInserting(n, p)
	}
	for i := mdlist.Dimension - 1; i >= dim; i-- {
		child := node.Child(i).Clear()
		if child.IsNil() {
			continue
		}
		if !w.finishDeleteVertex(head, child, i, b) {
			return false
		}
	}
	return true
}

// findVertex locates key after helping its owner and reports whether it is
// present as seen by desc.
func (w *Worker) findVertex(key uint32, desc arena.Ref) (arena.Ref, bool) {
	e := w.e
	pred, curr := e.head, e.head
	for {
		e.locatePred(&pred, &curr, key, &w.stats)
		v := e.vertex(curr)
		if v.key != key {
			return 0, false
		}

		cd := v.loadDesc()
		if cd.Has(marked) {
			v.markNext()
			curr = e.head
			continue
		}

		w.finishPendingTxn(cd, desc)
		return curr, e.exists(cd, desc)
	}
}
