package engine

import (
	"github.com/hupe1980/txgraph/internal/arena"
	"github.com/hupe1980/txgraph/internal/mdlist"
	"github.com/hupe1980/txgraph/internal/txn"
)

func (w *Worker) insertEdge(vkey, ekey uint32, desc arena.Ref, opid int) (txn.ReturnCode, touched) {
	e := w.e
	d := e.desc(desc)
	b := binding{desc: desc, opid: opid}

	parent, ok := w.findVertex(vkey, desc)
	if !ok {
		return txn.Fail, touched{}
	}
	head := e.vertex(parent).adj
	l := e.md.List(head)

	var newRef arena.Ref
	coord := mdlist.KeyToCoord(ekey)
	pos := l.Start()
	for {
		l.LocatePred(&coord, &pos)
		pred := e.md.Node(pos.Pred)
		slot := pred.Child(pos.PredDim)

		if pos.Dim != mdlist.Dimension || slot.Has(mdlist.DeletionInvalid) {
			if d.Status() != txn.Active {
				return txn.Fail, touched{}
			}

			// Publish on the predecessor first, so a racing teardown of the vertex
			// either sees this operator or this operator sees the teardown.
			pcd := pred.NodeDesc()
			if !e.ownedBy(pcd, desc) {
				w.finishPendingTxn(pcd.Clear(), desc)
				if w.vertexGone(pcd, parent, vkey, desc) {
					return txn.Fail, touched{}
				}
				syn := b.forced(w, e.exists(pcd.Clear(), desc))
				if !pred.CompareAndSwapNodeDesc(pcd, syn) {
					continue
				}
			}

			if newRef.IsNil() {
				var n *mdlist.Node
				newRef, n = w.mdNodes.New()
				n.Init(ekey)
				n.SetNodeDesc(b.plain(w))
			}
			if l.Insert(w.mdDescs, newRef, &pos) {
				return txn.OK, touched{node: newRef, pred: pos.Pred, head: head, predDim: pos.PredDim}
			}
			continue
		}

		curr := e.md.Node(pos.Curr)
		cd := curr.NodeDesc()
		if cd.Has(marked) {
			// Dead edge: flag its slot so the next insert replaces it.
			if !pred.CompareAndSwapChild(pos.PredDim, pos.Curr, pos.Curr.With(mdlist.DeletionInvalid)) {
				pos = l.Start()
			}
			continue
		}

		w.finishPendingTxn(cd, desc)
		rec := touched{node: pos.Curr, pred: pos.Pred, head: head, predDim: pos.PredDim}
		if e.nodeDesc(cd).SameOperation(desc, opid) {
			return txn.Skip, rec
		}
		if e.exists(cd, desc) || d.Status() != txn.Active {
			return txn.Fail, touched{}
		}
		if !e.ownedBy(cd, desc) && w.vertexGone(cd, parent, vkey, desc) {
			return txn.Fail, touched{}
		}
		if curr.CompareAndSwapNodeDesc(cd, b.transition(w, e.before(cd, desc), true)) {
			return txn.OK, rec
		}
	}
}

// vertexGone reports whether the predecessor descriptor pcd shows that the vertex
// owning the list was deleted by a committed transaction. A stale teardown left
// over from before the vertex was re-inserted is told apart by looking the
// vertex up again.
func (w *Worker) vertexGone(pcd, parent arena.Ref, vkey uint32, desc arena.Ref) bool {
	e := w.e
	nd := e.nodeDesc(pcd)
	owner := e.desc(nd.Desc)
	if owner.Status() != txn.Committed || owner.Op(int(nd.OpID)).Type != txn.OpDeleteVertex {
		return false
	}
	n, ok := w.findVertex(vkey, desc)
	return !ok || n != parent
}

func (w *Worker) deleteEdge(vkey, ekey uint32, desc arena.Ref, opid int) (txn.ReturnCode, touched) {
	e := w.e
	d := e.desc(desc)
	b := binding{desc: desc, opid: opid}

	parent, ok := w.findVertex(vkey, desc)
	if !ok {
		return txn.Fail, touched{}
	}
	head := e.vertex(parent).adj
	l := e.md.List(head)

	for {
		pos, live := l.Locate(ekey)
		if !live {
			return txn.Fail, touched{}
		}

		curr := e.md.Node(pos.Curr)
		cd := curr.NodeDesc()
		if cd.Has(marked) {
			return txn.Fail, touched{}
		}

		w.finishPendingTxn(cd, desc)
		rec := touched{node: pos.Curr, pred: pos.Pred, head: head, predDim: pos.PredDim}
		if e.nodeDesc(cd).SameOperation(desc, opid) {
			return txn.Skip, rec
		}
		if !e.exists(cd, desc) || d.Status() != txn.Active {
			return txn.Fail, touched{}
		}
		if curr.CompareAndSwapNodeDesc(cd, b.transition(w, e.before(cd, desc), false)) {
			return txn.OK, rec
		}
	}
}
