package engine

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/txgraph/internal/arena"
	"github.com/hupe1980/txgraph/internal/mdlist"
)

// lookupVertex finds key without helping or binding anything.
func (e *Engine) lookupVertex(key uint32) (arena.Ref, bool) {
	if key == HeadKey || key == TailKey {
		return 0, false
	}
	pred, curr := e.head, e.head
	e.locatePred(&pred, &curr, key, nil)
	v := e.vertex(curr)
	if v.key != key {
		return 0, false
	}
	cd := v.loadDesc()
	if cd.Has(marked) {
		return 0, false
	}
	return curr, e.exists(cd, 0)
}

// ContainsVertex reports whether key is present as of the committed state.
// Transactions still in flight count as not yet applied.
func (e *Engine) ContainsVertex(key uint32) bool {
	_, ok := e.lookupVertex(key)
	return ok
}

// ContainsEdge reports whether the edge v->edge is present as of the committed state.
func (e *Engine) ContainsEdge(v, edge uint32) bool {
	if edge == 0 {
		return false
	}
	parent, ok := e.lookupVertex(v)
	if !ok {
		return false
	}

	pos, live := e.md.List(e.vertex(parent).adj).Locate(edge)
	if !live {
		return false
	}
	cd := e.md.Node(pos.Curr).NodeDesc()
	return !cd.Has(marked) && e.exists(cd, 0)
}

// Vertices returns the keys of all present vertices.
// The result is exact only while no transaction is running.
func (e *Engine) Vertices() *roaring.Bitmap {
	bm := roaring.New()
	for ref := e.vertex(e.head).loadNext().Clear(); ref != e.tail; {
		v := e.vertex(ref)
		next := v.loadNext()
		if !next.Has(marked) {
			if cd := v.loadDesc(); !cd.Has(marked) && e.exists(cd, 0) {
				bm.Add(v.key)
			}
		}
		ref = next.Clear()
	}
	return bm
}

// Edges returns the edge keys of vertex v, or an empty bitmap if v is absent.
// The result is exact only while no transaction is running.
func (e *Engine) Edges(v uint32) *roaring.Bitmap {
	bm := roaring.New()
	parent, ok := e.lookupVertex(v)
	if !ok {
		return bm
	}

	e.md.List(e.vertex(parent).adj).Walk(func(_ arena.Ref, n *mdlist.Node, slot arena.Ref) bool {
		if slot.Has(mdlist.DeletionInvalid) {
			return true
		}
		if cd := n.NodeDesc(); !cd.Has(marked) && e.exists(cd, 0) {
			bm.Add(n.Key())
		}
		return true
	})
	return bm
}

// Stats holds engine counters and arena usage.
type Stats struct {
	Workers     int
	Commits     uint64
	Aborts      uint64
	Helps       uint64 // transactions helped on behalf of others
	CycleAborts uint64 // transactions aborted to break a helping cycle
	Retired     uint64 // nodes physically unlinked or flagged for replacement
	Regions     []arena.Stats
}

// Stats returns a snapshot of engine counters.
func (e *Engine) Stats() Stats {
	var s Stats
	for i := range e.workers {
		w := e.workers[i].Load()
		if w == nil {
			continue
		}
		s.Workers++
		s.Commits += w.stats.commits.Load()
		s.Aborts += w.stats.aborts.Load()
		s.Helps += w.stats.helps.Load()
		s.CycleAborts += w.stats.cycleAborts.Load()
		s.Retired += w.stats.retired.Load()
	}
	s.Regions = []arena.Stats{
		e.vertices.Stats(),
		e.nodeDescs.Stats(),
		e.descs.Stats(),
		e.mdNodes.Stats(),
		e.mdDescs.Stats(),
	}
	return s
}
