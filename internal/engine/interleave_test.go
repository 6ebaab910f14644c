package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/txgraph/internal/arena"
	"github.com/hupe1980/txgraph/internal/mdlist"
	"github.com/hupe1980/txgraph/internal/txn"
)

// These tests drive single operators by hand to pin down one interleaving.

func TestInterleaving_HelperCompletesTransaction(t *testing.T) {
	e := newTestEngine(t, 2, 64)
	w1 := newTestWorker(t, e)
	w2 := newTestWorker(t, e)

	tx := begin(t, w1, insV(5), insV(6))
	rc, _ := w1.insertVertex(5, tx, 0)
	require.Equal(t, txn.OK, rc)
	assert.False(t, e.ContainsVertex(5), "in-flight insert is not visible")

	require.True(t, run(t, w2, find(5)))

	assert.Equal(t, txn.Committed, e.Desc(tx).Status())
	assert.True(t, e.ContainsVertex(5))
	assert.True(t, e.ContainsVertex(6))
	assert.Equal(t, uint64(1), w2.stats.helps.Load())

	assert.True(t, w1.Execute(tx), "owner observes the helped outcome")
}

func TestInterleaving_RedundantOperatorSkips(t *testing.T) {
	e := newTestEngine(t, 2, 64)
	w1 := newTestWorker(t, e)
	w2 := newTestWorker(t, e)

	tx := begin(t, w1, insV(1), insE(1, 2))
	rc, _ := w1.insertVertex(1, tx, 0)
	require.Equal(t, txn.OK, rc)
	rc, _ = w2.insertVertex(1, tx, 0)
	assert.Equal(t, txn.Skip, rc)

	rc, _ = w1.insertEdge(1, 2, tx, 1)
	require.Equal(t, txn.OK, rc)
	rc, _ = w2.insertEdge(1, 2, tx, 1)
	assert.Equal(t, txn.Skip, rc)

	require.True(t, w1.Execute(tx))
	assert.Equal(t, []uint32{2}, e.Edges(1).ToArray())
}

func TestInterleaving_CycleAborts(t *testing.T) {
	e := newTestEngine(t, 2, 64)
	w1 := newTestWorker(t, e)
	w2 := newTestWorker(t, e)

	t1 := begin(t, w1, insV(1), insV(2))
	t2 := begin(t, w2, insV(2), insV(1))

	rc, _ := w1.insertVertex(1, t1, 0)
	require.Equal(t, txn.OK, rc)
	rc, _ = w2.insertVertex(2, t2, 0)
	require.Equal(t, txn.OK, rc)

	// t1 helps t2, which needs t1 again: the cycle is broken by aborting t1.
	assert.False(t, w1.Execute(t1))
	assert.Equal(t, txn.Committed, e.Desc(t2).Status())
	assert.True(t, w2.Execute(t2))

	assert.True(t, e.ContainsVertex(1))
	assert.True(t, e.ContainsVertex(2))
	assert.Equal(t, uint64(1), e.Stats().CycleAborts)
}

func TestInterleaving_PendingDeleteIsFinishedByHelper(t *testing.T) {
	e := newTestEngine(t, 2, 64)
	w1 := newTestWorker(t, e)
	w2 := newTestWorker(t, e)

	require.True(t, run(t, w1, insV(1), insE(1, 2), insE(1, 3)))

	tx := begin(t, w1, delV(1))
	parent, ok := e.lookupVertex(1)
	require.True(t, ok)
	v := e.vertex(parent)
	b := binding{desc: tx, opid: 0}
	require.True(t, v.casDesc(v.loadDesc(), b.plain(w1)), "claim the vertex, leave the teardown pending")

	assert.True(t, e.ContainsVertex(1), "in-flight delete is not visible")
	assert.False(t, run(t, w2, insE(1, 4)))

	assert.Equal(t, txn.Committed, e.Desc(tx).Status())
	assert.False(t, e.Desc(tx).Pending(0))
	assert.False(t, e.ContainsVertex(1))
	assertNoLiveEdges(t, e, v.adj)

	assert.True(t, w1.Execute(tx))
}

func TestInterleaving_TeardownMeetsEdgeInsert(t *testing.T) {
	e := newTestEngine(t, 2, 64)
	w1 := newTestWorker(t, e)
	w2 := newTestWorker(t, e)

	require.True(t, run(t, w1, insV(1), insE(1, 2)))
	parent, ok := e.lookupVertex(1)
	require.True(t, ok)
	adj := e.vertex(parent).adj

	// An edge insert has published itself on the list head but not linked yet.
	ins := begin(t, w1, insE(1, 5))
	head := e.md.Node(adj)
	cd := head.NodeDesc()
	b := binding{desc: ins, opid: 0}
	require.True(t, head.CompareAndSwapNodeDesc(cd, b.forced(w1, e.exists(cd, ins))))

	// The teardown must finish the insert first; the insert then needs the
	// delete again, so the delete is the one that aborts.
	assert.False(t, run(t, w2, delV(1)))
	assert.Equal(t, txn.Committed, e.Desc(ins).Status())

	assert.True(t, e.ContainsVertex(1))
	assert.Equal(t, []uint32{2, 5}, e.Edges(1).ToArray())
	assert.True(t, w1.Execute(ins))

	require.True(t, run(t, w2, delV(1)))
	assertNoLiveEdges(t, e, adj)
}

func TestInterleaving_StaleTeardownOnReclaimedVertex(t *testing.T) {
	e := newTestEngine(t, 1, 128)
	w := newTestWorker(t, e)

	require.True(t, run(t, w, insV(1), insE(1, 2)))
	parent, _ := e.lookupVertex(1)

	// Delete without the physical cleanup, then re-insert: the same node is
	// reclaimed and its list still carries the delete's descriptors.
	tx := begin(t, w, delV(1))
	w.help.Reset()
	w.help.Push(tx)
	rc, _ := w.deleteVertex(1, tx, 0)
	require.Equal(t, txn.OK, rc)
	require.True(t, e.Desc(tx).Decide(txn.Committed))
	w.help.Pop()

	require.True(t, run(t, w, insV(1)))
	reclaimed, ok := e.lookupVertex(1)
	require.True(t, ok)
	require.Equal(t, parent, reclaimed)

	assert.True(t, e.Edges(1).IsEmpty())
	require.True(t, run(t, w, insE(1, 2)), "reclaiming a torn down edge")
	require.True(t, run(t, w, insE(1, 3)))
	assert.Equal(t, []uint32{2, 3}, e.Edges(1).ToArray())
}

func TestInterleaving_AbortedInsertIsRetired(t *testing.T) {
	e := newTestEngine(t, 1, 64)
	w := newTestWorker(t, e)

	require.True(t, run(t, w, insV(1)))
	require.False(t, run(t, w, insE(1, 3), delV(9)))

	parent, _ := e.lookupVertex(1)
	_, live := e.md.List(e.vertex(parent).adj).Locate(3)
	assert.False(t, live, "rolled back edge is flagged for replacement")
	assert.NotZero(t, e.Stats().Retired)
}

// assertNoLiveEdges checks that no node of the list rooted at adj is present.
func assertNoLiveEdges(t *testing.T, e *Engine, adj arena.Ref) {
	t.Helper()
	e.md.List(adj).Walk(func(_ arena.Ref, n *mdlist.Node, _ arena.Ref) bool {
		cd := n.NodeDesc()
		assert.True(t, cd.Has(marked) || !e.exists(cd, 0), "edge %d survived its vertex", n.Key())
		return true
	})
}
