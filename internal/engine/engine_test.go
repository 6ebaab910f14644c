package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/txgraph/internal/arena"
	"github.com/hupe1980/txgraph/internal/txn"
)

func newTestEngine(t *testing.T, workers, opsPerWorker int) *Engine {
	t.Helper()
	e, err := New(func(o *Options) {
		o.Workers = workers
		o.MaxTxnSize = 8
		o.OpsPerWorker = opsPerWorker
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func newTestWorker(t *testing.T, e *Engine) *Worker {
	t.Helper()
	w, err := e.NewWorker()
	require.NoError(t, err)
	return w
}

func build(w *Worker, ops ...txn.Operator) (arena.Ref, error) {
	ref, d, err := w.Begin(len(ops))
	if err != nil {
		return 0, err
	}
	for _, op := range ops {
		if err := ValidateOperator(op); err != nil {
			return 0, err
		}
		if err := d.Append(op); err != nil {
			return 0, err
		}
	}
	return ref, nil
}

// execute is safe to call from worker goroutines; failures come back as errors.
func execute(w *Worker, ops ...txn.Operator) (bool, error) {
	ref, err := build(w, ops...)
	if err != nil {
		return false, err
	}
	return w.Execute(ref), nil
}

func begin(t *testing.T, w *Worker, ops ...txn.Operator) arena.Ref {
	t.Helper()
	ref, err := build(w, ops...)
	require.NoError(t, err)
	return ref
}

func run(t *testing.T, w *Worker, ops ...txn.Operator) bool {
	t.Helper()
	return w.Execute(begin(t, w, ops...))
}

func insV(k uint32) txn.Operator { return txn.Operator{Type: txn.OpInsertVertex, Key: k} }
func delV(k uint32) txn.Operator { return txn.Operator{Type: txn.OpDeleteVertex, Key: k} }
func find(k uint32) txn.Operator { return txn.Operator{Type: txn.OpFind, Key: k} }

func insE(v, e uint32) txn.Operator {
	return txn.Operator{Type: txn.OpInsertEdge, Key: v, EdgeKey: e}
}

func delE(v, e uint32) txn.Operator {
	return txn.Operator{Type: txn.OpDeleteEdge, Key: v, EdgeKey: e}
}

func TestNew_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		fn   func(o *Options)
	}{
		{"no workers", func(o *Options) { o.Workers = 0 }},
		{"zero txn size", func(o *Options) { o.MaxTxnSize = 0 }},
		{"txn size too large", func(o *Options) { o.MaxTxnSize = txn.MaxSize + 1 }},
		{"no ops", func(o *Options) { o.OpsPerWorker = 0 }},
		{"no margin", func(o *Options) { o.SlotMargin = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.fn)
			require.ErrorIs(t, err, ErrInvalidOptions)
		})
	}
}

func TestNewWorker_Limit(t *testing.T) {
	e := newTestEngine(t, 2, 16)
	newTestWorker(t, e)
	newTestWorker(t, e)

	_, err := e.NewWorker()
	require.ErrorIs(t, err, arena.ErrNoPartition)
}

func TestWorker_Begin(t *testing.T) {
	e := newTestEngine(t, 1, 16)
	w := newTestWorker(t, e)

	_, _, err := w.Begin(0)
	require.ErrorIs(t, err, ErrTxnSize)
	_, _, err = w.Begin(9)
	require.ErrorIs(t, err, ErrTxnSize)

	ref, d, err := w.Begin(2)
	require.NoError(t, err)
	assert.Same(t, d, e.Desc(ref))
	assert.Equal(t, txn.Active, d.Status())
}

func TestValidateOperator(t *testing.T) {
	assert.NoError(t, ValidateOperator(insV(1)))
	assert.NoError(t, ValidateOperator(insE(1, 2)))
	assert.ErrorIs(t, ValidateOperator(insV(HeadKey)), ErrInvalidKey)
	assert.ErrorIs(t, ValidateOperator(find(TailKey)), ErrInvalidKey)
	assert.ErrorIs(t, ValidateOperator(insE(1, 0)), ErrInvalidKey)
	assert.ErrorIs(t, ValidateOperator(txn.Operator{Type: 42, Key: 1}), ErrInvalidKey)
}

func TestScenarioSequentialInserts(t *testing.T) {
	const n = 4999
	e := newTestEngine(t, 1, 2*n+2)
	w := newTestWorker(t, e)

	for k := uint32(1); k <= n; k++ {
		require.True(t, run(t, w, insV(k)), "insert %d", k)
	}
	for k := uint32(1); k <= n; k++ {
		assert.True(t, e.ContainsVertex(k))
		assert.True(t, run(t, w, find(k)))
	}
	assert.False(t, e.ContainsVertex(0))
	assert.False(t, e.ContainsVertex(5000))
	assert.Equal(t, uint64(n), e.Vertices().GetCardinality())

	s := e.Stats()
	assert.Equal(t, uint64(2*n), s.Commits)
	assert.Zero(t, s.Aborts)
}

func TestScenarioEdgeOnMissingVertex(t *testing.T) {
	e := newTestEngine(t, 1, 64)
	w := newTestWorker(t, e)

	assert.False(t, run(t, w, insE(1, 2)))
	assert.False(t, e.ContainsVertex(1))
	assert.False(t, e.ContainsEdge(1, 2))
	assert.Equal(t, uint64(1), e.Stats().Aborts)
}

func TestBasicOperations(t *testing.T) {
	e := newTestEngine(t, 1, 256)
	w := newTestWorker(t, e)

	require.True(t, run(t, w, insV(1), insV(2)))
	assert.False(t, run(t, w, insV(1)), "duplicate insert fails")
	assert.False(t, run(t, w, delV(3)), "delete of absent fails")
	assert.False(t, run(t, w, find(3)))

	require.True(t, run(t, w, insE(1, 2), insE(1, 7), insE(2, 1)))
	assert.True(t, e.ContainsEdge(1, 2))
	assert.True(t, e.ContainsEdge(1, 7))
	assert.True(t, e.ContainsEdge(2, 1))
	assert.False(t, e.ContainsEdge(2, 7))
	assert.False(t, run(t, w, insE(1, 2)), "duplicate edge fails")

	assert.Equal(t, []uint32{2, 7}, e.Edges(1).ToArray())

	require.True(t, run(t, w, delE(1, 7)))
	assert.False(t, e.ContainsEdge(1, 7))
	assert.False(t, run(t, w, delE(1, 7)))

	require.True(t, run(t, w, insE(1, 7)), "edge can be re-inserted")
	assert.True(t, e.ContainsEdge(1, 7))

	require.True(t, run(t, w, delV(1)))
	assert.False(t, e.ContainsVertex(1))
	assert.False(t, e.ContainsEdge(1, 2))
	assert.True(t, e.Edges(1).IsEmpty())

	require.True(t, run(t, w, insV(1)))
	assert.True(t, e.Edges(1).IsEmpty(), "re-inserted vertex starts without edges")
	assert.Equal(t, []uint32{1, 2}, e.Vertices().ToArray())
}

func TestAtomicity_AbortRestoresState(t *testing.T) {
	e := newTestEngine(t, 1, 256)
	w := newTestWorker(t, e)

	require.True(t, run(t, w, insV(1), insE(1, 2)))

	// The last operator fails, so nothing before it may survive.
	assert.False(t, run(t, w, insV(10), insE(10, 5), insE(1, 3), delE(1, 2), delV(99)))
	assert.False(t, e.ContainsVertex(10))
	assert.False(t, e.ContainsEdge(10, 5))
	assert.False(t, e.ContainsEdge(1, 3))
	assert.True(t, e.ContainsEdge(1, 2))

	assert.False(t, run(t, w, delV(1), delV(99)))
	assert.True(t, e.ContainsVertex(1))
	assert.True(t, e.ContainsEdge(1, 2), "aborted teardown keeps edges")

	require.True(t, run(t, w, insV(10)))
	assert.True(t, e.Edges(10).IsEmpty())
	require.True(t, run(t, w, insE(1, 3)), "rolled back edge can be inserted again")
	assert.Equal(t, []uint32{2, 3}, e.Edges(1).ToArray())
}

func TestTransaction_SeesOwnEffects(t *testing.T) {
	e := newTestEngine(t, 1, 512)
	w := newTestWorker(t, e)

	t.Run("insert then use", func(t *testing.T) {
		require.True(t, run(t, w, insV(1), find(1), insE(1, 2), delE(1, 2), insE(1, 2)))
		assert.True(t, e.ContainsVertex(1))
		assert.True(t, e.ContainsEdge(1, 2))
	})

	t.Run("delete then use fails", func(t *testing.T) {
		assert.False(t, run(t, w, delV(1), find(1)))
		assert.False(t, run(t, w, delV(1), insE(1, 3)))
		assert.True(t, e.ContainsVertex(1))
		assert.True(t, e.ContainsEdge(1, 2))
	})

	t.Run("delete and re-insert committed", func(t *testing.T) {
		require.True(t, run(t, w, delV(1), insV(1)))
		assert.True(t, e.ContainsVertex(1))
		assert.False(t, e.ContainsEdge(1, 2), "teardown removed the edge")
	})

	t.Run("delete and re-insert aborted", func(t *testing.T) {
		require.True(t, run(t, w, insE(1, 4)))
		assert.False(t, run(t, w, delV(1), insV(1), delV(99)))
		assert.True(t, e.ContainsVertex(1))
		assert.True(t, e.ContainsEdge(1, 4))
	})

	t.Run("insert and delete", func(t *testing.T) {
		assert.False(t, run(t, w, insV(50), delV(50), delV(99)))
		assert.False(t, e.ContainsVertex(50))

		require.True(t, run(t, w, insV(50), delV(50)))
		assert.False(t, e.ContainsVertex(50))
	})

	t.Run("full cycle in one transaction", func(t *testing.T) {
		require.True(t, run(t, w, insV(60), insE(60, 1), delV(60), insV(60)))
		assert.True(t, e.ContainsVertex(60))
		assert.False(t, e.ContainsEdge(60, 1))

		require.True(t, run(t, w, insE(60, 1)))
		assert.True(t, e.ContainsEdge(60, 1))
	})
}

func TestExecute_ResetsHelpStack(t *testing.T) {
	e := newTestEngine(t, 1, 64)
	w := newTestWorker(t, e)

	run(t, w, insV(1), delV(2))
	assert.Zero(t, w.help.Len())
	run(t, w, insV(2))
	assert.Zero(t, w.help.Len())
}

func TestHelpOps_DecidedIsNoop(t *testing.T) {
	e := newTestEngine(t, 2, 64)
	w1 := newTestWorker(t, e)
	w2 := newTestWorker(t, e)

	committed := begin(t, w1, insV(1), insE(1, 2))
	require.True(t, w1.Execute(committed))
	aborted := begin(t, w1, insV(3), delV(4))
	require.False(t, w1.Execute(aborted))

	for opid := 0; opid < 2; opid++ {
		w2.helpOps(committed, opid)
		w2.helpOps(aborted, opid)
	}

	assert.Equal(t, txn.Committed, e.Desc(committed).Status())
	assert.Equal(t, txn.Aborted, e.Desc(aborted).Status())
	assert.True(t, e.ContainsVertex(1))
	assert.True(t, e.ContainsEdge(1, 2))
	assert.False(t, e.ContainsVertex(3))
	assert.Zero(t, e.Stats().Helps)
}
