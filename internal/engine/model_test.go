package engine

import (
	"fmt"
	"maps"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/txgraph/internal/txn"
	"github.com/hupe1980/txgraph/testutil"
)

// graphModel is the sequential reference: vertex key to its edge targets.
type graphModel map[uint32]map[uint32]struct{}

func (m graphModel) clone() graphModel {
	c := make(graphModel, len(m))
	for k, edges := range m {
		c[k] = maps.Clone(edges)
	}
	return c
}

// apply reports whether op succeeds against m, mutating m on success.
func (m graphModel) apply(op txn.Operator) bool {
	edges, present := m[op.Key]
	switch op.Type {
	case txn.OpFind:
		return present
	case txn.OpInsertVertex:
		if present {
			return false
		}
		m[op.Key] = map[uint32]struct{}{}
	case txn.OpDeleteVertex:
		if !present {
			return false
		}
		delete(m, op.Key)
	case txn.OpInsertEdge:
		if !present {
			return false
		}
		if _, ok := edges[op.EdgeKey]; ok {
			return false
		}
		edges[op.EdgeKey] = struct{}{}
	case txn.OpDeleteEdge:
		if !present {
			return false
		}
		if _, ok := edges[op.EdgeKey]; !ok {
			return false
		}
		delete(edges, op.EdgeKey)
	}
	return true
}

// commit runs ops against a copy and returns the state a transaction leaves.
func (m graphModel) commit(ops []txn.Operator) (graphModel, bool) {
	next := m.clone()
	for _, op := range ops {
		if !next.apply(op) {
			return m, false
		}
	}
	return next, true
}

func TestModel_RandomTransactions(t *testing.T) {
	const (
		txns     = 1000
		size     = 4
		keyRange = 32
	)
	mix := testutil.Mix{InsertVertex: 0.3, DeleteVertex: 0.15, InsertEdge: 0.3, DeleteEdge: 0.15, Find: 0.1}

	for _, seed := range []int64{1, 7, 42, 1234, 99991} {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			e := newTestEngine(t, 1, txns*size)
			w := newTestWorker(t, e)
			gen, err := testutil.NewGenerator(testutil.NewRNG(seed), mix, keyRange)
			require.NoError(t, err)

			model := graphModel{}
			commits := 0
			for n := 0; n < txns; n++ {
				ops := gen.Transaction(size)
				next, want := model.commit(ops)
				require.Equal(t, want, run(t, w, ops...), "seed %d txn %d: %v", seed, n, ops)
				model = next
				if want {
					commits++
				}
			}

			s := e.Stats()
			assert.Equal(t, uint64(commits), s.Commits)
			assert.Equal(t, uint64(txns-commits), s.Aborts)

			assert.Equal(t, uint64(len(model)), e.Vertices().GetCardinality())
			for k := uint32(1); k <= keyRange; k++ {
				edges, present := model[k]
				require.Equal(t, present, e.ContainsVertex(k), "vertex %d", k)
				assert.Equal(t, uint64(len(edges)), e.Edges(k).GetCardinality(), "edges of %d", k)
				for ek := uint32(1); ek <= keyRange; ek++ {
					_, want := edges[ek]
					assert.Equal(t, want, e.ContainsEdge(k, ek), "edge %d->%d", k, ek)
				}
			}
		})
	}
}
