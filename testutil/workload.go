package testutil

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/txgraph/internal/txn"
)

// ErrInvalidMix is returned when operation ratios are negative or do not sum to 1.
var ErrInvalidMix = errors.New("testutil: invalid operation mix")

// Mix holds the probability of each operator kind.
type Mix struct {
	InsertVertex float64
	DeleteVertex float64
	InsertEdge   float64
	DeleteEdge   float64
	Find         float64
}

// DefaultMix is the vertex-heavy mix used by the benchmark.
var DefaultMix = Mix{
	InsertVertex: 0.4,
	DeleteVertex: 0.4,
	InsertEdge:   0.1,
	DeleteEdge:   0.1,
}

// Validate checks that all ratios are non-negative and sum to 1.
func (m Mix) Validate() error {
	ratios := []float64{m.InsertVertex, m.DeleteVertex, m.InsertEdge, m.DeleteEdge, m.Find}
	var sum float64
	for _, r := range ratios {
		if r < 0 || math.IsNaN(r) {
			return fmt.Errorf("%w: negative ratio %v", ErrInvalidMix, r)
		}
		sum += r
	}
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("%w: ratios sum to %v", ErrInvalidMix, sum)
	}
	return nil
}

// Generator draws random operators over keys in [1, KeyRange].
type Generator struct {
	rng      *RNG
	mix      Mix
	keyRange uint32
}

// NewGenerator creates a generator. keyRange must be positive.
func NewGenerator(rng *RNG, mix Mix, keyRange uint32) (*Generator, error) {
	if err := mix.Validate(); err != nil {
		return nil, err
	}
	if keyRange == 0 || keyRange == math.MaxUint32 {
		return nil, fmt.Errorf("testutil: key range must be in [1, %d), got %d", uint32(math.MaxUint32), keyRange)
	}
	return &Generator{rng: rng, mix: mix, keyRange: keyRange}, nil
}

// KeyRange returns the largest key the generator draws.
func (g *Generator) KeyRange() uint32 { return g.keyRange }

// Next draws one operator.
func (g *Generator) Next() txn.Operator {
	p := g.rng.Float64()
	key := g.rng.Uint32n(g.keyRange)

	switch {
	case p < g.mix.InsertVertex:
		return txn.Operator{Type: txn.OpInsertVertex, Key: key}
	case p < g.mix.InsertVertex+g.mix.DeleteVertex:
		return txn.Operator{Type: txn.OpDeleteVertex, Key: key}
	case p < g.mix.InsertVertex+g.mix.DeleteVertex+g.mix.InsertEdge:
		return txn.Operator{Type: txn.OpInsertEdge, Key: key, EdgeKey: g.rng.Uint32n(g.keyRange)}
	case p < g.mix.InsertVertex+g.mix.DeleteVertex+g.mix.InsertEdge+g.mix.DeleteEdge:
		return txn.Operator{Type: txn.OpDeleteEdge, Key: key, EdgeKey: g.rng.Uint32n(g.keyRange)}
	default:
		return txn.Operator{Type: txn.OpFind, Key: key}
	}
}

// Transaction draws size operators.
func (g *Generator) Transaction(size int) []txn.Operator {
	ops := make([]txn.Operator, size)
	for i := range ops {
		ops[i] = g.Next()
	}
	return ops
}
