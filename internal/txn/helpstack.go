package txn

import (
	"errors"
	"fmt"

	"github.com/hupe1980/txgraph/internal/arena"
)

// MaxHelpDepth bounds the nesting of transactions a worker may help at once.
const MaxHelpDepth = 256

// ErrHelpStackOverflow is the panic value (wrapped) raised when helping nests deeper
// than MaxHelpDepth.
var ErrHelpStackOverflow = errors.New("txn: help stack overflow")

// HelpStack records the descriptors a worker is currently helping, outermost first.
// It is owned by a single worker.
type HelpStack struct {
	descs [MaxHelpDepth]arena.Ref
	n     int
}

// Reset empties the stack.
func (s *HelpStack) Reset() { s.n = 0 }

// Len returns the current depth.
func (s *HelpStack) Len() int { return s.n }

// Push records desc. It panics when the depth bound is exceeded.
func (s *HelpStack) Push(desc arena.Ref) {
	if s.n >= MaxHelpDepth {
		panic(fmt.Errorf("%w: depth %d", ErrHelpStackOverflow, s.n))
	}
	s.descs[s.n] = desc.Clear()
	s.n++
}

// Pop removes the innermost descriptor.
func (s *HelpStack) Pop() {
	if s.n > 0 {
		s.n--
	}
}

// Contains reports whether desc is being helped.
func (s *HelpStack) Contains(desc arena.Ref) bool {
	desc = desc.Clear()
	for i := 0; i < s.n; i++ {
		if s.descs[i] == desc {
			return true
		}
	}
	return false
}
