package testutil

import "math/rand/v2"

// pcgStream fixes the PCG increment so a seed alone names a sequence.
const pcgStream = 0x9e3779b97f4a7c15

// RNG is a reproducible PCG stream keyed by a single seed.
// It is not safe for concurrent use; every worker goroutine owns its own.
type RNG struct {
	seed int64
	src  *rand.PCG
	r    *rand.Rand
}

// NewRNG returns the stream for seed.
func NewRNG(seed int64) *RNG {
	src := rand.NewPCG(uint64(seed), pcgStream)
	return &RNG{seed: seed, src: src, r: rand.New(src)}
}

// Reset rewinds the stream to its first value.
func (g *RNG) Reset() { g.src.Seed(uint64(g.seed), pcgStream) }

// Seed reports the seed the stream was created with.
func (g *RNG) Seed() int64 { return g.seed }

// Intn draws from [0,n).
func (g *RNG) Intn(n int) int { return g.r.IntN(n) }

// Uint32n draws a key from [1,n]; zero is never a valid key.
func (g *RNG) Uint32n(n uint32) uint32 { return g.r.Uint32N(n) + 1 }

func (g *RNG) Float64() float64 { return g.r.Float64() }

// Perm shuffles [0,n).
func (g *RNG) Perm(n int) []int { return g.r.Perm(n) }
