// Package testutil provides testing utilities for txgraph.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded random source and a generator of random transaction
// operators following a configurable operation mix.
//
// # Random Workloads
//
//	rng := testutil.NewRNG(seed)
//	gen, err := testutil.NewGenerator(rng, testutil.DefaultMix, 5000)
//	ops := gen.Transaction(4)
package testutil
