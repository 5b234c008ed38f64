// Package testutil provides testing utilities for graphstore.
//
// This package is intended for use in tests and benchmarks only. It
// provides a seeded thread-safe random source, generators for keys,
// handles, and key/value pairs, and backend fixtures that open each store
// implementation against a test's temporary directory.
//
// # Random Data Generation
//
//	rng := testutil.NewRNG(seed)
//	key := rng.Key(8)
//	pairs := rng.Pairs(100, 8, 16)
//
// # Backend Fixtures
//
//	for _, be := range testutil.Backends(t) {
//		t.Run(be.Name, func(t *testing.T) { ... })
//	}
package testutil
