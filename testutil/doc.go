// Package testutil provides testing utilities for seglog.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded, thread-safe random source and helpers for
// generating message payloads with controlled compressibility.
//
// # Payload Generation
//
//	rng := testutil.NewRNG(seed)
//	raw := rng.Payload(256)             // incompressible random bytes
//	text := rng.CompressiblePayload(256) // repetitive, compresses well
package testutil
