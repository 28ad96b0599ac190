package testutil

import (
	"fmt"
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// FillBytes fills dst with random bytes.
// Locks only once per call (preferred over calling Intn in a loop).
func (r *RNG) FillBytes(dst []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Read(dst) //nolint:errcheck // never fails
}

// Payload returns n random bytes. Random data does not compress, which
// makes these payloads useful for testing the stored-raw fallback.
func (r *RNG) Payload(n int) []byte {
	p := make([]byte, n)
	r.FillBytes(p)
	return p
}

// CompressiblePayload returns n bytes drawn from a tiny alphabet so the
// result compresses well under any codec.
func (r *RNG) CompressiblePayload(n int) []byte {
	const alphabet = "abcd"
	r.mu.Lock()
	defer r.mu.Unlock()
	p := make([]byte, n)
	for i := range p {
		p[i] = alphabet[r.rand.Intn(len(alphabet))]
	}
	return p
}

// ChannelNames returns n distinct channel names.
func ChannelNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("/sensor/channel_%02d", i)
	}
	return names
}
