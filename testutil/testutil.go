package testutil

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

// Pair is one generated key/value entry.
type Pair struct {
	Key   []byte
	Value []byte
}

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

// alphabet keeps generated keys printable, which makes failing assertions
// readable.
const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Key returns a random printable key of length n.
func (r *RNG) Key(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[r.rand.Intn(len(alphabet))]
	}
	return b
}

// Value returns n random bytes, any value.
func (r *RNG) Value(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := make([]byte, n)
	r.rand.Read(b) //nolint:errcheck
	return b
}

// Handle returns a random atom handle.
func (r *RNG) Handle() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	var id uuid.UUID
	r.rand.Read(id[:]) //nolint:errcheck
	// Stamp version 4 / variant bits so the handle is a well-formed UUID.
	id[6] = (id[6] & 0x0f) | 0x40
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}

// Handles returns num distinct random handles.
func (r *RNG) Handles(num int) []uuid.UUID {
	out := make([]uuid.UUID, num)
	seen := make(map[uuid.UUID]struct{}, num)
	for i := 0; i < num; i++ {
		h := r.Handle()
		if _, dup := seen[h]; dup {
			i--
			continue
		}
		seen[h] = struct{}{}
		out[i] = h
	}
	return out
}

// Pairs returns num random entries with printable keys of keyLen bytes and
// opaque values of valLen bytes. Keys may repeat, producing duplicates.
func (r *RNG) Pairs(num, keyLen, valLen int) []Pair {
	out := make([]Pair, num)
	for i := range out {
		out[i] = Pair{Key: r.Key(keyLen), Value: r.Value(valLen)}
	}
	return out
}
