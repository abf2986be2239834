// Package sample provides the random sampling primitives behind all synthetic
// data generation.
//
// A Sampler wraps a single *rand.Rand so every probabilistic decision in the
// simulation flows through one seedable source. Tests construct a Sampler with
// a fixed seed and get reproducible event streams; production code seeds from
// the wall clock.
//
// Samplers are NOT safe for concurrent use. The engine owns its Sampler and
// serializes access behind its state mutex.
package sample

import (
	"math/rand"
	"time"
)

// Sampler is a seedable source of random draws.
type Sampler struct {
	rng *rand.Rand
}

// New returns a Sampler seeded from the current time.
func New() *Sampler {
	return NewSeeded(time.Now().UnixNano())
}

// NewSeeded returns a deterministic Sampler for the given seed.
func NewSeeded(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// Between returns a uniform integer in [a, b], inclusive on both ends.
// Panics if b < a (ranges are always valid by construction at call sites).
func (s *Sampler) Between(a, b int) int {
	return s.rng.Intn(b-a+1) + a
}

// Float returns a uniform float64 in [a, b).
func (s *Sampler) Float(a, b float64) float64 {
	return a + s.rng.Float64()*(b-a)
}

// Chance returns true with probability p.
func (s *Sampler) Chance(p float64) bool {
	return s.rng.Float64() < p
}

// Duration returns a uniform duration in [min, max].
func (s *Sampler) Duration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(s.rng.Int63n(int64(max-min)+1))
}

// From returns a uniformly chosen element of vals.
// Panics on an empty slice; choice sets are fixed configuration and never empty.
func From[T any](s *Sampler, vals []T) T {
	return vals[s.rng.Intn(len(vals))]
}
