// Package randx is the injectable randomness used for jitter and weighted
// choices.
package randx

import (
	"math/rand/v2"
	"time"
)

// Rand is satisfied by *rand.Rand from math/rand/v2.
type Rand interface {
	IntN(n int) int
	Float64() float64
	Int64N(n int64) int64
}

type global struct{}

func (global) IntN(n int) int       { return rand.IntN(n) }
func (global) Float64() float64     { return rand.Float64() }
func (global) Int64N(n int64) int64 { return rand.Int64N(n) }

// Default draws from the process-wide generator.
func Default() Rand { return global{} }

// Seeded returns a deterministic generator for tests.
func Seeded(seed uint64) Rand { return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }

// Between returns a uniform duration in [lo, hi].
func Between(r Rand, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(r.Int64N(int64(hi-lo)+1))
}

// Jitter returns base shifted by a uniform offset in [-spread, +spread].
func Jitter(r Rand, base, spread time.Duration) time.Duration {
	if spread <= 0 {
		return base
	}
	return base - spread + time.Duration(r.Int64N(int64(2*spread)+1))
}

// Pick returns a uniformly chosen element, or the zero value for an empty slice.
func Pick[T any](r Rand, items []T) T {
	var zero T
	if len(items) == 0 {
		return zero
	}
	return items[r.IntN(len(items))]
}

// Weighted is one option of a weighted draw.
type Weighted[T any] struct {
	Value  T
	Weight float64
}

// PickWeighted draws proportionally to weight. Non-positive weights never win.
func PickWeighted[T any](r Rand, opts []Weighted[T]) T {
	var total float64
	for _, o := range opts {
		if o.Weight > 0 {
			total += o.Weight
		}
	}
	var zero T
	if total == 0 {
		return zero
	}
	x := r.Float64() * total
	for _, o := range opts {
		if o.Weight <= 0 {
			continue
		}
		if x < o.Weight {
			return o.Value
		}
		x -= o.Weight
	}
	for i := len(opts) - 1; i >= 0; i-- {
		if opts[i].Weight > 0 {
			return opts[i].Value
		}
	}
	return zero
}
