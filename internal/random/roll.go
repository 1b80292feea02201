package random

import "math/rand"

// IntRange returns a uniform integer in [lo, hi]. Swapped bounds are
// normalized.
func IntRange(r *rand.Rand, lo, hi int) int {
	if hi < lo {
		lo, hi = hi, lo
	}
	if lo == hi {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}

// FloatRange returns a uniform float in [lo, hi).
func FloatRange(r *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + r.Float64()*(hi-lo)
}

// Chance reports whether a roll succeeds with probability p.
func Chance(r *rand.Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return r.Float64() < p
}

// Weighted performs a cumulative-weight draw. Items with non-positive weight
// are never selected. The boolean is false when no item has positive weight.
func Weighted[T any](r *rand.Rand, items []T, weight func(T) float64) (T, bool) {
	var zero T
	total := 0.0
	for _, item := range items {
		if w := weight(item); w > 0 {
			total += w
		}
	}
	if total <= 0 {
		return zero, false
	}
	pick := r.Float64() * total
	acc := 0.0
	last := -1
	for i, item := range items {
		w := weight(item)
		if w <= 0 {
			continue
		}
		acc += w
		last = i
		if pick < acc {
			return item, true
		}
	}
	return items[last], true
}

// Shuffled returns a shuffled copy of items.
func Shuffled[T any](r *rand.Rand, items []T) []T {
	out := append([]T(nil), items...)
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
