// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scaling

import (
	"math"
)

const (
	zero = 0.0
	one  = 1.0
	two  = 2.0
)

// DefaultBoundInf is the magnitude at which a bound is considered absent.
const DefaultBoundInf = 1e30

// Bound represents the bounds of a single element of a variable or response.
// A side is absent when it is NaN, infinite or beyond the bound infinity.
type Bound struct {
	Lower, Upper float64
}

// Unbounded returns a bound with both sides absent.
func Unbounded() Bound {
	return Bound{Lower: math.Inf(-1), Upper: math.Inf(1)}
}

type bndHint int

const (
	bndNo bndHint = iota
	bndLow
	bndBoth
	bndUp
)

// normalize rewrites absent sides to NaN and classifies which sides remain.
//   - lower bounds are considered not exist when 𝒍ᵢ ≤ -inf
//   - upper bounds are considered not exist when 𝒖ᵢ ≥ inf
func (b Bound) normalize(inf float64) (Bound, bndHint) {
	if math.IsInf(b.Lower, 0) || b.Lower <= -inf {
		b.Lower = math.NaN()
	}
	if math.IsInf(b.Upper, 0) || b.Upper >= inf {
		b.Upper = math.NaN()
	}
	l, u := !math.IsNaN(b.Lower), !math.IsNaN(b.Upper)
	switch {
	case l && u:
		return b, bndBoth
	case l:
		return b, bndLow
	case u:
		return b, bndUp
	default:
		return b, bndNo
	}
}

// feasible reports whether a bound admits at least one value.
func (b Bound) feasible(inf float64) bool {
	n, hint := b.normalize(inf)
	return hint != bndBoth || n.Lower <= n.Upper
}

// broadcast expands a length-1 slice to size elements.
func broadcast(v []float64, size int) ([]float64, bool) {
	switch len(v) {
	case size:
		return v, true
	case 1:
		out := make([]float64, size)
		for i := range out {
			out[i] = v[0]
		}
		return out, true
	}
	return nil, false
}
