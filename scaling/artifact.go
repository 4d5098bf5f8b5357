// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scaling

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// Pair keys a Jacobian block by the response Of and the variable Wrt.
type Pair struct {
	Of, Wrt string
}

// Jacobian is an immutable set of partial-derivative blocks produced by a sensitivity analysis.
type Jacobian struct {
	blocks map[Pair]*mat.Dense
	names  map[string]struct{}
}

// NewJacobian copies the given blocks into a Jacobian artifact.
// A nil block is treated as absent.
func NewJacobian(blocks map[Pair]*mat.Dense) *Jacobian {
	j := &Jacobian{
		blocks: make(map[Pair]*mat.Dense, len(blocks)),
		names:  make(map[string]struct{}),
	}
	for p, b := range blocks {
		if b == nil || b.IsEmpty() {
			continue
		}
		j.blocks[p] = mat.DenseCopyOf(b)
		j.names[p.Of] = struct{}{}
		j.names[p.Wrt] = struct{}{}
	}
	return j
}

// Block returns the partial derivatives of response of with respect to variable wrt.
// The returned matrix must not be modified.
func (j *Jacobian) Block(of, wrt string) (mat.Matrix, bool) {
	if j == nil {
		return nil, false
	}
	b, ok := j.blocks[Pair{of, wrt}]
	if !ok {
		return nil, false
	}
	return b, true
}

// Has reports whether name appears in any block, either as response or variable.
func (j *Jacobian) Has(name string) bool {
	if j == nil {
		return false
	}
	_, ok := j.names[name]
	return ok
}

// Pairs returns the keys of all blocks ordered by response then variable.
func (j *Jacobian) Pairs() []Pair {
	if j == nil {
		return nil
	}
	pairs := slices.Collect(maps.Keys(j.blocks))
	slices.SortFunc(pairs, func(a, b Pair) int {
		return cmp.Or(cmp.Compare(a.Of, b.Of), cmp.Compare(a.Wrt, b.Wrt))
	})
	return pairs
}

// Bounds is an immutable pair of lower and upper bound mappings keyed by name.
type Bounds struct {
	lower, upper map[string][]float64
}

// NewBounds copies the given lower and upper mappings into a Bounds artifact.
// Missing names in one map leave that side unbounded.
func NewBounds(lower, upper map[string][]float64) *Bounds {
	b := &Bounds{
		lower: make(map[string][]float64, len(lower)),
		upper: make(map[string][]float64, len(upper)),
	}
	for k, v := range lower {
		b.lower[k] = slices.Clone(v)
	}
	for k, v := range upper {
		b.upper[k] = slices.Clone(v)
	}
	return b
}

// Has reports whether either mapping holds an entry for name.
func (b *Bounds) Has(name string) bool {
	if b == nil {
		return false
	}
	_, l := b.lower[name]
	_, u := b.upper[name]
	return l || u
}

// Lookup returns size elementwise bounds for name.
// Length-1 entries broadcast; any other length mismatch is a configuration error.
func (b *Bounds) Lookup(name string, size int) (bnd []Bound, ok bool, err error) {
	if !b.Has(name) {
		return nil, false, nil
	}

	lower, upper := b.lower[name], b.upper[name]
	if lower == nil {
		lower = []float64{math.Inf(-1)}
	}
	if upper == nil {
		upper = []float64{math.Inf(1)}
	}

	lo, lok := broadcast(lower, size)
	hi, uok := broadcast(upper, size)
	if !lok || !uok {
		reason := fmt.Sprintf("bound size %d/%d does not match size %d", len(lower), len(upper), size)
		return nil, false, configErr(reason, name)
	}

	bnd = make([]Bound, size)
	for i := range bnd {
		bnd[i] = Bound{Lower: lo[i], Upper: hi[i]}
	}
	return bnd, true, nil
}

// Artifacts bundles the precomputed inputs of a policy.
// Jacobian may be nil for policies that scale from bounds only.
type Artifacts struct {
	Jacobian *Jacobian
	Bounds   *Bounds
}
