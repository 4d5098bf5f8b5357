// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scaling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// equilibrated builds a problem whose rows and columns have known maxima:
//
//	        a₀     a₁     b₀
//	c₀  [   4      0      1   ]
//	c₁  [   0.5    200    0   ]
//	f   [   2      0.001  8   ]
//	g   [   0.4    2      0.2 ]
func equilibrated() *linearProblem {
	return newLinear().
		addVar("a", []float64{1, 2}, bounds(-10, 10, 0, 400)).
		addVar("b", []float64{3}, bounds(0, 16)).
		addResp("c", Constraint, []float64{0, 0}, bounds(0, 0, -1, 1)).
		addResp("f", Objective, []float64{0}, nil).
		addResp("g", Constraint, []float64{0}, bounds(math.Inf(-1), 5)).
		link("c", "a", 2, 2, 4, 0, 0.5, 200).
		link("c", "b", 2, 1, 1, 0).
		link("f", "a", 1, 2, 2, 0.001).
		link("f", "b", 1, 1, 8).
		link("g", "a", 1, 2, 0.4, 2).
		link("g", "b", 1, 1, 0.2)
}

func TestPJRNFactors(t *testing.T) {
	prob := equilibrated()
	rec, err := mustPolicy(t, PJRN).Compute(prob, prob.artifacts())
	require.NoError(t, err)
	assert.Equal(t, PJRN, rec.Policy())

	a, _ := rec.Variable("a")
	b, _ := rec.Variable("b")
	assert.InDeltaSlice(t, []float64{0.25, 0.005}, a.Factor, 1e-15)
	assert.InDeltaSlice(t, []float64{0.125}, b.Factor, 1e-15)
	// references stay at the bound midpoints
	assert.Equal(t, []float64{0, 200}, a.Ref)
	assert.Equal(t, []float64{8}, b.Ref)

	c, _ := rec.Response("c")
	f, _ := rec.Response("f")
	g, _ := rec.Response("g")
	assert.InDeltaSlice(t, []float64{1, 1}, c.Factor, 1e-15)
	assert.InDeltaSlice(t, []float64{1}, f.Factor, 1e-15)
	assert.InDeltaSlice(t, []float64{0.1}, g.Factor, 1e-15)
	assert.Equal(t, []float64{0, 0}, c.Ref)
	assert.Equal(t, []float64{0}, g.Ref)
}

func TestPJRNScaledJacobianUnitMagnitude(t *testing.T) {
	prob := equilibrated()
	rec, err := mustPolicy(t, PJRN).Compute(prob, prob.artifacts())
	require.NoError(t, err)
	ad, err := NewAdapter(prob, rec)
	require.NoError(t, err)

	const tol = 1e-12
	rowMax := map[string][]float64{}
	colMax := map[string][]float64{}
	for _, v := range prob.Variables() {
		colMax[v.Name] = make([]float64, v.Size)
	}
	for _, r := range prob.Responses() {
		rowMax[r.Name] = make([]float64, r.Size)
		for _, v := range prob.Variables() {
			j, err := ad.Jacobian(r.Name, v.Name)
			require.NoError(t, err)
			rows, cols := j.Dims()
			for i := 0; i < rows; i++ {
				for k := 0; k < cols; k++ {
					x := math.Abs(j.At(i, k))
					assert.LessOrEqual(t, x, 1+tol, "d%s[%d]/d%s[%d]", r.Name, i, v.Name, k)
					rowMax[r.Name][i] = math.Max(rowMax[r.Name][i], x)
					colMax[v.Name][k] = math.Max(colMax[v.Name][k], x)
				}
			}
		}
	}
	for name, m := range rowMax {
		assert.InDeltaSlice(t, ones(len(m)), m, tol, "row %s", name)
	}
	for name, m := range colMax {
		assert.InDeltaSlice(t, ones(len(m)), m, tol, "column %s", name)
	}
}

func TestPJRNFallbackMatchesIso(t *testing.T) {
	prob := equilibrated().
		addVar("z", []float64{7, -2}, bounds(2, 6, math.Inf(-1), inf)).
		addResp("h", Constraint, []float64{4}, bounds(1, 3))

	iso, err := mustPolicy(t, Iso).Compute(prob, prob.artifacts())
	require.NoError(t, err)
	pjrn, err := mustPolicy(t, PJRN).Compute(prob, prob.artifacts())
	require.NoError(t, err)

	want, _ := iso.Variable("z")
	got, _ := pjrn.Variable("z")
	assert.Equal(t, want, got)
	assert.Equal(t, []float64{2, 2}, got.Factor)
	assert.Equal(t, []float64{4, 0}, got.Ref)

	want, _ = iso.Response("h")
	got, _ = pjrn.Response("h")
	assert.Equal(t, want, got)
}

func TestPJRNIgnoresNoise(t *testing.T) {
	prob := equilibrated().
		addVar("n", []float64{1}, bounds(0, 10)).
		link("c", "n", 2, 1, 1e-14, 0)

	rec, err := mustPolicy(t, PJRN).Compute(prob, prob.artifacts())
	require.NoError(t, err)

	n, _ := rec.Variable("n")
	assert.Equal(t, []float64{5}, n.Factor)
	assert.Equal(t, []float64{5}, n.Ref)

	// raising the threshold floor drops the 0.001 entry too, leaving a₁ unchanged
	p, err := New(PJRN, Options{RelThreshold: 1e-3})
	require.NoError(t, err)
	rec, err = p.Compute(prob, prob.artifacts())
	require.NoError(t, err)
	a, _ := rec.Variable("a")
	assert.InDelta(t, 0.005, a.Factor[1], 1e-15)
}

func TestPJRNZeroJacobianFallsBack(t *testing.T) {
	prob := newLinear().
		addVar("x", []float64{3}, bounds(0, 4)).
		addResp("c", Constraint, []float64{-9}, nil).
		link("c", "x", 1, 1, 0)

	rec, err := mustPolicy(t, PJRN).Compute(prob, prob.artifacts())
	require.NoError(t, err)
	x, _ := rec.Variable("x")
	c, _ := rec.Response("c")
	assert.Equal(t, []float64{2}, x.Factor)
	assert.Equal(t, []float64{9}, c.Factor)
}

func TestPJRNVariableOnlyInJacobian(t *testing.T) {
	prob := newLinear().
		addVar("x", []float64{3}, nil).
		addResp("c", Constraint, []float64{0}, nil).
		link("c", "x", 1, 1, 40)

	art := Artifacts{Jacobian: NewJacobian(prob.jac)}
	rec, err := mustPolicy(t, PJRN).Compute(prob, art)
	require.NoError(t, err)
	x, _ := rec.Variable("x")
	assert.Equal(t, []float64{0.025}, x.Factor)
	assert.Equal(t, []float64{0}, x.Ref)

	_, err = mustPolicy(t, Iso).Compute(prob, art)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestPJRNBlockShapeMismatch(t *testing.T) {
	prob := equilibrated()
	art := prob.artifacts()
	bad := newLinear().link("c", "a", 1, 2, 1, 1)
	art.Jacobian = NewJacobian(bad.jac)

	_, err := mustPolicy(t, PJRN).Compute(prob, art)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestPJRNNonFiniteJacobian(t *testing.T) {
	prob := newLinear().
		addVar("x", []float64{3}, bounds(0, 4)).
		addResp("c", Constraint, []float64{0}, nil).
		link("c", "x", 1, 1, math.NaN())

	_, err := mustPolicy(t, PJRN).Compute(prob, prob.artifacts())
	var ce *ComputationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "dc/dx", ce.Name)
}

func TestScenarioSingleConstraint(t *testing.T) {
	prob := newLinear().
		addVar("x", []float64{0}, bounds(0, 100)).
		addResp("c", Constraint, []float64{7}, nil).
		link("c", "x", 1, 1, 50)

	iso, err := mustPolicy(t, Iso).Compute(prob, prob.artifacts())
	require.NoError(t, err)
	x, _ := iso.Variable("x")
	c, _ := iso.Response("c")
	assert.Equal(t, []float64{50}, x.Factor)
	assert.Equal(t, []float64{50}, x.Ref)
	assert.Equal(t, []float64{7}, c.Factor)
	assert.Equal(t, []float64{0}, c.Ref)

	pjrn, err := mustPolicy(t, PJRN).Compute(prob, prob.artifacts())
	require.NoError(t, err)
	x, _ = pjrn.Variable("x")
	c, _ = pjrn.Response("c")
	assert.InDeltaSlice(t, []float64{0.02}, x.Factor, 1e-17)
	assert.Equal(t, []float64{50}, x.Ref)
	assert.InDeltaSlice(t, []float64{1}, c.Factor, 1e-15)
	assert.Equal(t, []float64{0}, c.Ref)
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 1
	}
	return v
}
