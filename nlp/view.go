// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nlp flattens a scaled problem into the vector form consumed by gradient based solvers.
//
// View is the contract handed to an external solver: N, X0 and Bounds describe the
// scaled design space, Object, EqCons and NeqCons evaluate the scaled objective and
// constraints with their gradients, and Result maps a solution back to physical units.
// Solvers run outside this module; autoscale.Run produces the adapter a View wraps.
package nlp

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/hweyandtnasa/autoscaling/scaling"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Evaluation evaluate the function and derivative for objective and constraints.
//   - 𝒇(𝐱) : ℝⁿ → ℝ
//   - 𝒇′(𝐱) : ℝⁿ → ℝⁿ stored into g unless g is nil
//
// A failed evaluation returns NaN and records the failure in View.Err.
type Evaluation func(x []float64, g []float64) (f float64)

type segment struct {
	name      string
	off, size int
}

// View is the flat scaled problem:
//
//	min  𝒇̃(𝐱̃)
//	s.t. 𝒄̃ᵢ(𝐱̃) = 0   (EqCons)
//	     𝒄̃ⱼ(𝐱̃) ≥ 0   (NeqCons)
//	     𝒍̃ ≤ 𝐱̃ ≤ 𝒖̃
//
// A constraint element with equal lower and upper bound becomes c̃ - l̃ = 0,
// otherwise each present side becomes c̃ - l̃ ≥ 0 or ũ - c̃ ≥ 0.
// Evaluations share one cache keyed by the last point, so a View serializes its callers.
type View struct {
	N       int             // The problem dimension
	X0      []float64       // Scaled starting point
	Bounds  []scaling.Bound // Scaled bounds, infinite where absent
	Object  Evaluation      // Objective function 𝒇̃(𝐱̃), nil without an objective
	EqCons  []Evaluation    // Equality constraints 𝒄̃(𝐱̃) = 0
	NeqCons []Evaluation    // Inequality constraints 𝒄̃(𝐱̃) ≥ 0

	ad   *scaling.Adapter
	vars []segment

	mu     sync.Mutex
	point  []float64
	values map[string][]float64
	jacs   map[scaling.Pair]*mat.Dense
	err    error
}

// New flattens ad. The current point of the wrapped problem becomes X0.
func New(ad *scaling.Adapter) (v *View, err error) {
	if ad == nil {
		return nil, errors.New("adapter is required")
	}
	v = &View{ad: ad}

	for _, x := range ad.Variables() {
		x0, err := ad.Get(x.Name)
		if err != nil {
			return nil, err
		}
		bnd, err := ad.Bounds(x.Name)
		if err != nil {
			return nil, err
		}
		v.vars = append(v.vars, segment{name: x.Name, off: v.N, size: x.Size})
		v.X0 = append(v.X0, x0...)
		v.Bounds = append(v.Bounds, bnd...)
		v.N += x.Size
	}
	if v.N == 0 {
		return nil, errors.New("problem has no variables")
	}
	v.point = slices.Clone(v.X0)

	for _, r := range ad.Responses() {
		if r.Kind == scaling.Objective {
			switch {
			case v.Object != nil:
				return nil, fmt.Errorf("objective %s: only one objective is supported", r.Name)
			case r.Size != 1:
				return nil, fmt.Errorf("objective %s has size %d", r.Name, r.Size)
			}
			v.Object = v.element(r.Name, 0, 0, 1)
			continue
		}

		bnd, err := ad.Bounds(r.Name)
		if err != nil {
			return nil, err
		}
		for i, b := range bnd {
			lo, hi := !math.IsInf(b.Lower, 0), !math.IsInf(b.Upper, 0)
			switch {
			case lo && hi && b.Lower == b.Upper:
				v.EqCons = append(v.EqCons, v.element(r.Name, i, b.Lower, 1))
			default:
				if lo {
					v.NeqCons = append(v.NeqCons, v.element(r.Name, i, b.Lower, 1))
				}
				if hi {
					v.NeqCons = append(v.NeqCons, v.element(r.Name, i, b.Upper, -1))
				}
			}
		}
	}
	return v, nil
}

// element evaluates sign × (c̃ᵢ - shift).
func (v *View) element(name string, i int, shift, sign float64) Evaluation {
	return func(x []float64, g []float64) float64 {
		v.mu.Lock()
		defer v.mu.Unlock()

		val, err := v.value(x, name)
		if err == nil && g != nil {
			err = v.gradient(name, i, g)
			floats.Scale(sign, g)
		}
		if err != nil {
			if v.err == nil {
				v.err = err
			}
			return math.NaN()
		}
		return sign * (val[i] - shift)
	}
}

// Err returns the first evaluation failure.
func (v *View) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// move writes x to the problem unless it is already there.
func (v *View) move(x []float64) error {
	if len(x) != v.N {
		return fmt.Errorf("point has %d values for dimension %d", len(x), v.N)
	}
	if v.values != nil && floats.Equal(x, v.point) {
		return nil
	}
	for _, s := range v.vars {
		seg := x[s.off : s.off+s.size]
		if floats.Equal(seg, v.point[s.off:s.off+s.size]) && v.values != nil {
			continue
		}
		if err := v.ad.Set(s.name, seg); err != nil {
			v.values = nil
			return err
		}
	}
	copy(v.point, x)
	v.values = map[string][]float64{}
	v.jacs = map[scaling.Pair]*mat.Dense{}
	return nil
}

func (v *View) value(x []float64, name string) ([]float64, error) {
	if err := v.move(x); err != nil {
		return nil, err
	}
	if c, ok := v.values[name]; ok {
		return c, nil
	}
	c, err := v.ad.Get(name)
	if err != nil {
		return nil, err
	}
	v.values[name] = c
	return c, nil
}

func (v *View) gradient(name string, i int, g []float64) error {
	if len(g) != v.N {
		return fmt.Errorf("gradient has %d values for dimension %d", len(g), v.N)
	}
	for _, s := range v.vars {
		p := scaling.Pair{Of: name, Wrt: s.name}
		jac, ok := v.jacs[p]
		if !ok {
			var err error
			if jac, err = v.ad.Jacobian(name, s.name); err != nil {
				return err
			}
			v.jacs[p] = jac
		}
		mat.Row(g[s.off:s.off+s.size], i, jac)
	}
	return nil
}

// Result converts a scaled solution into physical values keyed by variable name.
func (v *View) Result(x []float64) (map[string][]float64, error) {
	if len(x) != v.N {
		return nil, fmt.Errorf("point has %d values for dimension %d", len(x), v.N)
	}
	out := make(map[string][]float64, len(v.vars))
	for _, s := range v.vars {
		phys, err := v.ad.Physical(s.name, x[s.off:s.off+s.size])
		if err != nil {
			return nil, err
		}
		out[s.name] = phys
	}
	return out, nil
}
