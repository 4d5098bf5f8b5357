// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scaling

import (
	"fmt"
	"math"
	"slices"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// linearProblem evaluates every response as 𝐜 = 𝐜₀ + ∑ 𝐉·𝐱.
type linearProblem struct {
	mu    sync.Mutex
	vars  []Variable
	resps []Response
	x     map[string][]float64
	c0    map[string][]float64
	jac   map[Pair]*mat.Dense
	reads int
}

func newLinear() *linearProblem {
	return &linearProblem{
		x:   map[string][]float64{},
		c0:  map[string][]float64{},
		jac: map[Pair]*mat.Dense{},
	}
}

func (p *linearProblem) addVar(name string, x []float64, bnd []Bound) *linearProblem {
	p.vars = append(p.vars, Variable{Name: name, Size: len(x), Bounds: bnd})
	p.x[name] = slices.Clone(x)
	return p
}

func (p *linearProblem) addResp(name string, kind Kind, c0 []float64, bnd []Bound) *linearProblem {
	p.resps = append(p.resps, Response{Name: name, Size: len(c0), Kind: kind, Bounds: bnd})
	p.c0[name] = slices.Clone(c0)
	return p
}

func (p *linearProblem) link(of, wrt string, rows, cols int, data ...float64) *linearProblem {
	p.jac[Pair{of, wrt}] = mat.NewDense(rows, cols, data)
	return p
}

func (p *linearProblem) Variables() []Variable { return p.vars }

func (p *linearProblem) Responses() []Response { return p.resps }

func (p *linearProblem) Value(name string) ([]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads++
	if x, ok := p.x[name]; ok {
		return slices.Clone(x), nil
	}
	c0, ok := p.c0[name]
	if !ok {
		return nil, fmt.Errorf("unknown %q", name)
	}
	c := mat.NewVecDense(len(c0), slices.Clone(c0))
	for k, j := range p.jac {
		if k.Of != name {
			continue
		}
		var t mat.VecDense
		t.MulVec(j, mat.NewVecDense(len(p.x[k.Wrt]), p.x[k.Wrt]))
		c.AddVec(c, &t)
	}
	return c.RawVector().Data, nil
}

func (p *linearProblem) SetValue(name string, v []float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	x, ok := p.x[name]
	switch {
	case !ok:
		return fmt.Errorf("unknown variable %q", name)
	case len(x) != len(v):
		return fmt.Errorf("size mismatch for %q", name)
	}
	p.x[name] = slices.Clone(v)
	return nil
}

func (p *linearProblem) Jacobian(of, wrt string) (*mat.Dense, error) {
	if j, ok := p.jac[Pair{of, wrt}]; ok {
		return mat.DenseCopyOf(j), nil
	}
	size := func(name string) int {
		if x, ok := p.x[name]; ok {
			return len(x)
		}
		return len(p.c0[name])
	}
	return mat.NewDense(size(of), size(wrt), nil), nil
}

func (p *linearProblem) readCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reads
}

// artifacts dumps the Jacobian and the declared variable bounds of the problem.
func (p *linearProblem) artifacts() Artifacts {
	lower, upper := map[string][]float64{}, map[string][]float64{}
	for _, v := range p.vars {
		lo, hi := make([]float64, v.Size), make([]float64, v.Size)
		for i := range lo {
			b := Unbounded()
			if v.Bounds != nil {
				b = v.Bounds[i]
			}
			lo[i], hi[i] = b.Lower, b.Upper
		}
		lower[v.Name], upper[v.Name] = lo, hi
	}
	return Artifacts{
		Jacobian: NewJacobian(p.jac),
		Bounds:   NewBounds(lower, upper),
	}
}

func bounds(pairs ...float64) []Bound {
	b := make([]Bound, len(pairs)/2)
	for i := range b {
		b[i] = Bound{pairs[2*i], pairs[2*i+1]}
	}
	return b
}

var inf = math.Inf(1)
