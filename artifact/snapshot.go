// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package artifact

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/hweyandtnasa/autoscaling/scaling"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
)

// Entry is one variable or response of a snapshot document.
// Size defaults to the length of Value; a length one Value, Lower or Upper broadcasts.
type Entry struct {
	Name  string    `yaml:"name"`
	Kind  string    `yaml:"kind,omitempty"`
	Size  int       `yaml:"size,omitempty"`
	Value []float64 `yaml:"value,flow"`
	Lower []float64 `yaml:"lower,flow,omitempty"`
	Upper []float64 `yaml:"upper,flow,omitempty"`
}

// SnapshotDoc is the on-disk form of a linearised problem.
type SnapshotDoc struct {
	Variables []Entry `yaml:"variables"`
	Responses []Entry `yaml:"responses"`
	Jacobian  []Block `yaml:"jacobian,omitempty"`
}

// Snapshot is a problem linearised at a recorded point.
//
// Responses follow 𝐜(𝐱) = 𝐜₀ + ∑ 𝐉·(𝐱 - 𝐱₀) using the recorded blocks; a missing block
// contributes nothing. Snapshot is safe for concurrent use.
type Snapshot struct {
	mu    sync.RWMutex
	vars  []scaling.Variable
	resps []scaling.Response
	x0, x map[string][]float64
	c0    map[string][]float64
	jac   *scaling.Jacobian
}

func (e Entry) expand() (size int, value []float64, bnd []scaling.Bound, err error) {
	size = e.Size
	if size == 0 {
		size = len(e.Value)
	}
	switch {
	case e.Name == "":
		return 0, nil, nil, errors.New("entry name is required")
	case size <= 0:
		return 0, nil, nil, fmt.Errorf("%s has no value", e.Name)
	}

	fill := func(v []float64, def float64) ([]float64, bool) {
		switch len(v) {
		case 0:
			return slices.Repeat([]float64{def}, size), true
		case 1:
			return slices.Repeat(v, size), true
		case size:
			return slices.Clone(v), true
		}
		return nil, false
	}

	value, ok := fill(e.Value, math.NaN())
	if !ok || len(e.Value) == 0 {
		return 0, nil, nil, fmt.Errorf("%s has %d values for size %d", e.Name, len(e.Value), size)
	}
	if e.Lower == nil && e.Upper == nil {
		return size, value, nil, nil
	}
	lo, lok := fill(e.Lower, math.Inf(-1))
	hi, uok := fill(e.Upper, math.Inf(1))
	if !lok || !uok {
		return 0, nil, nil, fmt.Errorf("%s has %d/%d bounds for size %d", e.Name, len(e.Lower), len(e.Upper), size)
	}
	bnd = make([]scaling.Bound, size)
	for i := range bnd {
		bnd[i] = scaling.Bound{Lower: lo[i], Upper: hi[i]}
	}
	return size, value, bnd, nil
}

func parseKind(s string) (scaling.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "constraint":
		return scaling.Constraint, nil
	case "objective":
		return scaling.Objective, nil
	}
	return 0, fmt.Errorf("unknown response kind %q", s)
}

// NewSnapshot validates doc and builds the linearised problem.
func NewSnapshot(doc SnapshotDoc) (*Snapshot, error) {
	s := &Snapshot{
		x0: map[string][]float64{},
		x:  map[string][]float64{},
		c0: map[string][]float64{},
	}

	var errs error
	seen := map[string]bool{}
	for _, e := range doc.Variables {
		size, value, bnd, err := e.expand()
		switch {
		case err != nil:
			errs = multierr.Append(errs, fmt.Errorf("variable: %w", err))
			continue
		case seen[e.Name]:
			errs = multierr.Append(errs, fmt.Errorf("duplicate name %s", e.Name))
			continue
		case e.Kind != "":
			errs = multierr.Append(errs, fmt.Errorf("variable %s cannot have a kind", e.Name))
			continue
		}
		seen[e.Name] = true
		s.vars = append(s.vars, scaling.Variable{Name: e.Name, Size: size, Bounds: bnd})
		s.x0[e.Name] = value
		s.x[e.Name] = slices.Clone(value)
	}
	for _, e := range doc.Responses {
		size, value, bnd, err := e.expand()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("response: %w", err))
			continue
		}
		kind, err := parseKind(e.Kind)
		switch {
		case err != nil:
			errs = multierr.Append(errs, fmt.Errorf("response %s: %w", e.Name, err))
			continue
		case seen[e.Name]:
			errs = multierr.Append(errs, fmt.Errorf("duplicate name %s", e.Name))
			continue
		}
		seen[e.Name] = true
		s.resps = append(s.resps, scaling.Response{Name: e.Name, Size: size, Kind: kind, Bounds: bnd})
		s.c0[e.Name] = value
	}
	if errs != nil {
		return nil, errs
	}

	jac, err := toJacobian(doc.Jacobian)
	if err != nil {
		return nil, err
	}
	for _, p := range jac.Pairs() {
		c0, cok := s.c0[p.Of]
		x0, xok := s.x0[p.Wrt]
		if !cok || !xok {
			errs = multierr.Append(errs, fmt.Errorf("block d%s/d%s does not name a response and a variable", p.Of, p.Wrt))
			continue
		}
		b, _ := jac.Block(p.Of, p.Wrt)
		if r, c := b.Dims(); r != len(c0) || c != len(x0) {
			errs = multierr.Append(errs, fmt.Errorf("block d%s/d%s is %d×%d, want %d×%d", p.Of, p.Wrt, r, c, len(c0), len(x0)))
		}
	}
	if errs != nil {
		return nil, errs
	}
	s.jac = jac
	return s, nil
}

// DecodeSnapshot parses a snapshot document.
func DecodeSnapshot(r io.Reader) (*Snapshot, error) {
	var doc SnapshotDoc
	if err := decode(r, &doc); err != nil {
		return nil, err
	}
	return NewSnapshot(doc)
}

// ReadSnapshot loads a snapshot file.
func ReadSnapshot(path string) (*Snapshot, error) {
	var s *Snapshot
	err := readFile(path, func(r io.Reader) (err error) {
		s, err = DecodeSnapshot(r)
		return
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", path, err)
	}
	return s, nil
}

// Variables returns a copy of the variable descriptors.
func (s *Snapshot) Variables() []scaling.Variable {
	vars := slices.Clone(s.vars)
	for i := range vars {
		vars[i].Bounds = slices.Clone(vars[i].Bounds)
	}
	return vars
}

// Responses returns a copy of the response descriptors.
func (s *Snapshot) Responses() []scaling.Response {
	resps := slices.Clone(s.resps)
	for i := range resps {
		resps[i].Bounds = slices.Clone(resps[i].Bounds)
	}
	return resps
}

// Value returns the current value of a variable or the linearised value of a response.
func (s *Snapshot) Value(name string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if x, ok := s.x[name]; ok {
		return slices.Clone(x), nil
	}
	c0, ok := s.c0[name]
	if !ok {
		return nil, fmt.Errorf("unknown name %s", name)
	}

	c := mat.NewVecDense(len(c0), slices.Clone(c0))
	for _, p := range s.jac.Pairs() {
		if p.Of != name {
			continue
		}
		b, _ := s.jac.Block(p.Of, p.Wrt)
		var dx, dc mat.VecDense
		dx.SubVec(mat.NewVecDense(len(s.x[p.Wrt]), s.x[p.Wrt]), mat.NewVecDense(len(s.x0[p.Wrt]), s.x0[p.Wrt]))
		dc.MulVec(b, &dx)
		c.AddVec(c, &dc)
	}
	return c.RawVector().Data, nil
}

// SetValue moves variable name to v.
func (s *Snapshot) SetValue(name string, v []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, ok := s.x[name]
	switch {
	case !ok:
		return fmt.Errorf("unknown variable %s", name)
	case len(v) != len(x):
		return fmt.Errorf("variable %s has size %d, got %d", name, len(x), len(v))
	}
	copy(x, v)
	return nil
}

// Jacobian returns the recorded block, or zeros when none was recorded.
func (s *Snapshot) Jacobian(of, wrt string) (*mat.Dense, error) {
	c0, cok := s.c0[of]
	x0, xok := s.x0[wrt]
	if !cok || !xok {
		return nil, fmt.Errorf("no block d%s/d%s", of, wrt)
	}
	if b, ok := s.jac.Block(of, wrt); ok {
		return mat.DenseCopyOf(b), nil
	}
	return mat.NewDense(len(c0), len(x0), nil), nil
}

// Linearization returns the recorded blocks as a Jacobian artifact.
func (s *Snapshot) Linearization() *scaling.Jacobian {
	return s.jac
}

// Declared collects the declared bounds of every entity into a bounds artifact.
// Every variable has an entry, unbounded ones as [-Inf, +Inf]. Responses without
// bounds are left out.
func (s *Snapshot) Declared() *scaling.Bounds {
	t := BoundTable{Lower: map[string][]float64{}, Upper: map[string][]float64{}}
	add := func(name string, bnd []scaling.Bound) {
		if bnd == nil {
			t.Lower[name], t.Upper[name] = []float64{math.Inf(-1)}, []float64{math.Inf(1)}
			return
		}
		lo, hi := make([]float64, len(bnd)), make([]float64, len(bnd))
		for i, b := range bnd {
			lo[i], hi[i] = b.Lower, b.Upper
		}
		t.Lower[name], t.Upper[name] = lo, hi
	}
	for _, v := range s.vars {
		add(v.Name, v.Bounds)
	}
	for _, r := range s.resps {
		if r.Bounds != nil {
			add(r.Name, r.Bounds)
		}
	}
	return scaling.NewBounds(t.Lower, t.Upper)
}
