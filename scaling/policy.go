// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scaling

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/multierr"
)

// Strategy selects how a policy derives scale factors.
type Strategy int

const (
	// Iso scales every entity from its declared bounds so the feasible range maps to [-1, 1].
	Iso Strategy = iota
	// PJRN equilibrates the Jacobian: variable factors normalize the columns and
	// response factors normalize the rows of the projected Jacobian.
	PJRN
)

func (s Strategy) String() string {
	switch s {
	case Iso:
		return "iso"
	case PJRN:
		return "pjrn"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy parses "iso" or "pjrn", case insensitive.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "iso", "isoscaler", "bound-range":
		return Iso, nil
	case "pjrn", "pjrnscaler", "jacobian":
		return PJRN, nil
	}
	return 0, fmt.Errorf("unknown scaling strategy %q", s)
}

// Default tolerances selected by zero Options fields.
const (
	DefaultEpsilon      = 1e-6
	DefaultRelThreshold = 1e-12
)

// Options tunes a policy. Zero values select the defaults.
type Options struct {
	// Floor ε applied to every magnitude before it becomes a factor (default 1e-6).
	Epsilon float64
	// Entries with |∂r/∂v| ≤ RelThreshold × max|∂r/∂v| are ignored as numerical noise (default 1e-12).
	RelThreshold float64
	// Bounds with magnitude ≥ BoundInf are considered absent (default 1e30).
	BoundInf float64
}

func (o Options) withDefaults() (Options, error) {
	var err error
	switch {
	case math.IsNaN(o.Epsilon) || o.Epsilon < zero:
		err = errors.New("epsilon must not less than 0")
	case math.IsNaN(o.RelThreshold) || o.RelThreshold < zero || o.RelThreshold >= one:
		err = errors.New("relative threshold must within [0, 1)")
	case math.IsNaN(o.BoundInf) || o.BoundInf < zero:
		err = errors.New("bound infinity must not less than 0")
	}
	if err != nil {
		return o, err
	}
	if o.Epsilon == zero {
		o.Epsilon = DefaultEpsilon
	}
	if o.RelThreshold == zero {
		o.RelThreshold = DefaultRelThreshold
	}
	if o.BoundInf == zero {
		o.BoundInf = DefaultBoundInf
	}
	return o, nil
}

// Policy computes the scale record of a problem from its artifacts.
// A record is computed once per problem and never updated afterwards.
type Policy interface {
	Strategy() Strategy
	Compute(p Problem, a Artifacts) (*Record, error)
}

// New creates the policy selected by s.
func New(s Strategy, opt Options) (Policy, error) {
	opt, err := opt.withDefaults()
	if err != nil {
		return nil, err
	}
	switch s {
	case Iso:
		return &isoPolicy{opt: opt}, nil
	case PJRN:
		return &pjrnPolicy{opt: opt}, nil
	}
	return nil, fmt.Errorf("unknown scaling strategy %v", s)
}

// entity is a validated variable or response together with its normalized bounds.
type entity struct {
	name   string
	size   int
	kind   Kind
	bounds []Bound
	hints  []bndHint
}

// layout is the validated view of a problem against its artifacts.
type layout struct {
	vars    []entity
	resps   []entity
	varIdx  map[string]int
	respIdx map[string]int
	prob    Problem
}

// prepare validates every entity of p before any scale is computed.
// Problems are aggregated so all missing names are reported at once.
func (o Options) prepare(p Problem, a Artifacts, s Strategy) (*layout, error) {
	if p == nil {
		return nil, errors.New("problem is required")
	}

	vars, resps := p.Variables(), p.Responses()
	lay := &layout{
		vars:    make([]entity, 0, len(vars)),
		resps:   make([]entity, 0, len(resps)),
		varIdx:  make(map[string]int, len(vars)),
		respIdx: make(map[string]int, len(resps)),
		prob:    p,
	}

	var (
		errs    error
		missing []string
		seen    = make(map[string]bool, len(vars)+len(resps))
	)

	check := func(name string, size int) bool {
		switch {
		case name == "":
			errs = multierr.Append(errs, configErr("empty name"))
		case seen[name]:
			errs = multierr.Append(errs, configErr("duplicate name", name))
		case size <= 0:
			errs = multierr.Append(errs, configErr(fmt.Sprintf("size %d must greater than 0", size), name))
		default:
			seen[name] = true
			return true
		}
		return false
	}

	for _, v := range vars {
		if !check(v.Name, v.Size) {
			continue
		}
		bnd, ok, err := a.Bounds.Lookup(v.Name, v.Size)
		switch {
		case err != nil:
			errs = multierr.Append(errs, err)
			continue
		case !ok && (s == Iso || !a.Jacobian.Has(v.Name)):
			missing = append(missing, v.Name)
			continue
		}
		e, err := o.newEntity(v.Name, v.Size, Constraint, bnd)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		lay.varIdx[e.name] = len(lay.vars)
		lay.vars = append(lay.vars, e)
	}

	for _, r := range resps {
		if !check(r.Name, r.Size) {
			continue
		}
		bnd := r.Bounds
		if r.Kind == Objective {
			bnd = nil
		} else if art, ok, err := a.Bounds.Lookup(r.Name, r.Size); err != nil {
			errs = multierr.Append(errs, err)
			continue
		} else if ok {
			bnd = art
		}
		if bnd != nil && len(bnd) != r.Size {
			errs = multierr.Append(errs, configErr(fmt.Sprintf("declared bound size %d does not match size %d", len(bnd), r.Size), r.Name))
			continue
		}
		e, err := o.newEntity(r.Name, r.Size, r.Kind, bnd)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		lay.respIdx[e.name] = len(lay.resps)
		lay.resps = append(lay.resps, e)
	}

	if len(missing) > 0 {
		errs = multierr.Append(configErr("no artifact entry", missing...), errs)
	}
	if s == PJRN {
		errs = multierr.Append(errs, lay.checkBlocks(a.Jacobian))
	}
	if errs != nil {
		return nil, errs
	}
	return lay, nil
}

func (o Options) newEntity(name string, size int, kind Kind, bnd []Bound) (entity, error) {
	e := entity{
		name:   name,
		size:   size,
		kind:   kind,
		bounds: make([]Bound, size),
		hints:  make([]bndHint, size),
	}
	for i := range e.bounds {
		b := Unbounded()
		if bnd != nil {
			b = bnd[i]
		}
		if !b.feasible(o.BoundInf) {
			return e, configErr(fmt.Sprintf("bound range at %d has no feasible solution", i), name)
		}
		e.bounds[i], e.hints[i] = b.normalize(o.BoundInf)
	}
	return e, nil
}

// checkBlocks verifies the shape of every block linking a response to a variable of the problem.
func (lay *layout) checkBlocks(jac *Jacobian) (errs error) {
	for _, p := range jac.Pairs() {
		of, wrt, ok := lay.pair(p)
		if !ok {
			continue
		}
		b, _ := jac.Block(p.Of, p.Wrt)
		if r, c := b.Dims(); r != of.size || c != wrt.size {
			reason := fmt.Sprintf("jacobian block %d×%d does not match %d×%d", r, c, of.size, wrt.size)
			errs = multierr.Append(errs, configErr(reason, p.Of, p.Wrt))
		}
	}
	return
}

// pair resolves a block key to the response and variable it links.
// Blocks naming entities outside the problem are ignored.
func (lay *layout) pair(p Pair) (of, wrt *entity, ok bool) {
	i, iok := lay.respIdx[p.Of]
	j, jok := lay.varIdx[p.Wrt]
	if !iok || !jok {
		return nil, nil, false
	}
	return &lay.resps[i], &lay.vars[j], true
}
