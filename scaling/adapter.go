// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scaling

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
)

// Adapter presents a scaled view of a problem.
//
// Every value, bound and Jacobian crossing the adapter is transformed by the record:
//   - 𝐱̃ = (𝐱 - 𝐫ₓ) / 𝛔ₓ for variables and responses
//   - ∂𝐜̃/∂𝐱̃ = 𝛔ₓ / 𝛔𝒸 · ∂𝐜/∂𝐱 (the reference has zero derivative)
//
// The adapter holds no state beyond the record and never mutates the problem except
// through Set. It adds no locking: concurrent use is safe as long as the wrapped
// problem serializes its own reads and writes.
type Adapter struct {
	prob Problem
	rec  *Record
}

// NewAdapter wraps p with the scales of rec.
// Every variable and response of p must be covered by rec with a matching size.
func NewAdapter(p Problem, rec *Record) (*Adapter, error) {
	switch {
	case p == nil:
		return nil, errors.New("problem is required")
	case rec == nil:
		return nil, errors.New("scale record is required")
	}

	var errs error
	for _, v := range p.Variables() {
		s, ok := rec.variables[v.Name]
		switch {
		case !ok:
			errs = multierr.Append(errs, &LookupError{Name: v.Name})
		case s.Size() != v.Size:
			errs = multierr.Append(errs, configErr(fmt.Sprintf("record size %d does not match size %d", s.Size(), v.Size), v.Name))
		}
	}
	for _, r := range p.Responses() {
		s, ok := rec.responses[r.Name]
		switch {
		case !ok:
			errs = multierr.Append(errs, &LookupError{Name: r.Name})
		case s.Size() != r.Size:
			errs = multierr.Append(errs, configErr(fmt.Sprintf("record size %d does not match size %d", s.Size(), r.Size), r.Name))
		}
	}
	if errs != nil {
		return nil, errs
	}
	return &Adapter{prob: p, rec: rec}, nil
}

// Record returns the scale record used by the adapter.
func (a *Adapter) Record() *Record {
	return a.rec
}

// Variables returns the variables of the wrapped problem.
func (a *Adapter) Variables() []Variable {
	return a.prob.Variables()
}

// Responses returns the responses of the wrapped problem.
func (a *Adapter) Responses() []Response {
	return a.prob.Responses()
}

// Set writes the scaled value of variable name to the problem as x = x̃ × σ + r.
func (a *Adapter) Set(name string, scaled []float64) error {
	s, ok := a.rec.variables[name]
	if !ok {
		return &LookupError{Name: name}
	}
	if len(scaled) != s.Size() {
		return configErr(fmt.Sprintf("value size %d does not match size %d", len(scaled), s.Size()), name)
	}
	if err := a.prob.SetValue(name, s.Invert(nil, scaled)); err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return nil
}

// Get reads the value of variable or response name and returns (x - r) / σ.
func (a *Adapter) Get(name string) ([]float64, error) {
	s, ok := a.rec.lookup(name)
	if !ok {
		return nil, &LookupError{Name: name}
	}
	v, err := a.prob.Value(name)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	if len(v) != s.Size() {
		return nil, configErr(fmt.Sprintf("value size %d does not match size %d", len(v), s.Size()), name)
	}
	return s.Apply(nil, v), nil
}

// Jacobian returns the scaled partial derivatives of response with respect to variable.
func (a *Adapter) Jacobian(response, variable string) (*mat.Dense, error) {
	sr, ok := a.rec.responses[response]
	if !ok {
		return nil, &LookupError{Name: response}
	}
	sv, ok := a.rec.variables[variable]
	if !ok {
		return nil, &LookupError{Name: variable}
	}

	jac, err := a.prob.Jacobian(response, variable)
	if err != nil {
		return nil, fmt.Errorf("jacobian d%s/d%s: %w", response, variable, err)
	}
	if r, c := jac.Dims(); r != sr.Size() || c != sv.Size() {
		reason := fmt.Sprintf("jacobian block %d×%d does not match %d×%d", r, c, sr.Size(), sv.Size())
		return nil, configErr(reason, response, variable)
	}

	scaled := mat.NewDense(sr.Size(), sv.Size(), nil)
	scaled.Apply(func(i, j int, v float64) float64 {
		return v * sv.Factor[j] / sr.Factor[i]
	}, jac)
	return scaled, nil
}

// Bounds returns the scaled declared bounds of variable or response name.
// Absent sides stay infinite.
func (a *Adapter) Bounds(name string) ([]Bound, error) {
	s, ok := a.rec.lookup(name)
	if !ok {
		return nil, &LookupError{Name: name}
	}

	declared, found := a.declared(name)
	if !found {
		return nil, &LookupError{Name: name}
	}
	if declared != nil && len(declared) != s.Size() {
		return nil, configErr(fmt.Sprintf("declared bound size %d does not match size %d", len(declared), s.Size()), name)
	}

	scaled := make([]Bound, s.Size())
	for i := range scaled {
		b := Unbounded()
		if declared != nil {
			b = declared[i]
		}
		n, hint := b.normalize(a.rec.boundInf)
		scaled[i] = Unbounded()
		if hint == bndLow || hint == bndBoth {
			scaled[i].Lower = (n.Lower - s.Ref[i]) / s.Factor[i]
		}
		if hint == bndUp || hint == bndBoth {
			scaled[i].Upper = (n.Upper - s.Ref[i]) / s.Factor[i]
		}
	}
	return scaled, nil
}

func (a *Adapter) declared(name string) ([]Bound, bool) {
	for _, v := range a.prob.Variables() {
		if v.Name == name {
			return v.Bounds, true
		}
	}
	for _, r := range a.prob.Responses() {
		if r.Name == name {
			if r.Kind == Objective {
				return nil, true
			}
			return r.Bounds, true
		}
	}
	return nil, false
}

// Physical converts a scaled value of name back to physical units without touching the problem.
func (a *Adapter) Physical(name string, scaled []float64) ([]float64, error) {
	s, ok := a.rec.lookup(name)
	if !ok {
		return nil, &LookupError{Name: name}
	}
	if len(scaled) != s.Size() {
		return nil, configErr(fmt.Sprintf("value size %d does not match size %d", len(scaled), s.Size()), name)
	}
	return s.Invert(nil, scaled), nil
}
