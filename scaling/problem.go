// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scaling

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Kind distinguishes the objective from the constraints.
type Kind int

const (
	// Constraint is a response bounded by its declared lower and upper bounds.
	Constraint Kind = iota
	// Objective is the response minimized by the solver. It carries no bounds.
	Objective
)

func (k Kind) String() string {
	switch k {
	case Constraint:
		return "constraint"
	case Objective:
		return "objective"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Variable describes a named design unknown of the problem.
// Bounds is either nil (unbounded) or holds Size elements. Policies read variable
// bounds from the bounds artifact; the adapter reports these declared ones.
type Variable struct {
	Name   string
	Size   int
	Bounds []Bound
}

// Response describes a named quantity evaluated by the problem.
// Bounds is either nil (unbounded) or holds Size elements.
type Response struct {
	Name   string
	Size   int
	Kind   Kind
	Bounds []Bound
}

// Problem is an optimization problem read and written in physical units.
//
// Value of a response reflects the current variable values. The problem owns its
// own concurrency discipline; callers serialize writes.
type Problem interface {
	Variables() []Variable
	Responses() []Response
	// Value returns the physical value of a variable or response.
	Value(name string) ([]float64, error)
	// SetValue writes the physical value of a variable.
	SetValue(name string, v []float64) error
	// Jacobian returns ∂response/∂variable with shape Size(response) × Size(variable).
	Jacobian(response, variable string) (*mat.Dense, error)
}
