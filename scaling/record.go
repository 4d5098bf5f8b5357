// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scaling

import (
	"fmt"
	"maps"
	"math"
	"slices"
)

// Scale holds the elementwise affine map 𝐬 = (𝐯 - 𝐫) / 𝛔 of one variable or response.
type Scale struct {
	Ref    []float64 // 𝐫
	Factor []float64 // 𝛔 > 0
}

// Size returns the number of elements covered by the scale.
func (s Scale) Size() int {
	return len(s.Factor)
}

// Apply stores (v - r) / σ into dst and returns it. dst may alias v.
func (s Scale) Apply(dst, v []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(v))
	}
	if len(v) != len(s.Factor) || len(dst) != len(v) {
		panic("scale dimension not match")
	}
	for i, x := range v {
		dst[i] = (x - s.Ref[i]) / s.Factor[i]
	}
	return dst
}

// Invert stores s × σ + r into dst and returns it. dst may alias v.
func (s Scale) Invert(dst, v []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(v))
	}
	if len(v) != len(s.Factor) || len(dst) != len(v) {
		panic("scale dimension not match")
	}
	for i, x := range v {
		dst[i] = x*s.Factor[i] + s.Ref[i]
	}
	return dst
}

func (s Scale) clone() Scale {
	return Scale{Ref: slices.Clone(s.Ref), Factor: slices.Clone(s.Factor)}
}

// Record is the immutable set of scales computed by one policy for one problem.
type Record struct {
	policy    Strategy
	boundInf  float64
	variables map[string]Scale
	responses map[string]Scale
}

// NewRecord builds a record from precomputed scales, e.g. one read back from a file.
// Every factor must be finite and strictly positive.
func NewRecord(policy Strategy, variables, responses map[string]Scale) (*Record, error) {
	r := &Record{
		policy:    policy,
		boundInf:  DefaultBoundInf,
		variables: make(map[string]Scale, len(variables)),
		responses: make(map[string]Scale, len(responses)),
	}
	for k, s := range variables {
		r.variables[k] = s.clone()
	}
	for k, s := range responses {
		r.responses[k] = s.clone()
	}
	if err := r.check(); err != nil {
		return nil, err
	}
	return r, nil
}

// Policy returns the strategy that produced the record.
func (r *Record) Policy() Strategy {
	return r.policy
}

// BoundInf returns the magnitude at or beyond which the adapter treats a declared bound as absent.
func (r *Record) BoundInf() float64 {
	return r.boundInf
}

// WithBoundInf returns a copy of the record that treats bounds at or beyond inf as absent.
func (r *Record) WithBoundInf(inf float64) (*Record, error) {
	if !(inf > zero) {
		return nil, configErr(fmt.Sprintf("bound infinity %g must be positive", inf))
	}
	c := *r
	c.boundInf = inf
	return &c, nil
}

// Variable returns a copy of the scale of variable name.
func (r *Record) Variable(name string) (Scale, bool) {
	s, ok := r.variables[name]
	if !ok {
		return Scale{}, false
	}
	return s.clone(), true
}

// Response returns a copy of the scale of response name.
func (r *Record) Response(name string) (Scale, bool) {
	s, ok := r.responses[name]
	if !ok {
		return Scale{}, false
	}
	return s.clone(), true
}

// VariableNames returns the sorted names of all scaled variables.
func (r *Record) VariableNames() []string {
	return slices.Sorted(maps.Keys(r.variables))
}

// ResponseNames returns the sorted names of all scaled responses.
func (r *Record) ResponseNames() []string {
	return slices.Sorted(maps.Keys(r.responses))
}

func (r *Record) lookup(name string) (Scale, bool) {
	if s, ok := r.variables[name]; ok {
		return s, true
	}
	s, ok := r.responses[name]
	return s, ok
}

func (r *Record) check() error {
	names := slices.Sorted(maps.Keys(r.variables))
	for _, n := range names {
		if err := checkScale(n, r.variables[n]); err != nil {
			return err
		}
	}
	names = slices.Sorted(maps.Keys(r.responses))
	for _, n := range names {
		if err := checkScale(n, r.responses[n]); err != nil {
			return err
		}
	}
	return nil
}

func checkScale(name string, s Scale) error {
	if len(s.Ref) != len(s.Factor) {
		return configErr("reference and factor sizes differ", name)
	}
	for i, f := range s.Factor {
		if math.IsNaN(f) || math.IsInf(f, 0) || f <= zero {
			return &ComputationError{Name: name, Index: i, Value: f}
		}
	}
	for i, v := range s.Ref {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &ComputationError{Name: name, Index: i, Value: v}
		}
	}
	return nil
}
