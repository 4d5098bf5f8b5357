// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scaling

import (
	"fmt"
	"math"
)

// isoPolicy maps the feasible range of every entity onto [-1, 1].
//
// For each element with lower bound 𝒍 and upper bound 𝒖:
//   - 𝒍 < 𝒖 : 𝛔 = ½(𝒖 - 𝒍), 𝐫 = ½(𝒖 + 𝒍)
//   - only 𝒍 or 𝒖 : 𝛔 = 𝚖𝚊𝚡(|𝒍| or |𝒖|, ε), 𝐫 = 0
//   - 𝒍 = 𝒖 or unbounded : 𝛔 = 𝚖𝚊𝚡(|𝐯|, ε), 𝐫 = 0 where 𝐯 is the current value
type isoPolicy struct {
	opt Options
}

func (p *isoPolicy) Strategy() Strategy {
	return Iso
}

func (p *isoPolicy) Compute(prob Problem, a Artifacts) (*Record, error) {
	lay, err := p.opt.prepare(prob, a, Iso)
	if err != nil {
		return nil, err
	}
	vars, resps, err := lay.isoScales(p.opt)
	if err != nil {
		return nil, err
	}
	rec, err := NewRecord(Iso, vars, resps)
	if err != nil {
		return nil, err
	}
	rec.boundInf = p.opt.BoundInf
	return rec, nil
}

// isoScales computes the bound-range scale of every entity in the layout.
func (lay *layout) isoScales(opt Options) (vars, resps map[string]Scale, err error) {
	vars = make(map[string]Scale, len(lay.vars))
	resps = make(map[string]Scale, len(lay.resps))
	for i := range lay.vars {
		e := &lay.vars[i]
		if vars[e.name], err = lay.isoScale(e, opt.Epsilon, nil); err != nil {
			return
		}
	}
	for i := range lay.resps {
		e := &lay.resps[i]
		if resps[e.name], err = lay.isoScale(e, opt.Epsilon, nil); err != nil {
			return
		}
	}
	return
}

// isoScale computes the bound-range scale of e.
// Elements with a positive entry in known get their factor elsewhere,
// so the current value is read only when some other element needs it.
func (lay *layout) isoScale(e *entity, eps float64, known []float64) (s Scale, err error) {
	s = Scale{
		Ref:    make([]float64, e.size),
		Factor: make([]float64, e.size),
	}

	var value []float64
	for i := range e.bounds {
		var ok bool
		if s.Factor[i], s.Ref[i], ok = isoElement(e.bounds[i], e.hints[i], eps); ok {
			continue
		}
		if known != nil && known[i] > zero {
			continue
		}
		if value == nil {
			if value, err = lay.value(e); err != nil {
				return
			}
		}
		s.Factor[i] = magnitude(value[i], eps)
	}
	return
}

// isoElement computes the bound-range factor and reference of one element.
// It reports false when the element is degenerate or unbounded, in which case
// the factor must come from the magnitude of the current value and the reference is 0.
func isoElement(b Bound, hint bndHint, eps float64) (sigma, ref float64, ok bool) {
	switch hint {
	case bndBoth:
		if b.Upper > b.Lower {
			return (b.Upper - b.Lower) / two, (b.Upper + b.Lower) / two, true
		}
	case bndLow:
		return magnitude(b.Lower, eps), zero, true
	case bndUp:
		return magnitude(b.Upper, eps), zero, true
	}
	return zero, zero, false
}

// magnitude is 𝚖𝚊𝚡(|v|, ε). NaN propagates so the record check rejects it.
func magnitude(v, eps float64) float64 {
	return math.Max(math.Abs(v), eps)
}

func (lay *layout) value(e *entity) ([]float64, error) {
	v, err := lay.prob.Value(e.name)
	if err != nil {
		return nil, fmt.Errorf("read value of %s: %w", e.name, err)
	}
	if len(v) != e.size {
		return nil, configErr(fmt.Sprintf("value size %d does not match size %d", len(v), e.size), e.name)
	}
	return v, nil
}
