// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scaling

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// pjrnPolicy equilibrates the Jacobian in a single pass.
//
// Let 𝐉 be the total Jacobian and 𝝉 = 𝚝𝚑𝚛𝚎𝚜𝚑𝚘𝚕𝚍 × 𝚖𝚊𝚡|𝐉ᵢⱼ|. Only entries with |𝐉ᵢⱼ| > 𝝉 are significant.
//   - variable j : 𝛔ⱼ = 1 / 𝚖𝚊𝚡(𝚖𝚊𝚡ᵢ|𝐉ᵢⱼ|, ε)
//   - response i : 𝛔ᵢ = 𝚖𝚊𝚡(𝚖𝚊𝚡ⱼ|𝐉ᵢⱼ𝛔ⱼ|, ε) where 𝐉·𝚍𝚒𝚊𝚐(𝛔) is the projected Jacobian
//
// The scaled Jacobian 𝛔ⱼ/𝛔ᵢ·𝐉ᵢⱼ then lies in [-1, 1] on every significant entry, and every
// row and column holding a significant entry reaches 1 in magnitude.
// Elements without a significant entry take the bound-range factor.
// References always come from the bound-range policy.
type pjrnPolicy struct {
	opt Options
}

func (p *pjrnPolicy) Strategy() Strategy {
	return PJRN
}

func (p *pjrnPolicy) Compute(prob Problem, a Artifacts) (*Record, error) {
	lay, err := p.opt.prepare(prob, a, PJRN)
	if err != nil {
		return nil, err
	}

	blocks, peak, err := lay.blocks(a.Jacobian)
	if err != nil {
		return nil, err
	}
	tau := p.opt.RelThreshold * peak
	eps := p.opt.Epsilon

	// column magnitudes of the raw Jacobian
	cols := make([][]float64, len(lay.vars))
	for j := range lay.vars {
		cols[j] = make([]float64, lay.vars[j].size)
	}
	for _, b := range blocks {
		col := cols[b.wrt]
		eachSignificant(b.m, tau, func(_, c int, v float64) {
			col[c] = math.Max(col[c], v)
		})
	}

	vars := make(map[string]Scale, len(lay.vars))
	for j := range lay.vars {
		s, err := lay.fallback(&lay.vars[j], cols[j], eps, func(m float64) float64 {
			return one / math.Max(m, eps)
		})
		if err != nil {
			return nil, err
		}
		vars[lay.vars[j].name] = s
	}

	// row magnitudes of the projected Jacobian
	rows := make([][]float64, len(lay.resps))
	for i := range lay.resps {
		rows[i] = make([]float64, lay.resps[i].size)
	}
	for _, b := range blocks {
		row, sigma := rows[b.of], vars[lay.vars[b.wrt].name].Factor
		eachSignificant(b.m, tau, func(r, c int, v float64) {
			row[r] = math.Max(row[r], v*sigma[c])
		})
	}

	resps := make(map[string]Scale, len(lay.resps))
	for i := range lay.resps {
		s, err := lay.fallback(&lay.resps[i], rows[i], eps, func(m float64) float64 {
			return math.Max(m, eps)
		})
		if err != nil {
			return nil, err
		}
		resps[lay.resps[i].name] = s
	}

	rec, err := NewRecord(PJRN, vars, resps)
	if err != nil {
		return nil, err
	}
	rec.boundInf = p.opt.BoundInf
	return rec, nil
}

type block struct {
	of, wrt int
	m       *mat.Dense
}

// blocks collects the Jacobian blocks linking entities of the layout and
// returns the largest entry magnitude among them.
func (lay *layout) blocks(jac *Jacobian) (blocks []block, peak float64, err error) {
	for _, p := range jac.Pairs() {
		if _, _, ok := lay.pair(p); !ok {
			continue
		}
		d := jac.blocks[p]
		r, c := d.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				v := d.At(i, j)
				if math.IsNaN(v) || math.IsInf(v, 0) {
					name := fmt.Sprintf("d%s/d%s", p.Of, p.Wrt)
					return nil, 0, &ComputationError{Name: name, Index: i*c + j, Value: v}
				}
				peak = math.Max(peak, math.Abs(v))
			}
		}
		blocks = append(blocks, block{of: lay.respIdx[p.Of], wrt: lay.varIdx[p.Wrt], m: d})
	}
	return
}

// fallback turns per-element magnitudes into a scale.
// Elements with zero magnitude have no significant entry and take the bound-range factor.
func (lay *layout) fallback(e *entity, mag []float64, eps float64, factor func(float64) float64) (s Scale, err error) {
	iso, err := lay.isoScale(e, eps, mag)
	if err != nil {
		return
	}
	s = iso
	for i, m := range mag {
		if m > zero {
			s.Factor[i] = factor(m)
		}
	}
	return
}

// eachSignificant visits the entries of m with |v| > tau, passing |v|.
func eachSignificant(m *mat.Dense, tau float64, fn func(i, j int, v float64)) {
	raw := m.RawMatrix()
	for i := 0; i < raw.Rows; i++ {
		row := raw.Data[i*raw.Stride : i*raw.Stride+raw.Cols]
		for j, v := range row {
			if v = math.Abs(v); v > tau {
				fn(i, j, v)
			}
		}
	}
}
