// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package autoscale

import (
	"fmt"
	"math"

	"github.com/hweyandtnasa/autoscaling/scaling"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Condition summarizes the numerical conditioning of a full Jacobian.
type Condition struct {
	// Number is the spectral condition number σₘₐₓ/σₘᵢₙ, +Inf when rank deficient.
	Number float64
	// Ratio is max|Jᵢⱼ| / min|Jᵢⱼ| over the significant entries, NaN when there are none.
	Ratio float64
	// Max is the largest entry magnitude.
	Max float64
}

// Report compares the conditioning of the Jacobian before and after scaling.
type Report struct {
	Rows, Cols    int
	Before, After Condition
}

// Conditioning assembles the responses × variables Jacobian of p in problem order,
// both raw and scaled by rec, and measures each.
// Entries at or below rel × max|J| are ignored by the entry ratio.
func Conditioning(p scaling.Problem, rec *scaling.Record, rel float64) (*Report, error) {
	ad, err := scaling.NewAdapter(p, rec)
	if err != nil {
		return nil, err
	}
	raw, err := assemble(p.Variables(), p.Responses(), p.Jacobian)
	if err != nil {
		return nil, err
	}
	scaled, err := assemble(p.Variables(), p.Responses(), ad.Jacobian)
	if err != nil {
		return nil, err
	}
	r, c := raw.Dims()
	return &Report{
		Rows:   r,
		Cols:   c,
		Before: measure(raw, rel),
		After:  measure(scaled, rel),
	}, nil
}

func (r *Report) String() string {
	return fmt.Sprintf("jacobian %d×%d: condition %.3g → %.3g, entry ratio %.3g → %.3g, max entry %.3g → %.3g",
		r.Rows, r.Cols, r.Before.Number, r.After.Number, r.Before.Ratio, r.After.Ratio, r.Before.Max, r.After.Max)
}

func assemble(vars []scaling.Variable, resps []scaling.Response, block func(of, wrt string) (*mat.Dense, error)) (*mat.Dense, error) {
	var rows, cols int
	for _, r := range resps {
		rows += r.Size
	}
	for _, v := range vars {
		cols += v.Size
	}
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("jacobian %d×%d is empty", rows, cols)
	}

	full := mat.NewDense(rows, cols, nil)
	i := 0
	for _, r := range resps {
		j := 0
		for _, v := range vars {
			b, err := block(r.Name, v.Name)
			if err != nil {
				return nil, err
			}
			if br, bc := b.Dims(); br != r.Size || bc != v.Size {
				return nil, fmt.Errorf("block d%s/d%s is %d×%d, want %d×%d", r.Name, v.Name, br, bc, r.Size, v.Size)
			}
			full.Slice(i, i+r.Size, j, j+v.Size).(*mat.Dense).Copy(b)
			j += v.Size
		}
		i += r.Size
	}
	return full, nil
}

func measure(a *mat.Dense, rel float64) (c Condition) {
	c.Number = conditionNumber(a)

	abs := mat.DenseCopyOf(a).RawMatrix().Data
	for i, v := range abs {
		abs[i] = math.Abs(v)
	}
	c.Max = floats.Max(abs)

	tau := rel * c.Max
	lo := math.Inf(1)
	for _, v := range abs {
		if v > tau && v < lo {
			lo = v
		}
	}
	c.Ratio = math.NaN()
	if c.Max > 0 && !math.IsInf(lo, 1) {
		c.Ratio = c.Max / lo
	}
	return
}

// conditionNumber computes the 2-norm condition number of a (possibly non-square)
// matrix from its singular values. Rank deficient or failed factorizations give +Inf.
func conditionNumber(a *mat.Dense) float64 {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDNone); !ok {
		return math.Inf(1)
	}
	values := svd.Values(nil)
	if len(values) == 0 {
		return math.Inf(1)
	}
	hi, lo := values[0], values[len(values)-1]
	if lo <= 0 {
		return math.Inf(1)
	}
	return hi / lo
}
