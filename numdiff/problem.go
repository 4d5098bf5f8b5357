package numdiff

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/hweyandtnasa/autoscaling/scaling"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
)

// Options configures the sensitivity analysis of a problem.
type Options struct {
	Settings
	// Bounds with a magnitude at or beyond BoundInf are treated as absent.
	// Zero selects scaling.DefaultBoundInf.
	BoundInf float64
}

type segment struct {
	name      string
	off, size int
}

// Sensitivity estimates the total derivative of every response of p with respect to
// every variable at the current point and returns the blocks as a Jacobian artifact.
//
// Variables are perturbed in place through p.SetValue and every one of them is
// written back to its original value before returning, including on error.
func Sensitivity(ctx context.Context, p scaling.Problem, opt Options) (jac *scaling.Jacobian, err error) {
	if p == nil {
		return nil, errors.New("problem is required")
	}
	inf := opt.BoundInf
	switch {
	case inf == 0:
		inf = scaling.DefaultBoundInf
	case !(inf > 0):
		return nil, errors.New("bound infinity must be positive")
	}

	vars, resps := p.Variables(), p.Responses()
	switch {
	case len(vars) == 0:
		return nil, errors.New("problem has no variables")
	case len(resps) == 0:
		return nil, errors.New("problem has no responses")
	}

	var x0 []float64
	var bnd []scaling.Bound
	in := make([]segment, len(vars))
	for k, v := range vars {
		val, err := p.Value(v.Name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", v.Name, err)
		}
		if len(val) != v.Size {
			return nil, fmt.Errorf("variable %s has %d values for size %d", v.Name, len(val), v.Size)
		}
		if v.Bounds != nil && len(v.Bounds) != v.Size {
			return nil, fmt.Errorf("variable %s has %d bounds for size %d", v.Name, len(v.Bounds), v.Size)
		}
		in[k] = segment{name: v.Name, off: len(x0), size: v.Size}
		x0 = append(x0, val...)
		for i := range v.Size {
			b := scaling.Unbounded()
			if v.Bounds != nil {
				b = v.Bounds[i]
			}
			bnd = append(bnd, absent(b, inf))
		}
	}

	out := make([]segment, len(resps))
	m := 0
	for k, r := range resps {
		out[k] = segment{name: r.Name, off: m, size: r.Size}
		m += r.Size
	}

	defer func() {
		for _, s := range in {
			err = multierr.Append(err, p.SetValue(s.name, x0[s.off:s.off+s.size]))
		}
		if err != nil {
			jac = nil
		}
	}()

	cur := slices.Clone(x0)
	fun := func(x, y []float64) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, s := range in {
			seg := x[s.off : s.off+s.size]
			if slices.Equal(seg, cur[s.off:s.off+s.size]) {
				continue
			}
			if err := p.SetValue(s.name, seg); err != nil {
				return fmt.Errorf("set %s: %w", s.name, err)
			}
			copy(cur[s.off:], seg)
		}
		for _, s := range out {
			v, err := p.Value(s.name)
			if err != nil {
				return fmt.Errorf("read %s: %w", s.name, err)
			}
			if len(v) != s.size {
				return fmt.Errorf("response %s has %d values for size %d", s.name, len(v), s.size)
			}
			copy(y[s.off:], v)
		}
		return nil
	}

	full := mat.NewDense(m, len(x0), nil)
	est := Estimator{Settings: opt.Settings}
	if err = est.Diff(fun, x0, bnd, full); err != nil {
		return nil, err
	}

	blocks := make(map[scaling.Pair]*mat.Dense, len(in)*len(out))
	for _, r := range out {
		for _, v := range in {
			sub := full.Slice(r.off, r.off+r.size, v.off, v.off+v.size)
			blocks[scaling.Pair{Of: r.name, Wrt: v.name}] = mat.DenseCopyOf(sub)
		}
	}
	return scaling.NewJacobian(blocks), nil
}

// absent rewrites missing or out of range sides to infinity.
func absent(b scaling.Bound, inf float64) scaling.Bound {
	if math.IsNaN(b.Lower) || b.Lower <= -inf {
		b.Lower = math.Inf(-1)
	}
	if math.IsNaN(b.Upper) || b.Upper >= inf {
		b.Upper = math.Inf(1)
	}
	return b
}
