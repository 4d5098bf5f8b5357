package numdiff

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/hweyandtnasa/autoscaling/scaling"
	"gonum.org/v1/gonum/mat"
)

var sqrtEps = math.Sqrt(math.Nextafter(1, 2) - 1)
var cubeEps = math.Pow(math.Nextafter(1, 2)-1, float64(1)/3)

type Method int

const (
	// Forward use the first order accuracy forward difference.
	Forward Method = iota
	// Central use central difference in interior points and the second order accuracy
	// forward or backward difference near the boundary.
	Central
)

func (m Method) String() string {
	switch m {
	case Forward:
		return "forward"
	case Central:
		return "central"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

// ParseMethod accepts the names printed by Method.String.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "forward", "2-point":
		return Forward, nil
	case "central", "3-point":
		return Central, nil
	}
	return 0, fmt.Errorf("unknown difference method %q", s)
}

// Func evaluates the m-vector y at the n-vector x.
// A non-nil error aborts the estimation.
type Func func(x, y []float64) error

// Settings controls the step selection of an Estimator.
type Settings struct {
	// Finite difference method to use.
	Method Method
	// Relative step size used to compute absolute step size.
	// The default absolute step size is computed as h = RelStep * sign(x0) * max(1, abs(x0)) with RelStep being selected automatically.
	// Otherwise, absolute step size is computed as h = RelStep * sign(x0) * abs(x0) when RelStep is provided.
	RelStep float64
	// Absolute step size to use, possibly adjusted to fit into the bounds.
	// The RelStep is used when AbsStep is not provide.
	// For Central method the sign of AbsStep is ignored.
	AbsStep float64
	// Don't check if x0 is out of bounds.
	NotChkBnd bool
}

// Estimator approximates the Jacobian of a Func by finite differences.
//
// # Reference:
//
//   - https://en.wikipedia.org/wiki/Finite_difference
//   - https://github.com/scipy/scipy/blob/main/scipy/optimize/_numdiff.py
//
// # License
//
//   - https://github.com/scipy/scipy/blob/main/LICENSE.txt
//
// The work buffers are reused between calls, so an Estimator must not be shared between goroutines.
type Estimator struct {
	Settings
	f0, fx  []float64
	absStep []float64
	oneSide []bool
	lo, hi  []float64
}

// check the arguments and size the work buffers.
func (e *Estimator) check(f Func, x0 []float64, bnd []scaling.Bound, jac *mat.Dense) (err error) {
	if jac == nil {
		return errors.New("jacobian destination is required")
	}
	m, n := jac.Dims()

	switch {
	case len(x0) == 0:
		err = errors.New("empty x0")
	case e.Method != Forward && e.Method != Central:
		err = errors.New("unknown method")
	case f == nil:
		err = errors.New("object function is required")
	case n != len(x0):
		err = fmt.Errorf("jacobian has %d columns for %d variables", n, len(x0))
	case bnd != nil && len(bnd) != len(x0):
		err = errors.New("invalid bound dimension")
	}
	if err != nil {
		return
	}

	if len(e.f0) != m {
		e.f0 = make([]float64, m)
		e.fx = make([]float64, 2*m)
	}
	if len(e.absStep) != n {
		e.absStep = make([]float64, n)
		e.oneSide = make([]bool, n)
		e.lo = make([]float64, n)
		e.hi = make([]float64, n)
	}

	for i := range x0 {
		e.lo[i], e.hi[i] = math.Inf(-1), math.Inf(1)
		if bnd == nil {
			continue
		}
		l, u := bnd[i].Lower, bnd[i].Upper
		if !math.IsNaN(l) {
			e.lo[i] = l
		}
		if !math.IsNaN(u) {
			e.hi[i] = u
		}
		if e.lo[i] > e.hi[i] {
			return fmt.Errorf("invalid bound range at %d", i)
		}
		if !e.NotChkBnd && (x0[i] < e.lo[i] || x0[i] > e.hi[i]) {
			return fmt.Errorf("x0 violates bound constraints at %d", i)
		}
	}
	return
}

// Diff estimates ∂𝐲/∂𝐱 at x0 into jac, an m×n matrix.
// The x0 slice is left untouched.
func (e *Estimator) Diff(f Func, x0 []float64, bnd []scaling.Bound, jac *mat.Dense) error {
	if err := e.check(f, x0, bnd, jac); err != nil {
		return err
	}

	bounded := false
	for i := range e.lo {
		if !math.IsInf(e.lo[i], 0) || !math.IsInf(e.hi[i], 0) {
			bounded = true
			break
		}
	}

	x := slices.Clone(x0)
	e.absoluteStep(x)
	e.adjustToBounds(x, bounded)

	if e.Method == Central {
		return e.approxCentral(f, x, jac)
	}
	return e.approxForward(f, x, jac)
}

func (e *Estimator) absoluteStep(x0 []float64) {
	h := e.absStep
	if len(h) != len(x0) {
		panic("bound check error")
	}

	var eps float64
	switch e.Method {
	case Forward:
		eps = sqrtEps
	case Central:
		eps = cubeEps
	default:
		panic("unknown method")
	}

	abs, rel := e.AbsStep, e.RelStep
	for i, v := range x0 {
		if abs == 0 && rel == 0 {
			h[i] = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
			continue
		}
		s := abs
		if s == 0 {
			s = math.Copysign(rel, v) * math.Abs(v)
		}
		if (v+s)-v == 0 {
			s = math.Copysign(eps, v) * math.Max(1.0, math.Abs(v))
		}
		h[i] = s
	}
}

func (e *Estimator) adjustToBounds(x0 []float64, bounded bool) {
	h, o := e.absStep, e.oneSide
	for i := range o {
		o[i] = false
	}
	if e.Method == Central {
		for i, v := range h {
			h[i] = math.Abs(v)
		}
	}
	if !bounded {
		return
	}

	for i, x := range x0 {
		ld, ud := x-e.lo[i], e.hi[i]-x
		switch e.Method {
		case Forward:
			violated := x+h[i] < e.lo[i] || x+h[i] > e.hi[i]
			fitting := math.Abs(h[i]) <= math.Max(ld, ud)
			switch {
			case violated && fitting:
				h[i] = -h[i]
			case !fitting && ud >= ld:
				h[i] = ud
			case !fitting:
				h[i] = -ld
			}
		case Central:
			central := ld >= h[i] && ud >= h[i]
			if !central {
				o[i] = true
				if ud >= ld {
					h[i] = math.Min(h[i], 0.5*ud)
				} else {
					h[i] = -math.Min(h[i], 0.5*ld)
				}
			}
			if minDist := math.Min(ud, ld); !central && math.Abs(h[i]) <= minDist {
				h[i] = minDist
				o[i] = false
			}
		}
	}
}

func (e *Estimator) approxForward(f Func, x0 []float64, jac *mat.Dense) error {
	f0, fx := e.f0, e.fx[:len(e.f0)]
	if err := f(x0, f0); err != nil {
		return err
	}
	for i, s := range e.absStep {
		t := x0[i]
		x0[i] = t + s
		d := 1.0 / (x0[i] - t)
		if err := f(x0, fx); err != nil {
			return err
		}
		for j := range f0 {
			jac.Set(j, i, (fx[j]-f0[j])*d)
		}
		x0[i] = t
	}
	return nil
}

func (e *Estimator) approxCentral(f Func, x0 []float64, jac *mat.Dense) error {
	m := len(e.f0)
	f0, f1, f2 := e.f0, e.fx[:m], e.fx[m:]
	if err := f(x0, f0); err != nil {
		return err
	}
	for i, s := range e.absStep {
		t := x0[i]
		d := 1.0 / (2 * s)
		if e.oneSide[i] {
			x0[i] = t + s
			if err := f(x0, f1); err != nil {
				return err
			}
			x0[i] = t + 2*s
			if err := f(x0, f2); err != nil {
				return err
			}
			for j := range f0 {
				jac.Set(j, i, (4*f1[j]-3*f0[j]-f2[j])*d)
			}
		} else {
			x0[i] = t - s
			if err := f(x0, f1); err != nil {
				return err
			}
			x0[i] = t + s
			if err := f(x0, f2); err != nil {
				return err
			}
			for j := range f0 {
				jac.Set(j, i, (f2[j]-f1[j])*d)
			}
		}
		x0[i] = t
	}
	return nil
}
