package numdiff

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"testing"

	"github.com/hweyandtnasa/autoscaling/scaling"
	"gonum.org/v1/gonum/mat"
)

// curvy is a two variable problem:
//
//	f = x₀² + 3 x₀ y
//	c = [ sin(x₁), x₀ y ]
type curvy struct {
	x, y []float64
	bnd  []scaling.Bound
	sets int
	fail error
}

func newCurvy() *curvy {
	return &curvy{x: []float64{1.5, 0.3}, y: []float64{-2}}
}

func (p *curvy) Variables() []scaling.Variable {
	return []scaling.Variable{
		{Name: "x", Size: 2, Bounds: p.bnd},
		{Name: "y", Size: 1},
	}
}

func (p *curvy) Responses() []scaling.Response {
	return []scaling.Response{
		{Name: "f", Size: 1, Kind: scaling.Objective},
		{Name: "c", Size: 2, Kind: scaling.Constraint},
	}
}

func (p *curvy) Value(name string) ([]float64, error) {
	x, y := p.x, p.y[0]
	switch name {
	case "x":
		return slices.Clone(p.x), nil
	case "y":
		return slices.Clone(p.y), nil
	case "f":
		return []float64{x[0]*x[0] + 3*x[0]*y}, nil
	case "c":
		return []float64{math.Sin(x[1]), x[0] * y}, nil
	}
	return nil, fmt.Errorf("unknown %q", name)
}

func (p *curvy) SetValue(name string, v []float64) error {
	if p.fail != nil && p.sets > 0 {
		return p.fail
	}
	p.sets++
	switch name {
	case "x":
		p.x = slices.Clone(v)
	case "y":
		p.y = slices.Clone(v)
	default:
		return fmt.Errorf("unknown %q", name)
	}
	return nil
}

func (p *curvy) Jacobian(of, wrt string) (*mat.Dense, error) {
	return nil, errors.New("not available")
}

func (p *curvy) exact() map[scaling.Pair][]float64 {
	x, y := p.x, p.y[0]
	return map[scaling.Pair][]float64{
		{Of: "f", Wrt: "x"}: {2*x[0] + 3*y, 0},
		{Of: "f", Wrt: "y"}: {3 * x[0]},
		{Of: "c", Wrt: "x"}: {0, math.Cos(x[1]), y, 0},
		{Of: "c", Wrt: "y"}: {0, x[0]},
	}
}

func TestSensitivity(t *testing.T) {
	for _, method := range []Method{Forward, Central} {
		p := newCurvy()
		jac, err := Sensitivity(context.Background(), p, Options{Settings: Settings{Method: method}})
		if err != nil {
			t.Fatal("sensitivity failed", err)
		}

		tol := 1e-6
		if method == Central {
			tol = 1e-9
		}
		for pair, want := range p.exact() {
			blk, ok := jac.Block(pair.Of, pair.Wrt)
			if !ok {
				t.Fatal("missing block", pair)
			}
			got := mat.DenseCopyOf(blk).RawMatrix().Data
			for i := range want {
				if math.Abs(got[i]-want[i]) > tol*math.Max(1, math.Abs(want[i])) {
					t.Fatal("unexpected derivative", method, pair, got, want)
				}
			}
		}
		if !slices.Equal(p.x, []float64{1.5, 0.3}) || !slices.Equal(p.y, []float64{-2}) {
			t.Fatal("variables not restored", p.x, p.y)
		}
	}
}

func TestSensitivityRespectsBounds(t *testing.T) {
	p := newCurvy()
	p.bnd = []scaling.Bound{{Lower: 1.5, Upper: 1e30}, {Lower: math.NaN(), Upper: 0.3}}

	seen := map[string][]float64{}
	probe := &probing{curvy: p, seen: seen}
	if _, err := Sensitivity(context.Background(), probe, Options{Settings: Settings{Method: Central}}); err != nil {
		t.Fatal("sensitivity failed", err)
	}
	xs := seen["x"]
	if len(xs) == 0 {
		t.Fatal("x never perturbed")
	}
	for i := 0; i+1 < len(xs); i += 2 {
		if xs[i] < 1.5 || xs[i+1] > 0.3 {
			t.Fatal("perturbation left the bounds", xs[i:i+2])
		}
	}
}

type probing struct {
	*curvy
	seen map[string][]float64
}

func (p *probing) SetValue(name string, v []float64) error {
	p.seen[name] = append(p.seen[name], v...)
	return p.curvy.SetValue(name, v)
}

func TestSensitivityRestoresOnError(t *testing.T) {
	p := newCurvy()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Sensitivity(ctx, p, Options{}); !errors.Is(err, context.Canceled) {
		t.Fatal("expected cancellation", err)
	}
	if !slices.Equal(p.x, []float64{1.5, 0.3}) {
		t.Fatal("variables not restored", p.x)
	}

	boom := errors.New("boom")
	p = newCurvy()
	p.fail = boom
	jac, err := Sensitivity(context.Background(), p, Options{})
	if !errors.Is(err, boom) || jac != nil {
		t.Fatal("expected set failure", err)
	}
}

func TestSensitivityArguments(t *testing.T) {
	if _, err := Sensitivity(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected nil problem error")
	}
	if _, err := Sensitivity(context.Background(), newCurvy(), Options{BoundInf: -1}); err == nil {
		t.Fatal("expected bound infinity error")
	}
	p := newCurvy()
	p.bnd = []scaling.Bound{{Lower: 0, Upper: 1}}
	if _, err := Sensitivity(context.Background(), p, Options{}); err == nil {
		t.Fatal("expected bound size error")
	}
}
