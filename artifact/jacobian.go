// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package artifact reads and writes the YAML documents exchanged with the scaling engine:
// Jacobian blocks, bound tables, linearised problem snapshots and scale records.
package artifact

import (
	"errors"
	"fmt"
	"io"

	"github.com/hweyandtnasa/autoscaling/scaling"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
)

// Block is one ∂of/∂wrt matrix stored row-major.
type Block struct {
	Of   string    `yaml:"of"`
	Wrt  string    `yaml:"wrt"`
	Rows int       `yaml:"rows"`
	Cols int       `yaml:"cols"`
	Data []float64 `yaml:"data,flow"`
}

func (b Block) check() (err error) {
	switch {
	case b.Of == "" || b.Wrt == "":
		err = errors.New("block names are required")
	case b.Rows <= 0 || b.Cols <= 0:
		err = fmt.Errorf("block d%s/d%s has invalid shape %d×%d", b.Of, b.Wrt, b.Rows, b.Cols)
	case len(b.Data) != b.Rows*b.Cols:
		err = fmt.Errorf("block d%s/d%s has %d entries for shape %d×%d", b.Of, b.Wrt, len(b.Data), b.Rows, b.Cols)
	}
	return
}

func toJacobian(blocks []Block) (*scaling.Jacobian, error) {
	var errs error
	m := make(map[scaling.Pair]*mat.Dense, len(blocks))
	for i, b := range blocks {
		if err := b.check(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("block %d: %w", i, err))
			continue
		}
		p := scaling.Pair{Of: b.Of, Wrt: b.Wrt}
		if _, dup := m[p]; dup {
			errs = multierr.Append(errs, fmt.Errorf("block %d: duplicate d%s/d%s", i, b.Of, b.Wrt))
			continue
		}
		m[p] = mat.NewDense(b.Rows, b.Cols, b.Data)
	}
	if errs != nil {
		return nil, errs
	}
	return scaling.NewJacobian(m), nil
}

func fromJacobian(j *scaling.Jacobian) []Block {
	var blocks []Block
	for _, p := range j.Pairs() {
		m, _ := j.Block(p.Of, p.Wrt)
		d := mat.DenseCopyOf(m)
		r, c := d.Dims()
		blocks = append(blocks, Block{Of: p.Of, Wrt: p.Wrt, Rows: r, Cols: c, Data: d.RawMatrix().Data})
	}
	return blocks
}

// DecodeJacobian parses a YAML list of blocks.
func DecodeJacobian(r io.Reader) (*scaling.Jacobian, error) {
	var blocks []Block
	if err := decode(r, &blocks); err != nil {
		return nil, err
	}
	return toJacobian(blocks)
}

// EncodeJacobian writes the blocks of j ordered by response then variable.
func EncodeJacobian(w io.Writer, j *scaling.Jacobian) error {
	return encode(w, fromJacobian(j))
}

// ReadJacobian loads a Jacobian file.
func ReadJacobian(path string) (*scaling.Jacobian, error) {
	var j *scaling.Jacobian
	err := readFile(path, func(r io.Reader) (err error) {
		j, err = DecodeJacobian(r)
		return
	})
	if err != nil {
		return nil, fmt.Errorf("jacobian %s: %w", path, err)
	}
	return j, nil
}

// WriteJacobian stores j at path, replacing any existing file.
func WriteJacobian(path string, j *scaling.Jacobian) error {
	if err := writeFile(path, func(w io.Writer) error { return EncodeJacobian(w, j) }); err != nil {
		return fmt.Errorf("jacobian %s: %w", path, err)
	}
	return nil
}
