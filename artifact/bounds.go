// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package artifact

import (
	"fmt"
	"io"

	"github.com/hweyandtnasa/autoscaling/scaling"
)

// BoundTable is the on-disk form of a bounds artifact.
// A length one list applies to every element of the entity.
type BoundTable struct {
	Lower map[string][]float64 `yaml:"lower,omitempty"`
	Upper map[string][]float64 `yaml:"upper,omitempty"`
}

// DecodeBounds parses a bounds document.
func DecodeBounds(r io.Reader) (*scaling.Bounds, error) {
	var t BoundTable
	if err := decode(r, &t); err != nil {
		return nil, err
	}
	for _, side := range []map[string][]float64{t.Lower, t.Upper} {
		for name, v := range side {
			if len(v) == 0 {
				return nil, fmt.Errorf("empty bound list for %s", name)
			}
		}
	}
	return scaling.NewBounds(t.Lower, t.Upper), nil
}

// EncodeBounds writes t as a bounds document.
func EncodeBounds(w io.Writer, t BoundTable) error {
	return encode(w, t)
}

// ReadBounds loads a bounds file.
func ReadBounds(path string) (*scaling.Bounds, error) {
	var b *scaling.Bounds
	err := readFile(path, func(r io.Reader) (err error) {
		b, err = DecodeBounds(r)
		return
	})
	if err != nil {
		return nil, fmt.Errorf("bounds %s: %w", path, err)
	}
	return b, nil
}
