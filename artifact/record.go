// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package artifact

import (
	"errors"
	"fmt"
	"io"

	"github.com/hweyandtnasa/autoscaling/scaling"
)

type scaleDoc struct {
	Ref    []float64 `yaml:"ref,flow"`
	Factor []float64 `yaml:"factor,flow"`
}

type recordDoc struct {
	Policy    string              `yaml:"policy"`
	BoundInf  float64             `yaml:"bound_inf,omitempty"`
	Variables map[string]scaleDoc `yaml:"variables"`
	Responses map[string]scaleDoc `yaml:"responses,omitempty"`
}

// EncodeRecord writes the policy and every scale of rec.
func EncodeRecord(w io.Writer, rec *scaling.Record) error {
	if rec == nil {
		return errors.New("scale record is required")
	}
	doc := recordDoc{
		Policy:    rec.Policy().String(),
		BoundInf:  rec.BoundInf(),
		Variables: map[string]scaleDoc{},
		Responses: map[string]scaleDoc{},
	}
	for _, name := range rec.VariableNames() {
		s, _ := rec.Variable(name)
		doc.Variables[name] = scaleDoc{Ref: s.Ref, Factor: s.Factor}
	}
	for _, name := range rec.ResponseNames() {
		s, _ := rec.Response(name)
		doc.Responses[name] = scaleDoc{Ref: s.Ref, Factor: s.Factor}
	}
	return encode(w, doc)
}

// DecodeRecord parses a record document and validates every scale.
func DecodeRecord(r io.Reader) (*scaling.Record, error) {
	var doc recordDoc
	if err := decode(r, &doc); err != nil {
		return nil, err
	}
	policy, err := scaling.ParseStrategy(doc.Policy)
	if err != nil {
		return nil, err
	}
	conv := func(m map[string]scaleDoc) map[string]scaling.Scale {
		out := make(map[string]scaling.Scale, len(m))
		for name, s := range m {
			out[name] = scaling.Scale{Ref: s.Ref, Factor: s.Factor}
		}
		return out
	}
	rec, err := scaling.NewRecord(policy, conv(doc.Variables), conv(doc.Responses))
	if err != nil || doc.BoundInf == 0 {
		return rec, err
	}
	return rec.WithBoundInf(doc.BoundInf)
}

// WriteRecord stores rec at path, replacing any existing file.
func WriteRecord(path string, rec *scaling.Record) error {
	if err := writeFile(path, func(w io.Writer) error { return EncodeRecord(w, rec) }); err != nil {
		return fmt.Errorf("record %s: %w", path, err)
	}
	return nil
}

// ReadRecord loads a record file written by WriteRecord.
func ReadRecord(path string) (*scaling.Record, error) {
	var rec *scaling.Record
	err := readFile(path, func(r io.Reader) (err error) {
		rec, err = DecodeRecord(r)
		return
	})
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", path, err)
	}
	return rec, nil
}
