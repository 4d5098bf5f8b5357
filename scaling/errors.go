// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scaling

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration indicates an entity of the problem has no usable entry in the artifacts.
	ErrConfiguration = errors.New("scaling: configuration error")

	// ErrComputation indicates a computed scale factor is non-finite or non-positive.
	ErrComputation = errors.New("scaling: computation error")

	// ErrLookup indicates a name is not present in the scale record.
	ErrLookup = errors.New("scaling: lookup error")
)

// ConfigurationError names the entities the artifacts could not cover.
type ConfigurationError struct {
	Names  []string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%v: %s: %s", ErrConfiguration, e.Reason, strings.Join(e.Names, ", "))
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}

// ComputationError names the entity whose scale factor is invalid.
type ComputationError struct {
	Name  string
	Index int
	Value float64
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%v: scale of %s[%d] is %g", ErrComputation, e.Name, e.Index, e.Value)
}

func (e *ComputationError) Unwrap() error {
	return ErrComputation
}

// LookupError names the entity missing from the scale record.
type LookupError struct {
	Name string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%v: %q not in scale record", ErrLookup, e.Name)
}

func (e *LookupError) Unwrap() error {
	return ErrLookup
}

func configErr(reason string, names ...string) error {
	return &ConfigurationError{Names: names, Reason: reason}
}
