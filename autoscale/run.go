// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package autoscale computes scale factors for a problem and wraps it in a scaled view.
package autoscale

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hweyandtnasa/autoscaling/scaling"
	"github.com/sirupsen/logrus"
)

// Options selects the policy of a run.
//
// The zero value runs the Iso policy with default tolerances and a discarded logger.
type Options struct {
	Strategy scaling.Strategy
	Policy   scaling.Options
	// Logger receives one summary entry per run.
	Logger logrus.FieldLogger
	// Skip the conditioning report, which reads every Jacobian block of the problem.
	NoReport bool
}

// Result is the outcome of a run.
type Result struct {
	Record  *scaling.Record
	Adapter *scaling.Adapter
	Report  *Report // nil when Options.NoReport is set
}

func discard() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Run computes the scale record of p from art, then wraps p in an adapter.
// The problem is not touched when validation fails.
func Run(ctx context.Context, p scaling.Problem, art scaling.Artifacts, opt Options) (*Result, error) {
	if p == nil {
		return nil, errors.New("problem is required")
	}
	log := opt.Logger
	if log == nil {
		log = discard()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pol, err := scaling.New(opt.Strategy, opt.Policy)
	if err != nil {
		return nil, err
	}
	rec, err := pol.Compute(p, art)
	if err != nil {
		return nil, fmt.Errorf("%s scaling: %w", opt.Strategy, err)
	}
	ad, err := scaling.NewAdapter(p, rec)
	if err != nil {
		return nil, err
	}

	res := &Result{Record: rec, Adapter: ad}
	fields := logrus.Fields{
		"policy":    rec.Policy().String(),
		"variables": len(rec.VariableNames()),
		"responses": len(rec.ResponseNames()),
	}
	if !opt.NoReport {
		rel := opt.Policy.RelThreshold
		if rel == 0 {
			rel = scaling.DefaultRelThreshold
		}
		if res.Report, err = Conditioning(p, rec, rel); err != nil {
			return nil, fmt.Errorf("conditioning: %w", err)
		}
		fields["cond_before"] = res.Report.Before.Number
		fields["cond_after"] = res.Report.After.Number
		fields["ratio_before"] = res.Report.Before.Ratio
		fields["ratio_after"] = res.Report.After.Ratio
	}
	log.WithFields(fields).Info("scaling computed")
	return res, nil
}
