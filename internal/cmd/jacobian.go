// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"github.com/hweyandtnasa/autoscaling/artifact"
	"github.com/hweyandtnasa/autoscaling/numdiff"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func (a *app) jacobianCmd() *cobra.Command {
	var snapshot, out string

	cmd := &cobra.Command{
		Use:   "jacobian",
		Short: "Estimate the Jacobian of a snapshot problem by finite differences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := artifact.ReadSnapshot(snapshot)
			if err != nil {
				return err
			}
			opt, err := a.cfg.Sensitivity()
			if err != nil {
				return err
			}
			jac, err := numdiff.Sensitivity(cmd.Context(), snap, opt)
			if err != nil {
				return err
			}

			a.log.WithFields(logrus.Fields{
				"snapshot": snapshot,
				"method":   opt.Method.String(),
				"blocks":   len(jac.Pairs()),
			}).Info("jacobian computed")

			if out == "" {
				return artifact.EncodeJacobian(cmd.OutOrStdout(), jac)
			}
			return artifact.WriteJacobian(out, jac)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&snapshot, "snapshot", "", "snapshot problem file (required)")
	flags.StringVarP(&out, "out", "o", "", "Jacobian output file")
	flags.String("method", "", "finite difference method (forward, central)")
	_ = cmd.MarkFlagRequired("snapshot")
	_ = a.v.BindPFlag("method", flags.Lookup("method"))
	return cmd
}
