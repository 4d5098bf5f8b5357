// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"

	"github.com/hweyandtnasa/autoscaling/artifact"
	"github.com/hweyandtnasa/autoscaling/autoscale"
	"github.com/hweyandtnasa/autoscaling/scaling"
	"github.com/spf13/cobra"
)

func (a *app) scaleCmd() *cobra.Command {
	var snapshot, jacobian, bounds, out string

	cmd := &cobra.Command{
		Use:   "scale",
		Short: "Compute the scale record of a snapshot problem",
		Long: `Compute the scale record of a snapshot problem and write it as yaml.

The Jacobian and bounds artifacts default to the ones recorded in the snapshot.
The record goes to --out, or stdout when unset; the conditioning report goes to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := artifact.ReadSnapshot(snapshot)
			if err != nil {
				return err
			}

			art := scaling.Artifacts{Jacobian: snap.Linearization(), Bounds: snap.Declared()}
			if jacobian != "" {
				if art.Jacobian, err = artifact.ReadJacobian(jacobian); err != nil {
					return err
				}
			}
			if bounds != "" {
				if art.Bounds, err = artifact.ReadBounds(bounds); err != nil {
					return err
				}
			}

			strategy, err := a.cfg.Strategy()
			if err != nil {
				return err
			}
			res, err := autoscale.Run(cmd.Context(), snap, art, autoscale.Options{
				Strategy: strategy,
				Policy:   a.cfg.Options(),
				Logger:   a.log.WithField("snapshot", snapshot),
			})
			if err != nil {
				return err
			}

			if out == "" {
				err = artifact.EncodeRecord(cmd.OutOrStdout(), res.Record)
			} else {
				err = artifact.WriteRecord(out, res.Record)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.ErrOrStderr(), res.Report)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&snapshot, "snapshot", "", "snapshot problem file (required)")
	flags.StringVar(&jacobian, "jacobian", "", "Jacobian artifact overriding the snapshot blocks")
	flags.StringVar(&bounds, "bounds", "", "bounds artifact overriding the declared bounds")
	flags.String("policy", "", "scaling policy (iso, pjrn)")
	flags.StringVarP(&out, "out", "o", "", "record output file")
	_ = cmd.MarkFlagRequired("snapshot")
	_ = a.v.BindPFlag("policy", flags.Lookup("policy"))
	return cmd
}
