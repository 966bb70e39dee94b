package main

import (
	"encoding/json"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/omegabytes/carbonboard/apperr"
	"github.com/omegabytes/carbonboard/equivalence"
	"github.com/omegabytes/carbonboard/tracker"
	"github.com/omegabytes/carbonboard/ui"
)

func newEstimateCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "estimate <model> <elapsed-seconds>",
		Short: "Estimate the footprint of a call without recording it",
		Example: `  carbonboard estimate gpt-4 2.5
  carbonboard estimate llama-3.3-70b-versatile 0.8 --json
  # values starting with "-" go after --
  carbonboard estimate --json -- gpt-4 -1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			elapsed, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return apperr.Userf("elapsed seconds %q is not a number", args[1])
			}

			return a.withTracker(cmd.Context(), func(t *tracker.Tracker) error {
				est, err := t.Estimate(args[0], elapsed)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(est)
				}
				eq, err := equivalence.Convert(est.TotalGrams)
				if err != nil {
					return err
				}
				ui.PrintEstimate(cmd.OutOrStdout(), est, eq)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the estimate as JSON")
	return cmd
}
