package main

import (
	"github.com/spf13/cobra"

	"github.com/omegabytes/carbonboard/tracker"
	"github.com/omegabytes/carbonboard/ui"
)

func newModelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the hardware catalog and the configured providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withTracker(cmd.Context(), func(t *tracker.Tracker) error {
				ui.PrintModels(cmd.OutOrStdout(), t.Model().Catalog(), providerModels(t.Providers()))
				return nil
			})
		},
	}
}
