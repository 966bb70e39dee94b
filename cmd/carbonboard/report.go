package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/omegabytes/carbonboard/compare"
	"github.com/omegabytes/carbonboard/ledger"
	"github.com/omegabytes/carbonboard/tracker"
	"github.com/omegabytes/carbonboard/ui"
)

type report struct {
	Summary    tracker.Summary        `json:"summary"`
	Comparison []compare.ModelSummary `json:"comparison"`
	Timeline   []compare.Point        `json:"timeline"`
	Entries    []ledger.Entry         `json:"entries"`
}

func newReportCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the totals, comparison and timeline of a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return a.withTracker(ctx, func(t *tracker.Tracker) error {
				var r report
				var err error
				if r.Summary, err = t.Summary(ctx, a.session); err != nil {
					return err
				}
				if r.Comparison, err = t.Comparison(ctx, a.session); err != nil {
					return err
				}
				if r.Timeline, err = t.Timeline(ctx, a.session); err != nil {
					return err
				}
				if asJSON {
					if r.Entries, err = t.Entries(ctx, a.session); err != nil {
						return err
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(r)
				}
				ui.PrintReport(cmd.OutOrStdout(), r.Summary, r.Comparison, r.Timeline)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report and every entry as JSON")
	return cmd
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the ledger of a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withTracker(cmd.Context(), func(t *tracker.Tracker) error {
				if err := t.Reset(cmd.Context(), a.session); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), ui.Success.Render("✓")+" Session "+ui.Bold.Render(a.session)+" cleared")
				return nil
			})
		},
	}
}
