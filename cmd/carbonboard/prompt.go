package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/omegabytes/carbonboard/ledger"
	"github.com/omegabytes/carbonboard/tracker"
	"github.com/omegabytes/carbonboard/ui"
)

func newPromptCmd(a *app) *cobra.Command {
	var providerName, model string
	cmd := &cobra.Command{
		Use:   "prompt <text>",
		Short: "Send a prompt to a provider and record its footprint",
		Example: `  carbonboard prompt --provider groq "Explain PUE in one sentence"
  carbonboard prompt --provider hf --model mistralai/Mistral-7B-Instruct-v0.2:featherless-ai hello`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			return a.withTracker(cmd.Context(), func(t *tracker.Tracker) error {
				entry, err := t.Submit(cmd.Context(), a.session, providerName, model, prompt)
				if entry != (ledger.Entry{}) {
					ui.PrintEntry(cmd.OutOrStdout(), entry)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&providerName, "provider", "p", "groq", "provider: openai|groq|gemini|hf")
	cmd.Flags().StringVarP(&model, "model", "m", "", "model id (default is the provider's first model)")
	return cmd
}
