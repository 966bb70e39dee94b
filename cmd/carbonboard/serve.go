package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/omegabytes/carbonboard/api"
	"github.com/omegabytes/carbonboard/tracker"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return a.withTracker(ctx, func(t *tracker.Tracker) error {
				srv := api.NewServer(t, api.WithLogger(a.logger))
				return srv.ListenAndServe(ctx, a.cfg.Server.Addr)
			})
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8080)")
	cobra.CheckErr(a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr")))
	return cmd
}
