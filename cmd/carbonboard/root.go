package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/omegabytes/carbonboard/config"
	"github.com/omegabytes/carbonboard/ledger"
	"github.com/omegabytes/carbonboard/logger"
	"github.com/omegabytes/carbonboard/provider"
	"github.com/omegabytes/carbonboard/tracker"
	"github.com/omegabytes/carbonboard/ui"
)

const longDescription = "Estimate the carbon footprint of LLM inference calls, keep a per-session ledger of them and compare models."

// defaultSession is the ledger used by the CLI when --session is not given.
const defaultSession = "default"

// app holds the state shared by every command of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	session string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	a := &app{v: v}
	config.SetDefaults(v)

	rootCmd := &cobra.Command{
		Use:           "carbonboard",
		Short:         "Carbon footprint dashboard for LLM inference",
		Long:          longDescription,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.carbonboard.yaml or ./config/carbonboard.yaml)")
	flags.StringVar(&a.session, "session", defaultSession, "session whose ledger is used")
	flags.String("log-level", "", "log level: debug|info|warn|error")
	flags.String("storage", "", "session storage: file|postgres|memory")
	flags.String("storage-dir", "", "directory of the file storage")
	flags.String("dsn", "", "PostgreSQL connection string of the postgres storage")

	cobra.CheckErr(v.BindPFlag("log-level", flags.Lookup("log-level")))
	cobra.CheckErr(v.BindPFlag("storage.driver", flags.Lookup("storage")))
	cobra.CheckErr(v.BindPFlag("storage.dir", flags.Lookup("storage-dir")))
	cobra.CheckErr(v.BindPFlag("storage.dsn", flags.Lookup("dsn")))

	rootCmd.AddCommand(
		newServeCmd(a),
		newEstimateCmd(a),
		newPromptCmd(a),
		newReportCmd(a),
		newResetCmd(a),
		newModelsCmd(a),
	)
	return rootCmd
}

// setup reads the configuration and installs the logger. It runs before every command.
func (a *app) setup(cmd *cobra.Command) error {
	if err := config.BindEnv(a.v); err != nil {
		return err
	}
	used, err := config.ReadInConfig(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger.SetDefault(cmd.ErrOrStderr(), "carbonboard", cmd.Root().Version, cfg.LogLevel)

	if used != "" {
		a.logger.Debug("Using config file", "path", used)
	}
	if err := ledger.ValidateSessionID(a.session); err != nil {
		return fmt.Errorf("--session: %w", err)
	}
	return nil
}

// tracker builds the tracker described by the configuration. The returned function closes
// the session store.
func (a *app) tracker(ctx context.Context) (*tracker.Tracker, func() error, error) {
	model, err := a.cfg.Model(a.logger)
	if err != nil {
		return nil, nil, err
	}
	providers, err := provider.Build(a.cfg.ProviderSettings())
	if err != nil {
		return nil, nil, err
	}
	for _, name := range providers.Disabled() {
		a.logger.Debug("Provider disabled", "provider", name)
	}
	store, closeStore, err := a.cfg.Store(ctx)
	if err != nil {
		return nil, nil, err
	}
	return tracker.New(model, providers, ledger.NewRegistry(store), tracker.WithLogger(a.logger)), closeStore, nil
}

// withTracker runs fn with a tracker and closes its store afterwards.
func (a *app) withTracker(ctx context.Context, fn func(*tracker.Tracker) error) (err error) {
	t, closeStore, err := a.tracker(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeStore(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close store: %w", cerr))
		}
	}()
	return fn(t)
}

func providerModels(reg *provider.Registry) []ui.ProviderModels {
	var out []ui.ProviderModels
	for _, name := range reg.Names() {
		p, err := reg.Lookup(name)
		if err != nil {
			continue
		}
		out = append(out, ui.ProviderModels{Name: name, Available: true, Models: p.Models()})
	}
	for _, name := range reg.Disabled() {
		out = append(out, ui.ProviderModels{Name: name})
	}
	return out
}
