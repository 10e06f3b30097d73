package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"carlog/internal/app"
	"carlog/internal/backend"
	"carlog/internal/cli"
	"carlog/internal/config"
	applog "carlog/internal/log"
)

type rootOptions struct {
	backend string
	verbose bool
}

func newRootCmd() *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:           "carlog-cli",
		Short:         "Vehicle log reports",
		Long:          `Reports fuel consumption and spending from the configured record store and copies records between stores.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.LoadEnvFile()
		},
	}
	root.PersistentFlags().StringVar(&o.backend, "backend", "", "record store to read (memory, sheets, sqlite); defaults to DATA_BACKEND")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "log store activity to stderr")

	root.AddCommand(newFuelCmd(o), newSpendingCmd(o), newRecordsCmd(o), newCopyCmd(o))
	return root
}

// loadConfig reads the environment, applies the --backend override and
// validates the result.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if o.backend != "" {
		cfg.DataBackend = o.backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// logger writes to stderr so reports on stdout stay clean.
func (o *rootOptions) logger(cfg *config.Config, stderr io.Writer) *applog.Logger {
	lc := applog.Config{Level: slog.LevelWarn, Format: cfg.LogFormat, Component: applog.ComponentCLI, Output: stderr}
	if o.verbose {
		lc.Level = slog.LevelDebug
	}
	return applog.New(lc)
}

// openBackend creates the store of type t without commit publishing.
func openBackend(ctx context.Context, cfg *config.Config, t backend.BackendType, logger *applog.Logger) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	factory := backend.NewFactory(logger.Slog())
	factory.PublishCommits = false
	return factory.CreateBackend(ctx, bcfg.WithType(t))
}

// loadState opens the configured store and loads its records.
func (o *rootOptions) loadState(cmd *cobra.Command) (*app.State, func(), error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := o.logger(cfg, cmd.ErrOrStderr())
	res, err := openBackend(cmd.Context(), cfg, backend.BackendType(cfg.DataBackend), logger)
	if err != nil {
		return nil, nil, err
	}
	state := app.New(app.Config{
		Store:     res.Store,
		StoreName: res.Type.String(),
		Fuel:      cfg.FuelOptions(),
		Logger:    logger.Slog(),
	})
	closeFn := func() {
		if err := res.Close(); err != nil {
			logger.Warn("Backend cleanup failed", applog.FieldError, err)
		}
	}
	if err := state.Reload(cmd.Context()); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("load records: %w", err)
	}
	return state, closeFn, nil
}
