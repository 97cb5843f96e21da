// Package cmd defines and implements the CLI commands for the pressharvest
// executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pressharvest/internal/config"
	"pressharvest/internal/logging"
)

var (
	cfgFile   string
	startDate string
	endDate   string
)

// appKeyType is the key for storing the app in the context.
type appKeyType string

const appKey appKeyType = "app"

// app bundles the services every subcommand needs.
type app struct {
	cfg    config.Config
	logger *zap.Logger
}

func (a *app) Close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// newApp is the application factory. It's a variable so tests can replace
// it with a factory returning canned config and a no-op logger.
var newApp = func(_ context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func resolveApp(ctx context.Context) (*app, error) {
	a, ok := ctx.Value(appKey).(*app)
	if !ok || a == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return a, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pressharvest",
		Short: "Acquire and normalize press-database articles",
		Long: `pressharvest turns a saved press-database results page into a clean
dataset. It discovers document keys from the page, downloads every article
in resumable parallel batches using an exported browser session, and
consolidates the raw pages into one normalized table.`,

		SilenceUsage:  true,
		SilenceErrors: true,

		// Runs before every subcommand's RunE: build and inject services.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			if startDate != "" {
				a.cfg.Search.StartDate = startDate
			}
			if endDate != "" {
				a.cfg.Search.EndDate = endDate
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey).(*app); ok && a != nil {
				a.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML; defaults come from flags and PRESSHARVEST_* env vars)")
	cmd.PersistentFlags().StringVar(&startDate, "start-date", "", "search window start (YYYY-MM-DD), overrides config")
	cmd.PersistentFlags().StringVar(&endDate, "end-date", "", "search window end (YYYY-MM-DD), overrides config")

	cmd.AddCommand(newKeysCmd())
	cmd.AddCommand(newHarvestCmd())
	cmd.AddCommand(newExportCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
