package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"finance/internal/amqp"
	"finance/internal/backend"
	"finance/internal/cli"
	"finance/internal/config"
	"finance/internal/log"
	"finance/internal/services"
)

// app holds what a subcommand needs once the root command has loaded the
// ledger.
type app struct {
	envFile string
	user    string
	verbose bool

	cfg       *config.Config
	backend   *backend.BackendResult
	publisher *amqp.Client
	svc       *services.FinanceService
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:           "financectl",
		Short:         "Personal finance ledger",
		Long:          `Inspect and edit a finance ledger directly, without the HTTP server.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd.Context())
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return a.close()
		},
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "environment file to load before reading configuration")
	rootCmd.PersistentFlags().StringVarP(&a.user, "user", "u", "", "ledger owner (overrides USER_NAME)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log to stderr")

	rootCmd.AddCommand(
		newListCmd(a),
		newAddCmd(a),
		newDeleteCmd(a),
		newTotalsCmd(a),
		newSumCmd(a),
		newMonthsCmd(a),
	)
	return rootCmd
}

func (a *app) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := cli.LoadEnvFile(a.envFile); err != nil {
		return err
	}
	cfg := config.Load()
	if a.user != "" {
		cfg.UserName = a.user
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logger := log.Discard()
	if a.verbose {
		lc := log.DefaultConfig()
		lc.Component = log.ComponentCLI
		lc.Level = log.ParseLevel(cfg.LogLevel)
		lc.Format = cfg.LogFormat
		lc.Output = os.Stderr
		logger = log.New(lc)
	}

	res, err := cli.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.DataBackend, err)
	}
	a.backend = res

	publisher, err := cli.NewPublisher(cfg, logger)
	if err != nil {
		return err
	}
	a.publisher = publisher

	svc, err := cli.NewService(ctx, cfg, res, publisher, logger)
	if err != nil {
		return err
	}
	a.svc = svc
	return nil
}

func (a *app) close() error {
	if a.publisher != nil {
		a.publisher.Close()
	}
	return a.backend.Close()
}
