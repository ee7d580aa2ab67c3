package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/david/issue-hunter/internal/apperrors"
	"github.com/david/issue-hunter/internal/config"
	"github.com/david/issue-hunter/internal/logger"
)

var version = "dev"

var (
	cfgFile string
	dryRun  bool
	debug   bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if apperrors.Is(err, apperrors.CodeConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hunter",
		Short:         "Find paid GitHub issues, assess them and reply with a quote",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml or ./config.yaml)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	root.AddCommand(newRunCmd(), newQuoteCmd(), &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hunter version %s\n", version)
		},
	})
	return root
}

// loadConfig reads configuration and applies command line overrides.
func loadConfig(cmd *cobra.Command, overrides ...config.Option) (*config.Config, logger.Logger, error) {
	if f := cmd.Flags().Lookup("dry-run"); f != nil && f.Changed {
		overrides = append(overrides, config.WithOverride("agent.dry_run", dryRun))
	}
	if debug {
		overrides = append(overrides, config.WithOverride("log.level", "debug"))
	}

	cfg, err := config.Load(cfgFile, overrides...)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, errors.Join(apperrors.NewConfigurationError("log", err.Error()), err)
	}
	return cfg, log, nil
}
