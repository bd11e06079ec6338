// Package cmd provides the indexer CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ryanbrate/inverted-index/pkg/config"
	"github.com/ryanbrate/inverted-index/pkg/logger"
)

type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
}

// NewRootCmd builds the command tree. Running it without a subcommand is
// the same as running build.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}
	build := newBuildCmd(opts)

	cmd := &cobra.Command{
		Use:   "indexer",
		Short: "Build token inverted indices over pre-tokenized collections",
		Long: `indexer reads a batch of build configurations and, for each one not yet
built, indexes every collection in its input directory and writes the
resulting inverted index with a snapshot of the configuration.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		RunE: build.RunE,
	}
	cmd.Flags().AddFlagSet(build.Flags())

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "application config file (YAML)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: text or json")

	cmd.AddCommand(build)
	cmd.AddCommand(newConsumeCmd(opts))
	cmd.AddCommand(newInspectCmd(opts))
	return cmd
}

func (o *globalOptions) load() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Logging.Format = o.logFormat
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	o.cfg = cfg
	return nil
}

// Execute runs the CLI, cancelling on SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err := NewRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}
