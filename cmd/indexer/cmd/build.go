package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ryanbrate/inverted-index/pkg/config"
	"github.com/ryanbrate/inverted-index/pkg/lock"
	"github.com/ryanbrate/inverted-index/pkg/logger"
)

func newBuildCmd(opts *globalOptions) *cobra.Command {
	var batchFile string

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build every configuration in a batch file",
		Long: `Build reads the batch file (a JSON or YAML list of configurations with
name, input_dir, output_dir, n_processes and tokens_of_interest) and builds
each configuration in turn. Configurations whose output directory already
exists are skipped. A failing configuration does not stop the others.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if batchFile != "" {
				cfg.Indexer.BatchFile = batchFile
			}
			return runBuild(cmd, cfg)
		},
	}
	cmd.Flags().StringVar(&batchFile, "batch", "", "batch file (default from config: inverted_index_configs.json)")
	return cmd
}

func runBuild(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	log := logger.WithComponent("cli")

	l := lock.ForFile(cfg.Indexer.BatchFile)
	if err := l.Acquire(ctx, cfg.Indexer.LockTimeout); err != nil {
		return err
	}
	defer l.Unlock()

	batch, loadErr := config.LoadBatch(cfg.Indexer.BatchFile)
	if loadErr != nil && batch == nil {
		return loadErr
	}
	for _, err := range unjoin(loadErr) {
		log.Error("skipping invalid configuration", "batch_file", cfg.Indexer.BatchFile, "error", err)
	}
	log.Info("batch loaded", "batch_file", cfg.Indexer.BatchFile, "configs", len(batch))

	rt := newRuntime(ctx, cfg)
	defer rt.Close()
	return errors.Join(loadErr, rt.builder.ProcessBatch(ctx, batch))
}

// unjoin splits the per-record errors LoadBatch joins together.
func unjoin(err error) []error {
	if err == nil {
		return nil
	}
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
