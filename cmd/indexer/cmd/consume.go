package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ryanbrate/inverted-index/internal/indexer/consumer"
	"github.com/ryanbrate/inverted-index/pkg/kafka"
	"github.com/ryanbrate/inverted-index/pkg/logger"
)

func newConsumeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Build configurations received as Kafka build requests",
		Long: `Consume reads build configurations, one per message, from the
kafka.topics.buildRequests topic and builds each as it arrives. It runs
until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if !cfg.Kafka.Enabled {
				return fmt.Errorf("consume needs kafka: set kafka.enabled or II_KAFKA_BROKERS")
			}
			ctx := cmd.Context()
			rt := newRuntime(ctx, cfg)
			defer rt.Close()
			rt.checker.Require("kafka", func(ctx context.Context) error {
				return kafka.Ping(ctx, cfg.Kafka.Brokers)
			})

			topic := cfg.Kafka.Topics.BuildRequests
			logger.WithComponent("cli").Info("consuming build requests",
				"topic", topic,
				"group", cfg.Kafka.ConsumerGroup,
			)
			c := kafka.NewConsumer(cfg.Kafka, topic, consumer.HandleBuildRequest(rt.builder))
			return c.Run(ctx)
		},
	}
}
