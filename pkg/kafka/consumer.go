package kafka

import (
	"context"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/ryanbrate/inverted-index/pkg/config"
)

// MessageHandler processes one message. Returning an error leaves the offset
// uncommitted; wrap the error with Skip to commit past a message that can
// never succeed.
type MessageHandler func(ctx context.Context, key, value []byte) error

// ErrSkip marks a message as unprocessable.
var ErrSkip = errors.New("skip message")

// Skip wraps err so the consumer commits the message instead of retrying it.
func Skip(err error) error {
	return errors.Join(ErrSkip, err)
}

type Consumer struct {
	reader  *kafka.Reader
	handler MessageHandler
	logger  *slog.Logger
}

func NewConsumer(cfg config.KafkaConfig, topic string, handler MessageHandler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	return &Consumer{
		reader:  r,
		handler: handler,
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Run fetches and handles messages one at a time until ctx is cancelled.
// A message whose handler fails without ErrSkip is not committed and the
// loop stops, so it is redelivered on the next run.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			return err
		}
		log := c.logger.With("partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			if !errors.Is(err, ErrSkip) {
				log.Error("message handling failed", "error", err)
				return err
			}
			log.Warn("skipping message", "error", err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
