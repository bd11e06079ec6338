// Package consumer turns build-request messages into builds. Each message
// carries one build configuration record in the same shape as a batch file
// entry.
package consumer

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"syscall"

	"github.com/ryanbrate/inverted-index/internal/indexer"
	"github.com/ryanbrate/inverted-index/pkg/config"
	apperrors "github.com/ryanbrate/inverted-index/pkg/errors"
	"github.com/ryanbrate/inverted-index/pkg/kafka"
)

// Processor is satisfied by *indexer.Builder.
type Processor interface {
	Process(ctx context.Context, bc config.BuildConfig) (indexer.Outcome, error)
}

// HandleBuildRequest returns a kafka.MessageHandler that builds the
// configuration carried by each message. Malformed requests, builds that
// fail on their input, and IO failures on paths that do not exist or cannot
// be accessed are skipped. Any other IO failure leaves the message
// uncommitted so it is retried.
func HandleBuildRequest(p Processor) kafka.MessageHandler {
	logger := slog.Default().With("component", "build-consumer")
	return func(ctx context.Context, key, value []byte) error {
		bc, err := config.ParseBuildConfig(value)
		if err != nil {
			return kafka.Skip(err)
		}
		logger.Info("build requested", "config", bc.Name, "key", string(key))
		outcome, err := p.Process(ctx, bc)
		if err != nil {
			if retryable(err) {
				return err
			}
			logger.Warn("dropping build request", "config", bc.Name, "error", err)
			return kafka.Skip(err)
		}
		logger.Info("build request handled", "config", bc.Name, "outcome", outcome.String())
		return nil
	}
}

// retryable reports whether redelivering the request could succeed: an IO
// failure that is not about a missing, inaccessible or mistyped path.
func retryable(err error) bool {
	if !errors.Is(err, apperrors.ErrIO) {
		return false
	}
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission), errors.Is(err, syscall.ENOTDIR):
		return false
	}
	return true
}
