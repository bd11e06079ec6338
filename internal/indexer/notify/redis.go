package notify

import (
	"context"
	"strconv"
	"time"
)

// HashWriter is satisfied by *redis.Client.
type HashWriter interface {
	SetHash(ctx context.Context, key string, fields map[string]any, ttl time.Duration) error
}

// StatusBoard keeps the latest status of every configuration in a Redis hash
// at index:build:<config>.
type StatusBoard struct {
	store HashWriter
	ttl   time.Duration
}

func NewStatusBoard(store HashWriter, ttl time.Duration) *StatusBoard {
	return &StatusBoard{store: store, ttl: ttl}
}

func StatusKey(config string) string {
	return "index:build:" + config
}

func (s *StatusBoard) Name() string { return "redis" }

func (s *StatusBoard) Notify(ctx context.Context, e Event) error {
	fields := map[string]any{
		"status":      e.Status,
		"output_dir":  e.OutputDir,
		"index_file":  e.IndexFile,
		"tokens":      strconv.Itoa(e.Stats.Tokens),
		"collections": strconv.Itoa(e.Stats.Collections),
		"occurrences": strconv.Itoa(e.Stats.Occurrences),
		"duration_ms": strconv.FormatInt(e.Duration().Milliseconds(), 10),
		"finished_at": e.FinishedAt.UTC().Format(time.RFC3339),
		"error":       e.Error,
	}
	return s.store.SetHash(ctx, StatusKey(e.Config), fields, s.ttl)
}
