package notify

import (
	"context"
	"database/sql"
	"fmt"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const createBuildsTable = `
CREATE TABLE IF NOT EXISTS index_builds (
	config       TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	input_dir    TEXT NOT NULL,
	output_dir   TEXT NOT NULL,
	index_file   TEXT NOT NULL DEFAULT '',
	format       TEXT NOT NULL DEFAULT '',
	tokens       INTEGER NOT NULL DEFAULT 0,
	collections  INTEGER NOT NULL DEFAULT 0,
	occurrences  BIGINT NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL
)`

const upsertBuild = `
INSERT INTO index_builds
	(config, status, input_dir, output_dir, index_file, format, tokens, collections, occurrences, error, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (config) DO UPDATE SET
	status = EXCLUDED.status,
	input_dir = EXCLUDED.input_dir,
	output_dir = EXCLUDED.output_dir,
	index_file = EXCLUDED.index_file,
	format = EXCLUDED.format,
	tokens = EXCLUDED.tokens,
	collections = EXCLUDED.collections,
	occurrences = EXCLUDED.occurrences,
	error = EXCLUDED.error,
	started_at = EXCLUDED.started_at,
	finished_at = EXCLUDED.finished_at`

// Catalog records the latest build of every configuration in the
// index_builds table.
type Catalog struct {
	db Execer
}

func NewCatalog(db Execer) *Catalog {
	return &Catalog{db: db}
}

// EnsureSchema creates the index_builds table if it is missing.
func (c *Catalog) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, createBuildsTable); err != nil {
		return fmt.Errorf("creating index_builds table: %w", err)
	}
	return nil
}

func (c *Catalog) Name() string { return "postgres" }

func (c *Catalog) Notify(ctx context.Context, e Event) error {
	_, err := c.db.ExecContext(ctx, upsertBuild,
		e.Config, e.Status, e.InputDir, e.OutputDir, e.IndexFile, e.Format,
		e.Stats.Tokens, e.Stats.Collections, e.Stats.Occurrences, e.Error,
		e.StartedAt, e.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("recording build %s: %w", e.Config, err)
	}
	return nil
}
