package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ryanbrate/inverted-index/pkg/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "inverted_index.json", cfg.Indexer.IndexFile)
	assert.Equal(t, "config.json", cfg.Indexer.MetadataFile)
	assert.Equal(t, FormatNested, cfg.Indexer.Format)
	assert.False(t, cfg.Kafka.Enabled)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Postgres.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := writeFile(t, "app.yaml", `
indexer:
  format: flat
  lockTimeout: 30s
logging:
  level: debug
redis:
  statusTTL: 1h
`)
	t.Setenv("II_LOGGING_FORMAT", "json")
	t.Setenv("II_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, FormatFlat, cfg.Indexer.Format)
	assert.Equal(t, 30*time.Second, cfg.Indexer.LockTimeout)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, time.Hour, cfg.Redis.StatusTTL)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "index.complete", cfg.Kafka.Topics.IndexComplete)
}

func TestLoad_SegmentFormatFromEnvRenamesIndexFile(t *testing.T) {
	t.Setenv("II_INDEX_FORMAT", "segment")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "inverted_index.spdx", cfg.Indexer.IndexFile)
}

func TestLoad_RejectsUnknownFormat(t *testing.T) {
	path := writeFile(t, "app.yaml", "indexer:\n  format: parquet\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parquet")
	assert.Equal(t, 2, apperrors.ExitCode(err))
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=disable", p.DSN())
}

func TestLoadBatch_JSON(t *testing.T) {
	path := writeFile(t, "inverted_index_configs.json", `[
  {"name": "news", "input_dir": "/data/news", "output_dir": "/out/news", "n_processes": 4, "tokens_of_interest": ["a", "b"]},
  {"name": "all", "input_dir": "/data/all", "output_dir": "/out/all", "n_processes": 1, "tokens_of_interest": [], "note": "kept"}
]`)

	configs, err := LoadBatch(path)
	require.NoError(t, err)
	require.Len(t, configs, 2)

	assert.Equal(t, "news", configs[0].Name)
	assert.Equal(t, "/data/news", configs[0].InputDir)
	assert.Equal(t, 4, configs[0].Processes)
	assert.Equal(t, []string{"a", "b"}, configs[0].TokensOfInterest)
	assert.Empty(t, configs[1].TokensOfInterest)

	snap, err := configs[1].Snapshot()
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(snap, &raw))
	assert.Equal(t, "kept", raw["note"])
	assert.Equal(t, "/data/all", raw["input_dir"])
}

func TestLoadBatch_YAMLAndHomeExpansion(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	path := writeFile(t, "batch.yaml", `
- name: corpus
  input_dir: ~/tokenized
  output_dir: ~/indices/corpus
  n_processes: 2
  tokens_of_interest: []
`)
	configs, err := LoadBatch(path)
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, filepath.Join(home, "tokenized"), configs[0].InputDir)
	assert.Equal(t, filepath.Join(home, "indices/corpus"), configs[0].OutputDir)
	assert.Equal(t, "~/tokenized", configs[0].Raw["input_dir"])
}

func TestLoadBatch_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"not a list", `{"name": "x"}`, "expected a list"},
		{"missing name", `[{"input_dir": "a", "output_dir": "b", "n_processes": 1}]`, "name is required"},
		{"zero processes", `[{"name": "x", "input_dir": "a", "output_dir": "b", "n_processes": 0}]`, "n_processes must be >= 1"},
		{"record not a mapping", `[["x"]]`, "expected a mapping"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "batch.json", tt.content)
			configs, err := LoadBatch(path)
			require.Error(t, err)
			assert.Empty(t, configs)
			assert.True(t, errors.Is(err, apperrors.ErrParse))
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestLoadBatch_KeepsValidRecordsPastInvalidOnes(t *testing.T) {
	path := writeFile(t, "batch.yaml", `
- name: first
  input_dir: /in/a
  output_dir: /out/a
  n_processes: 1
- name: broken
  input_dir: /in/b
  output_dir: /out/b
  n_processes: 0
- [not, a, mapping]
- name: last
  input_dir: /in/c
  output_dir: /out/c
  n_processes: 2
`)
	configs, err := LoadBatch(path)
	require.Len(t, configs, 2)
	assert.Equal(t, "first", configs[0].Name)
	assert.Equal(t, "last", configs[1].Name)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig))
	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	require.Len(t, joined.Unwrap(), 2)

	var ie *apperrors.IndexError
	require.True(t, errors.As(joined.Unwrap()[0], &ie))
	assert.Equal(t, "broken", ie.Config)
	assert.Contains(t, ie.Error(), "record 1")
	assert.Contains(t, joined.Unwrap()[1].Error(), "record 2")
}

func TestLoadBatch_QuotedProcessCount(t *testing.T) {
	path := writeFile(t, "batch.json", `[
		{"name": "quoted", "input_dir": "/in", "output_dir": "/out", "n_processes": "4"},
		{"name": "padded", "input_dir": "/in", "output_dir": "/out2", "n_processes": " 2 "},
		{"name": "words", "input_dir": "/in", "output_dir": "/out3", "n_processes": "four"}
	]`)
	configs, err := LoadBatch(path)
	require.Len(t, configs, 2)
	assert.Equal(t, 4, configs[0].Processes)
	assert.Equal(t, 2, configs[1].Processes)
	assert.Equal(t, "4", configs[0].Raw["n_processes"], "snapshot keeps the value as written")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "config=words")
}

func TestLoadBatch_MissingFileIsIOError(t *testing.T) {
	_, err := LoadBatch(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrIO))
}

func TestParseBuildConfig(t *testing.T) {
	bc, err := ParseBuildConfig([]byte(`{"name": "req", "input_dir": "/in", "output_dir": "/out", "n_processes": 3, "tokens_of_interest": ["x"]}`))
	require.NoError(t, err)
	assert.Equal(t, "req", bc.Name)
	assert.Equal(t, 3, bc.Processes)

	_, err = ParseBuildConfig([]byte(`{"name": "req"}`))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidConfig))
}
