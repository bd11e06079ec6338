// Package config loads the application configuration from YAML files with
// environment-variable overrides, and the batch of build configurations the
// indexer processes.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/ryanbrate/inverted-index/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Indexer  IndexerConfig  `yaml:"indexer"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// IndexerConfig controls where batches are read from and how built indices
// are laid out on disk.
type IndexerConfig struct {
	BatchFile    string        `yaml:"batchFile"`
	MetadataFile string        `yaml:"metadataFile"`
	IndexFile    string        `yaml:"indexFile"`
	Format       string        `yaml:"format"`
	LockTimeout  time.Duration `yaml:"lockTimeout"`
}

// Index output formats.
const (
	FormatNested  = "nested"
	FormatFlat    = "flat"
	FormatSegment = "segment"
)

// PostgresConfig holds connection parameters for the build catalog.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	BuildRequests string `yaml:"buildRequests"`
	IndexComplete string `yaml:"indexComplete"`
}

// RedisConfig holds Redis connection parameters for the build status board.
type RedisConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"poolSize"`
	StatusTTL time.Duration `yaml:"statusTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrIO, path, err, "reading config file")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidConfig, path, err, "parsing config file")
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Indexer.validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidConfig, path, err, "validating config")
	}
	return cfg, nil
}

func (c IndexerConfig) validate() error {
	switch c.Format {
	case FormatNested, FormatFlat, FormatSegment:
	default:
		return fmt.Errorf("unknown index format %q (want %s, %s or %s)", c.Format, FormatNested, FormatFlat, FormatSegment)
	}
	if c.IndexFile == "" || c.MetadataFile == "" {
		return fmt.Errorf("indexFile and metadataFile must be set")
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Indexer: DefaultIndexerConfig(),
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "invertedindex",
			User:            "invertedindex",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "inverted-index",
			Topics: KafkaTopics{
				BuildRequests: "index.build-requests",
				IndexComplete: "index.complete",
			},
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			PoolSize:  4,
			StatusTTL: 7 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// DefaultIndexerConfig returns the default on-disk layout: a nested JSON
// inverted_index.json plus a config.json snapshot in each output directory.
func DefaultIndexerConfig() IndexerConfig {
	return IndexerConfig{
		BatchFile:    "inverted_index_configs.json",
		MetadataFile: "config.json",
		IndexFile:    "inverted_index.json",
		Format:       FormatNested,
		LockTimeout:  0,
	}
}

// applyEnvOverrides reads II_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("II_BATCH_FILE"); v != "" {
		cfg.Indexer.BatchFile = v
	}
	if v := os.Getenv("II_INDEX_FORMAT"); v != "" {
		cfg.Indexer.Format = v
		if v == FormatSegment && cfg.Indexer.IndexFile == DefaultIndexerConfig().IndexFile {
			cfg.Indexer.IndexFile = "inverted_index.spdx"
		}
	}
	if v := os.Getenv("II_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("II_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("II_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Enabled = true
			cfg.Metrics.Port = port
		}
	}
	if v := os.Getenv("II_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Enabled = true
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("II_REDIS_ADDR"); v != "" {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("II_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("II_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Enabled = true
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("II_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("II_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("II_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("II_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("II_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
}
