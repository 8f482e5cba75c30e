// Package config provides configuration for the Growlog event store.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration for the event store and its batch writer.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// Events holds event store configuration
	Events EventsConfig `json:"events" yaml:"events"`

	// Writer holds batch writer configuration
	Writer WriterConfig `json:"writer" yaml:"writer"`
}

// EventsConfig holds event store configuration.
type EventsConfig struct {
	// DBPath is the path to the events database file.
	// Defaults to <data_dir>/logs/events.db.
	DBPath string `json:"db_path" yaml:"db_path"`

	// BusyTimeoutMS is the SQLite busy timeout in milliseconds. A writer or
	// reader that cannot obtain its lock within this window fails with a
	// retryable lock-timeout error instead of blocking indefinitely.
	BusyTimeoutMS int `json:"busy_timeout_ms" yaml:"busy_timeout_ms"`

	// ReadPoolSize is the number of concurrent read connections
	ReadPoolSize int `json:"read_pool_size" yaml:"read_pool_size"`
}

// WriterConfig holds batch writer configuration.
type WriterConfig struct {
	// QueueSize is the capacity of the in-memory event queue. When the queue
	// is full the oldest queued event is dropped to admit the newest.
	QueueSize int `json:"queue_size" yaml:"queue_size"`

	// BatchSize is the number of queued events that triggers a flush
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// FlushInterval is the maximum time between flushes
	FlushInterval time.Duration `json:"flush_interval" yaml:"flush_interval"`

	// FallbackPath is the NDJSON file recording flush failures.
	// Defaults to <db_path>.fallback.ndjson.
	FallbackPath string `json:"fallback_path" yaml:"fallback_path"`
}

// DefaultConfig returns the default configuration for local development.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data/growlog",
		Events: EventsConfig{
			DBPath:        "",
			BusyTimeoutMS: 5000,
			ReadPoolSize:  4,
		},
		Writer: WriterConfig{
			QueueSize:     5000,
			BatchSize:     50,
			FlushInterval: 250 * time.Millisecond,
			FallbackPath:  "",
		},
	}
}

// Resolve resolves relative paths and sets defaults based on DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/growlog"
	}

	if c.Events.DBPath == "" {
		c.Events.DBPath = filepath.Join(c.DataDir, "logs", "events.db")
	}

	if c.Writer.FallbackPath == "" {
		c.Writer.FallbackPath = c.Events.DBPath + ".fallback.ndjson"
	}
}

// EventsDBPath returns the path to the events database.
func (c *Config) EventsDBPath() string {
	if c.Events.DBPath != "" {
		return c.Events.DBPath
	}
	return filepath.Join(c.DataDir, "logs", "events.db")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	if c.Events.BusyTimeoutMS < 0 {
		return fmt.Errorf("events.busy_timeout_ms must not be negative, got %d", c.Events.BusyTimeoutMS)
	}

	if c.Events.ReadPoolSize < 1 || c.Events.ReadPoolSize > 64 {
		return fmt.Errorf("events.read_pool_size must be between 1 and 64, got %d", c.Events.ReadPoolSize)
	}

	if c.Writer.BatchSize < 1 {
		return fmt.Errorf("writer.batch_size must be at least 1, got %d", c.Writer.BatchSize)
	}

	if c.Writer.QueueSize < c.Writer.BatchSize {
		return fmt.Errorf("writer.queue_size (%d) must be at least writer.batch_size (%d)", c.Writer.QueueSize, c.Writer.BatchSize)
	}

	if c.Writer.FlushInterval <= 0 {
		return fmt.Errorf("writer.flush_interval must be positive, got %s", c.Writer.FlushInterval)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the GROWLOG_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("GROWLOG_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("GROWLOG_EVENTS_DB_PATH"); v != "" {
		cfg.Events.DBPath = v
	}
	if v := os.Getenv("GROWLOG_EVENTS_BUSY_TIMEOUT_MS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Events.BusyTimeoutMS)
	}
	if v := os.Getenv("GROWLOG_EVENTS_READ_POOL_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Events.ReadPoolSize)
	}
	if v := os.Getenv("GROWLOG_WRITER_QUEUE_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Writer.QueueSize)
	}
	if v := os.Getenv("GROWLOG_WRITER_BATCH_SIZE"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Writer.BatchSize)
	}
	if v := os.Getenv("GROWLOG_WRITER_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Writer.FlushInterval = d
		}
	}
	if v := os.Getenv("GROWLOG_WRITER_FALLBACK_PATH"); v != "" {
		cfg.Writer.FallbackPath = v
	}
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		filepath.Dir(c.EventsDBPath()),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
