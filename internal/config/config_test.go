package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestResolve_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = "/var/lib/growlog"
	cfg.Resolve()

	want := filepath.Join("/var/lib/growlog", "logs", "events.db")
	if cfg.Events.DBPath != want {
		t.Errorf("db path = %s, want %s", cfg.Events.DBPath, want)
	}
	if cfg.Writer.FallbackPath != want+".fallback.ndjson" {
		t.Errorf("fallback path = %s, want %s", cfg.Writer.FallbackPath, want+".fallback.ndjson")
	}
}

func TestResolve_ExplicitPathsKept(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Events.DBPath = "/tmp/custom.db"
	cfg.Resolve()

	if cfg.Events.DBPath != "/tmp/custom.db" {
		t.Errorf("explicit db path was overridden: %s", cfg.Events.DBPath)
	}
	if cfg.Writer.FallbackPath != "/tmp/custom.db.fallback.ndjson" {
		t.Errorf("fallback path = %s", cfg.Writer.FallbackPath)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty data_dir", func(c *Config) { c.DataDir = "" }},
		{"negative busy timeout", func(c *Config) { c.Events.BusyTimeoutMS = -1 }},
		{"zero read pool", func(c *Config) { c.Events.ReadPoolSize = 0 }},
		{"zero batch size", func(c *Config) { c.Writer.BatchSize = 0 }},
		{"queue smaller than batch", func(c *Config) { c.Writer.QueueSize = 10; c.Writer.BatchSize = 20 }},
		{"zero flush interval", func(c *Config) { c.Writer.FlushInterval = 0 }},
	}

	for _, tt := range tests {
		cfg := DefaultConfig()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
data_dir: /srv/growlog
events:
  busy_timeout_ms: 2500
  read_pool_size: 8
writer:
  batch_size: 25
  flush_interval: 500ms
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.DataDir != "/srv/growlog" {
		t.Errorf("data_dir = %s", cfg.DataDir)
	}
	if cfg.Events.BusyTimeoutMS != 2500 || cfg.Events.ReadPoolSize != 8 {
		t.Errorf("events config = %+v", cfg.Events)
	}
	if cfg.Writer.BatchSize != 25 || cfg.Writer.FlushInterval != 500*time.Millisecond {
		t.Errorf("writer config = %+v", cfg.Writer)
	}
	// Unset fields keep their defaults.
	if cfg.Writer.QueueSize != 5000 {
		t.Errorf("queue_size = %d, want default 5000", cfg.Writer.QueueSize)
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"data_dir": "/srv/growlog", "writer": {"batch_size": 10}}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.DataDir != "/srv/growlog" || cfg.Writer.BatchSize != 10 {
		t.Errorf("config = %+v", cfg)
	}
}

func TestLoadFromFile_UnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GROWLOG_DATA_DIR", "/env/growlog")
	t.Setenv("GROWLOG_EVENTS_BUSY_TIMEOUT_MS", "1234")
	t.Setenv("GROWLOG_WRITER_BATCH_SIZE", "77")
	t.Setenv("GROWLOG_WRITER_FLUSH_INTERVAL", "2s")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	if cfg.DataDir != "/env/growlog" {
		t.Errorf("data_dir = %s", cfg.DataDir)
	}
	if cfg.Events.BusyTimeoutMS != 1234 {
		t.Errorf("busy_timeout_ms = %d", cfg.Events.BusyTimeoutMS)
	}
	if cfg.Writer.BatchSize != 77 {
		t.Errorf("batch_size = %d", cfg.Writer.BatchSize)
	}
	if cfg.Writer.FlushInterval != 2*time.Second {
		t.Errorf("flush_interval = %s", cfg.Writer.FlushInterval)
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(t.TempDir(), "nested", "growlog")
	cfg.Resolve()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("failed to ensure directories: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(cfg.EventsDBPath())); err != nil {
		t.Errorf("db directory was not created: %v", err)
	}
}
