// ABOUTME: Configuration loading for callbridge from YAML, .env files and CALLBRIDGE_* variables
// ABOUTME: Defaults live under the XDG config, data and cache directories
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppName names the XDG subdirectories.
const AppName = "callbridge"

// Config is the complete callbridge configuration.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Database   DatabaseConfig   `yaml:"database"`
	Cache      CacheConfig      `yaml:"cache"`
	Processors ProcessorsConfig `yaml:"processors"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Handlers   HandlersConfig   `yaml:"handlers"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"CALLBRIDGE_LOG_LEVEL"`
	// Format is json or text.
	Format string `yaml:"format" env:"CALLBRIDGE_LOG_FORMAT"`
}

type DatabaseConfig struct {
	// Path is the SQLite database holding users, proxies and the local CRM.
	Path string `yaml:"path" env:"CALLBRIDGE_DB_PATH"`
	// PostgresDSN moves the call and message log mappings to PostgreSQL when set.
	PostgresDSN    string `yaml:"postgres_dsn" env:"CALLBRIDGE_POSTGRES_DSN"`
	PostgresSchema string `yaml:"postgres_schema" env:"CALLBRIDGE_POSTGRES_SCHEMA"`
}

type CacheConfig struct {
	Dir      string        `yaml:"dir" env:"CALLBRIDGE_CACHE_DIR"`
	InMemory bool          `yaml:"in_memory" env:"CALLBRIDGE_CACHE_IN_MEMORY"`
	NoteTTL  time.Duration `yaml:"note_ttl" env:"CALLBRIDGE_NOTE_TTL"`
}

type ProcessorsConfig struct {
	// NATSURL selects the NATS queue for async processors; empty uses the in-process queue.
	NATSURL    string `yaml:"nats_url" env:"CALLBRIDGE_NATS_URL"`
	Subject    string `yaml:"subject" env:"CALLBRIDGE_NATS_SUBJECT"`
	QueueGroup string `yaml:"queue_group" env:"CALLBRIDGE_NATS_QUEUE_GROUP"`
	QueueSize  int    `yaml:"queue_size" env:"CALLBRIDGE_PROCESSOR_QUEUE_SIZE"`
	Workers    int    `yaml:"workers" env:"CALLBRIDGE_PROCESSOR_WORKERS"`
	MaxRetries uint64 `yaml:"max_retries" env:"CALLBRIDGE_PROCESSOR_MAX_RETRIES"`
}

type MetricsConfig struct {
	// Addr is the listen address of the /metrics endpoint; empty disables it.
	Addr string `yaml:"addr" env:"CALLBRIDGE_METRICS_ADDR"`
}

type HandlersConfig struct {
	CacheFirstNote bool   `yaml:"cache_first_note" env:"CALLBRIDGE_CACHE_FIRST_NOTE"`
	MediaReaderURL string `yaml:"media_reader_url" env:"CALLBRIDGE_MEDIA_READER_URL"`
}

// DefaultPath returns the config file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{
			Path:           filepath.Join(xdg.DataHome, AppName, "callbridge.db"),
			PostgresSchema: "callbridge",
		},
		Cache: CacheConfig{
			Dir:     filepath.Join(xdg.CacheHome, AppName, "kv"),
			NoteTTL: 6 * time.Hour,
		},
		Processors: ProcessorsConfig{
			Subject:    "callbridge.processors",
			QueueGroup: "callbridge-workers",
			QueueSize:  64,
			Workers:    2,
			MaxRetries: 3,
		},
		Handlers: HandlersConfig{
			MediaReaderURL: "https://ringcentral.github.io/ringcentral-media-reader/",
		},
	}
}

// Load reads path (DefaultPath when empty) over the defaults, then applies a
// .env file from the working directory and CALLBRIDGE_* variables. A missing
// config file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv sets variables from path without overriding the environment.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if !c.Cache.InMemory && c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required unless cache.in_memory is set")
	}
	if c.Cache.NoteTTL <= 0 {
		return fmt.Errorf("cache.note_ttl must be positive")
	}
	if c.Processors.Workers <= 0 || c.Processors.QueueSize <= 0 {
		return fmt.Errorf("processors.workers and processors.queue_size must be positive")
	}
	if c.Processors.NATSURL != "" && c.Processors.Subject == "" {
		return fmt.Errorf("processors.subject is required with processors.nats_url")
	}
	if c.Handlers.MediaReaderURL != "" {
		u, err := url.Parse(c.Handlers.MediaReaderURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("handlers.media_reader_url must be an absolute url")
		}
	}
	return nil
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
