// Package config loads evshift settings from ~/.evshift/config.yaml with
// environment overrides. A default file is written on first use.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// AppDir is the directory under the user's home holding config and data
	AppDir = ".evshift"

	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

const defaultConfigYAML = `# evshift configuration

store:
  # sqlite (embedded, default) or mongo
  driver: sqlite
  # empty means ~/.evshift/evshift.db; ":memory:" keeps everything in RAM
  path: ""
  mongo_uri: mongodb://localhost:27017
  mongo_database: evshift
  timeout: 5s

reconciler:
  # delay between the end of one pass and the start of the next
  interval: 60s
  workers: 4

http:
  enabled: true
  addr: 127.0.0.1:8088

logging:
  level: info
  # json or console
  format: json
`

// StoreConfig selects and tunes the shift store backend.
type StoreConfig struct {
	Driver        string        `yaml:"driver"`
	Path          string        `yaml:"path"`
	MongoURI      string        `yaml:"mongo_uri"`
	MongoDatabase string        `yaml:"mongo_database"`
	Timeout       time.Duration `yaml:"timeout"`
}

// ReconcilerConfig controls the periodic reconciliation loop.
type ReconcilerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Workers  int           `yaml:"workers"`
}

// HTTPConfig controls the admin HTTP surface started by `evshift serve`.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config models ~/.evshift/config.yaml.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Reconciler ReconcilerConfig `yaml:"reconciler"`
	HTTP       HTTPConfig       `yaml:"http"`
	Logging    LoggingConfig    `yaml:"logging"`

	// path the config was loaded from, empty for pure defaults
	path string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:        DriverSQLite,
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "evshift",
			Timeout:       5 * time.Second,
		},
		Reconciler: ReconcilerConfig{
			Interval: 60 * time.Second,
			Workers:  4,
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8088",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Dir returns ~/.evshift
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, AppDir), nil
}

// DefaultPath returns ~/.evshift/config.yaml
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config at path, creating it with defaults when missing.
// An empty path means DefaultPath. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("config: resolve path: %w", err)
		}
		path = p
	}

	if err := ensureConfigFile(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.path = path

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Path returns the file this config was read from.
func (c *Config) Path() string {
	return c.path
}

// ApplyEnv overrides fields from EVSHIFT_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("EVSHIFT_DB_DRIVER"); ok {
		c.Store.Driver = v
	}
	if v, ok := lookup("EVSHIFT_DB_PATH"); ok {
		c.Store.Path = v
	}
	if v, ok := lookup("EVSHIFT_MONGO_URI"); ok {
		c.Store.MongoURI = v
	}
	if v, ok := lookup("EVSHIFT_MONGO_DATABASE"); ok {
		c.Store.MongoDatabase = v
	}
	if v, ok := lookup("EVSHIFT_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: EVSHIFT_INTERVAL: %w", err)
		}
		c.Reconciler.Interval = d
	}
	if v, ok := lookup("EVSHIFT_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: EVSHIFT_WORKERS: %w", err)
		}
		c.Reconciler.Workers = n
	}
	if v, ok := lookup("EVSHIFT_HTTP_ADDR"); ok {
		c.HTTP.Addr = v
	}
	if v, ok := lookup("EVSHIFT_LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	return nil
}

func (c *Config) normalize() error {
	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	if c.Store.Driver == DriverSQLite && strings.TrimSpace(c.Store.Path) == "" {
		dir, err := Dir()
		if err != nil {
			return fmt.Errorf("config: resolve data dir: %w", err)
		}
		c.Store.Path = filepath.Join(dir, "evshift.db")
	}
	return nil
}

// Validate checks the values the rest of the program relies on.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
	case DriverMongo:
		if c.Store.MongoURI == "" || c.Store.MongoDatabase == "" {
			return fmt.Errorf("store: mongo_uri and mongo_database are required for the mongo driver")
		}
	default:
		return fmt.Errorf("store: driver must be %q or %q, got %q", DriverSQLite, DriverMongo, c.Store.Driver)
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("store: timeout must be positive")
	}
	if c.Reconciler.Interval <= 0 {
		return fmt.Errorf("reconciler: interval must be positive")
	}
	if c.Reconciler.Workers < 1 {
		return fmt.Errorf("reconciler: workers must be >= 1")
	}
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		return fmt.Errorf("http: addr is required when enabled")
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging: format must be json or console")
	}
	return nil
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("config: write default %s: %w", path, err)
	}
	return nil
}
