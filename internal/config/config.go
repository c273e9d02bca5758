// Package config loads walksim settings from defaults, a YAML file, a .env
// file and the process environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/MJE43/lattice-walk-go/internal/engine"
	"github.com/MJE43/lattice-walk-go/internal/sampling"
	"github.com/MJE43/lattice-walk-go/internal/sweep"
	"github.com/MJE43/lattice-walk-go/internal/walks"
)

// DefaultPath is the config file read when none is given.
const DefaultPath = "walksim.yaml"

// Config holds all walksim configuration.
type Config struct {
	// Sampling
	Samples              int              `yaml:"samples"`
	Workers              int              `yaml:"workers"` // 0 = GOMAXPROCS
	ChunkSize            int              `yaml:"chunk_size"`
	MaxSelfAvoidingSteps int              `yaml:"max_selfavoiding_steps"`
	Sweep                sweep.Definition `yaml:"sweep"`
	Seeds                engine.Seeds     `yaml:"seeds"` // empty = fresh entropy per run

	// Output
	Precision int `yaml:"precision"` // -1 = shortest round-trip

	Logging LoggingConfig `yaml:"logging"`
	Store   StoreConfig   `yaml:"store"`
	Server  ServerConfig  `yaml:"server"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// StoreConfig configures run persistence.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	Token          string `yaml:"token"`
	RequestTimeout string `yaml:"request_timeout"`
	KeyringService string `yaml:"keyring_service"`
	MaxSamples     int    `yaml:"max_samples"`
}

// Timeout parses RequestTimeout, falling back to 10 minutes.
func (s ServerConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(s.RequestTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// DefaultConfig returns the built-in configuration: 100 000 samples over the
// 50-entry sweep 10, 30, ..., 990.
func DefaultConfig() *Config {
	return &Config{
		Samples:              sampling.DefaultSamples,
		Workers:              0,
		ChunkSize:            sampling.DefaultChunkSize,
		MaxSelfAvoidingSteps: walks.DefaultMaxSteps,
		Sweep:                sweep.Default(),
		Precision:            -1,

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:17889",
			RequestTimeout: "10m",
			KeyringService: "walksim",
			MaxSamples:     1_000_000,
		},
	}
}

// Load reads .env (if present), then the YAML file at path (if present),
// then applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// Defaults stand.
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Steps expands the configured sweep. Validate does not check the sweep;
// an expression sweep is evaluated on every call.
func (c *Config) Steps() ([]int, error) {
	return c.Sweep.Build()
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Samples <= 0 || c.Samples > sampling.MaxSamples {
		return fmt.Errorf("samples must be in [1, %d], got %d", sampling.MaxSamples, c.Samples)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.MaxSelfAvoidingSteps < 0 {
		return fmt.Errorf("max_selfavoiding_steps must be >= 0, got %d", c.MaxSelfAvoidingSteps)
	}
	if c.Precision < -1 {
		return fmt.Errorf("precision must be >= -1, got %d", c.Precision)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

// applyEnvOverrides applies WALKSIM_* environment variables.
func (c *Config) applyEnvOverrides() error {
	ints := []struct {
		key string
		dst *int
	}{
		{"WALKSIM_SAMPLES", &c.Samples},
		{"WALKSIM_WORKERS", &c.Workers},
		{"WALKSIM_CHUNK_SIZE", &c.ChunkSize},
		{"WALKSIM_MAX_SAW_STEPS", &c.MaxSelfAvoidingSteps},
		{"WALKSIM_PRECISION", &c.Precision},
	}
	for _, e := range ints {
		if s := os.Getenv(e.key); s != "" {
			v, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return fmt.Errorf("invalid %s=%q: %w", e.key, s, err)
			}
			*e.dst = v
		}
	}

	if list := os.Getenv("WALKSIM_SWEEP"); list != "" {
		steps, err := sweep.Parse(list)
		if err != nil {
			return fmt.Errorf("invalid WALKSIM_SWEEP: %w", err)
		}
		c.Sweep.List = steps
	}
	if expr := os.Getenv("WALKSIM_SWEEP_EXPR"); expr != "" {
		c.Sweep.Expression = expr
		c.Sweep.List = nil
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"WALKSIM_SERVER_SEED", &c.Seeds.Server},
		{"WALKSIM_CLIENT_SEED", &c.Seeds.Client},
		{"WALKSIM_DB", &c.Store.Path},
		{"WALKSIM_ADDR", &c.Server.Addr},
		{"WALKSIM_TOKEN", &c.Server.Token},
		{"WALKSIM_LOG_LEVEL", &c.Logging.Level},
		{"WALKSIM_LOG_FORMAT", &c.Logging.Format},
	}
	for _, e := range strs {
		if s := os.Getenv(e.key); s != "" {
			*e.dst = s
		}
	}
	return nil
}

// defaultStorePath returns an OS-appropriate location for the run database.
func defaultStorePath() string {
	if d, err := os.UserConfigDir(); err == nil && d != "" {
		return filepath.Join(d, "walksim", "runs.db")
	}
	if h, err := os.UserHomeDir(); err == nil && h != "" {
		return filepath.Join(h, ".walksim", "runs.db")
	}
	return "walksim-runs.db"
}
