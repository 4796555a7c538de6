package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is prepended to every environment variable, e.g.
// YARNSTASH_POLL_INTERVAL.
const EnvPrefix = "YARNSTASH"

// Config is the application configuration. Values come from DefaultConfig,
// then the JSON file, then the environment; later layers win.
type Config struct {
	// Source location and the prefix it is resolved against.
	BasePath string `json:"base_path" split_words:"true"`
	Source   string `json:"source"`
	IDColumn string `json:"id_column,omitempty" split_words:"true"`

	// Sync engine
	PollInterval    Duration `json:"poll_interval" split_words:"true"`
	MaxLoadAttempts int      `json:"max_load_attempts" split_words:"true"`
	RetryBase       Duration `json:"retry_base" split_words:"true"`
	Fallback        bool     `json:"fallback"`
	FetchTimeout    Duration `json:"fetch_timeout" split_words:"true"`

	// Product lookup
	LookupEnabled    bool     `json:"lookup_enabled" split_words:"true"`
	LookupRate       Duration `json:"lookup_rate" split_words:"true"` // minimum gap between calls per provider
	LookupTimeout    Duration `json:"lookup_timeout" split_words:"true"`
	BarcodeLookupKey string   `json:"barcode_lookup_key,omitempty" split_words:"true"`

	ScanDebounce Duration `json:"scan_debounce" split_words:"true"`

	DataDir  string `json:"data_dir" split_words:"true"`
	LogLevel string `json:"log_level" split_words:"true"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		BasePath:        "/",
		Source:          "./data/yarn-collection.csv",
		PollInterval:    Duration(5 * time.Second),
		MaxLoadAttempts: 3,
		RetryBase:       Duration(time.Second),
		Fallback:        true,
		FetchTimeout:    Duration(30 * time.Second),
		LookupEnabled:   true,
		LookupRate:      Duration(750 * time.Millisecond),
		LookupTimeout:   Duration(8 * time.Second),
		ScanDebounce:    Duration(2 * time.Second),
		DataDir:         filepath.Join(homeDir(), ".yarnstash"),
		LogLevel:        "info",
	}
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(homeDir(), ".yarnstash", "config.json")
}

// Load reads the config file at ConfigPath and applies the environment.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the JSON file at path (a missing file is not an error),
// then applies YARNSTASH_* environment variables and validates.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("config from environment: %w", err)
	}
	cfg.DataDir = expandHome(cfg.DataDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Duration is a time.Duration written as "5s" in JSON and the
// environment.
type Duration time.Duration

// Std converts to time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Validate rejects values the sync engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %s", c.PollInterval))
	}
	if c.MaxLoadAttempts < 1 {
		errs = append(errs, fmt.Errorf("max load attempts must be at least 1, got %d", c.MaxLoadAttempts))
	}
	if c.RetryBase <= 0 {
		errs = append(errs, fmt.Errorf("retry base must be positive, got %s", c.RetryBase))
	}
	if c.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch timeout must be positive, got %s", c.FetchTimeout))
	}
	if c.ScanDebounce < 0 {
		errs = append(errs, fmt.Errorf("scan debounce must not be negative, got %s", c.ScanDebounce))
	}
	return errors.Join(errs...)
}

// Save writes the config as indented JSON to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600) // may hold an API key
}

// DatabasePath is the SQLite file under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "yarnstash.db")
}

// EventLogPath is the JSONL event log under the data directory.
func (c *Config) EventLogPath() string {
	return filepath.Join(c.DataDir, "events.jsonl")
}

// ViewsExportPath is where saved views are exported as a JSON array.
func (c *Config) ViewsExportPath() string {
	return filepath.Join(c.DataDir, "views.json")
}

func expandHome(p string) string {
	if p == "~" {
		return homeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(homeDir(), p[2:])
	}
	return p
}
