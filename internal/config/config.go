package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pickupcal/internal/holiday"
)

// Environment variables that override secrets from the YAML file.
const (
	EnvAPIKey            = "PICKUPCAL_API_KEY"
	EnvDSN               = "PICKUPCAL_DSN"
	EnvBasicAuthPassword = "PICKUPCAL_BASIC_AUTH_PASSWORD"
)

// Source kinds.
const (
	SourceFile     = "file"
	SourceREST     = "rest"
	SourcePostgres = "postgres"
)

// HolidaysConfig controls the holiday overlay.
type HolidaysConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// IncludeRegional adds Good Friday and St. Stephen's Day (Alsace-Moselle).
	IncludeRegional bool `yaml:"include_regional" json:"include_regional"`
	StartYear       int  `yaml:"start_year" json:"start_year"`
	EndYear         int  `yaml:"end_year" json:"end_year"`
}

// SourceConfig selects where orders come from.
type SourceConfig struct {
	// Kind is one of "file", "rest", "postgres".
	Kind string `yaml:"kind" json:"kind"`

	// Path is the JSON export read by the file source.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	// URL and APIKey address the PostgREST table of the rest source.
	URL    string `yaml:"url,omitempty" json:"url,omitempty"`
	APIKey string `yaml:"api_key,omitempty" json:"-"`

	DSN     string `yaml:"dsn,omitempty" json:"-"`
	Migrate bool   `yaml:"migrate,omitempty" json:"migrate,omitempty"`

	// CacheDir holds the last good REST response.
	CacheDir string `yaml:"cache_dir,omitempty" json:"cache_dir,omitempty"`
}

// FeedConfig holds the iCalendar feed settings.
type FeedConfig struct {
	Name              string        `yaml:"name" json:"name"`
	TTL               time.Duration `yaml:"ttl" json:"ttl"`
	RecurringHolidays bool          `yaml:"recurring_holidays" json:"recurring_holidays"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API and feed.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone whose calendar dates immediate pickups.
	Timezone string `yaml:"timezone" json:"timezone"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// RefreshCron is a cron-style schedule string (e.g. "*/5 * * * *")
	// used for periodic order refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	Holidays HolidaysConfig `yaml:"holidays" json:"holidays"`
	Source   SourceConfig   `yaml:"source" json:"source"`
	Feed     FeedConfig     `yaml:"feed" json:"feed"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	year := time.Now().Year()
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Europe/Paris",
		LogLevel:    "info",
		RefreshCron: "*/5 * * * *",
		Holidays: HolidaysConfig{
			Enabled:   true,
			StartYear: year - 1,
			EndYear:   year + 2,
		},
		Source: SourceConfig{
			Kind:     SourceFile,
			Path:     "./orders.json",
			CacheDir: "./var/orders-cache",
		},
		Feed: FeedConfig{
			Name: "Retraits",
			TTL:  time.Hour,
		},
		BasicAuth: nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()

	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}

	if c.Holidays.StartYear == 0 {
		c.Holidays.StartYear = def.Holidays.StartYear
	}
	if c.Holidays.EndYear == 0 {
		c.Holidays.EndYear = def.Holidays.EndYear
	}

	c.Source.Kind = strings.ToLower(strings.TrimSpace(c.Source.Kind))
	if c.Source.Kind == "" {
		c.Source.Kind = def.Source.Kind
	}
	if c.Source.Kind == SourceFile && c.Source.Path == "" {
		c.Source.Path = def.Source.Path
	}
	if c.Source.CacheDir == "" {
		c.Source.CacheDir = def.Source.CacheDir
	}

	if c.Feed.Name == "" {
		c.Feed.Name = def.Feed.Name
	}
	if c.Feed.TTL <= 0 {
		c.Feed.TTL = def.Feed.TTL
	}
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	if c.Holidays.EndYear < c.Holidays.StartYear {
		return fmt.Errorf("holidays: end_year %d before start_year %d", c.Holidays.EndYear, c.Holidays.StartYear)
	}
	if c.Holidays.StartYear < holiday.MinYear {
		return fmt.Errorf("holidays: start_year %d below %d", c.Holidays.StartYear, holiday.MinYear)
	}
	if c.Holidays.EndYear-c.Holidays.StartYear >= holiday.MaxYearSpan {
		return fmt.Errorf("holidays: range spans more than %d years", holiday.MaxYearSpan)
	}

	switch c.Source.Kind {
	case SourceFile:
		if c.Source.Path == "" {
			return errors.New("source: file kind needs a path")
		}
	case SourceREST:
		if c.Source.URL == "" {
			return errors.New("source: rest kind needs a url")
		}
	case SourcePostgres:
		if c.Source.DSN == "" {
			return fmt.Errorf("source: postgres kind needs a dsn (or %s)", EnvDSN)
		}
	default:
		return fmt.Errorf("source: unknown kind %q", c.Source.Kind)
	}

	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		return errors.New("basic_auth: username and password are required")
	}
	return nil
}

// ApplyEnv overrides secrets with non-empty values from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := getenv(EnvAPIKey); v != "" {
		c.Source.APIKey = v
	}
	if v := getenv(EnvDSN); v != "" {
		c.Source.DSN = v
	}
	if v := getenv(EnvBasicAuthPassword); v != "" && c.BasicAuth != nil {
		c.BasicAuth.Password = v
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path atomically
// (temp file + rename) with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".pickupcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
