package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration. Secrets are only read from the
// environment and never from the YAML file.
type Config struct {
	Server struct {
		Port           string        `yaml:"port"`
		Passcode       string        `yaml:"-"`
		SessionTTL     time.Duration `yaml:"session_ttl"`
		SessionSweep   time.Duration `yaml:"session_sweep"`
		CookieSecure   bool          `yaml:"cookie_secure"`
		AllowedOrigins []string      `yaml:"allowed_origins"` // origins that may call the API with the session cookie
	} `yaml:"server"`

	Notion struct {
		APIKey     string `yaml:"-"`
		DatabaseID string `yaml:"database_id"` // JSON object of name to id, or a bare id
		Retries    int    `yaml:"retries"`
	} `yaml:"notion"`

	Trading212 struct {
		APIKey         string        `yaml:"-"`
		APISecret      string        `yaml:"-"`
		BaseURL        string        `yaml:"base_url"`
		PageSize       int           `yaml:"page_size"`
		MaxRetries     int           `yaml:"max_retries"`
		InitialBackoff time.Duration `yaml:"initial_backoff"`
		PageDelay      time.Duration `yaml:"page_delay"`
		SourceDelay    time.Duration `yaml:"source_delay"`
	} `yaml:"trading212"`

	Log struct {
		Level   string `yaml:"level"`
		Tracing bool   `yaml:"tracing"`
	} `yaml:"log"`

	Snapshot struct {
		Bucket          string `yaml:"bucket"`
		BigQueryProject string `yaml:"bigquery_project"`
		BigQueryDataset string `yaml:"bigquery_dataset"`
		BigQueryTable   string `yaml:"bigquery_table"`
		Workers         int    `yaml:"workers"`
		QueueSize       int    `yaml:"queue_size"`
	} `yaml:"snapshot"`

	Insights struct {
		Enabled bool   `yaml:"enabled"`
		Model   string `yaml:"model"`
	} `yaml:"insights"`
}

// Load reads the YAML file at path, when path is not empty, then applies
// defaults and environment overrides.
func Load(path string) (*Config, error) {
	var c Config

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("config.Load: parse %s: %w", path, err)
		}
	}

	c.applyDefaults()
	if err := c.applyEnv(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.SessionTTL == 0 {
		c.Server.SessionTTL = 12 * time.Hour
	}
	if c.Server.SessionSweep == 0 {
		c.Server.SessionSweep = 5 * time.Minute
	}
	if c.Notion.Retries == 0 {
		c.Notion.Retries = 3
	}
	if c.Trading212.BaseURL == "" {
		c.Trading212.BaseURL = "https://live.trading212.com"
	}
	if c.Trading212.PageSize == 0 {
		c.Trading212.PageSize = 20
	}
	if c.Trading212.MaxRetries == 0 {
		c.Trading212.MaxRetries = 3
	}
	if c.Trading212.InitialBackoff == 0 {
		c.Trading212.InitialBackoff = time.Second
	}
	if c.Trading212.PageDelay == 0 {
		c.Trading212.PageDelay = 200 * time.Millisecond
	}
	if c.Trading212.SourceDelay == 0 {
		c.Trading212.SourceDelay = 500 * time.Millisecond
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Snapshot.BigQueryTable == "" {
		c.Snapshot.BigQueryTable = "snapshots"
	}
	if c.Snapshot.Workers == 0 {
		c.Snapshot.Workers = 1
	}
	if c.Snapshot.QueueSize == 0 {
		c.Snapshot.QueueSize = 16
	}
	if c.Insights.Model == "" {
		c.Insights.Model = "gemini-2.5-flash"
	}
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Passcode, "DASHBOARD_PASSCODE")
	setString(&c.Server.Port, "PORT")
	setString(&c.Notion.APIKey, "NOTION_API_KEY")
	setString(&c.Notion.DatabaseID, "NOTION_DATABASE_ID")
	setString(&c.Trading212.APIKey, "TRADING_212_API_KEY")
	setString(&c.Trading212.APISecret, "TRADING_212_API_SECRET")
	setString(&c.Trading212.BaseURL, "TRADING_212_BASE_URL")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Snapshot.Bucket, "SNAPSHOT_BUCKET")
	setString(&c.Snapshot.BigQueryProject, "BIGQUERY_PROJECT")
	setString(&c.Snapshot.BigQueryDataset, "BIGQUERY_DATASET")
	setString(&c.Insights.Model, "GEMINI_MODEL")
	setList(&c.Server.AllowedOrigins, "ALLOWED_ORIGINS")

	if err := setBool(&c.Log.Tracing, "LOG_TRACING_ENABLED"); err != nil {
		return err
	}
	if err := setBool(&c.Insights.Enabled, "INSIGHTS_ENABLED"); err != nil {
		return err
	}
	return setBool(&c.Server.CookieSecure, "COOKIE_SECURE")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// setList reads a comma separated list.
func setList(dst *[]string, key string) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func setBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

// Validate checks numeric settings. Credentials are checked by the
// components that need them.
func (c *Config) Validate() error {
	if c.Trading212.PageSize < 1 {
		return fmt.Errorf("trading212.page_size must be positive, got %d", c.Trading212.PageSize)
	}
	if c.Trading212.MaxRetries < 0 {
		return fmt.Errorf("trading212.max_retries cannot be negative, got %d", c.Trading212.MaxRetries)
	}
	if c.Trading212.InitialBackoff < 0 || c.Trading212.PageDelay < 0 || c.Trading212.SourceDelay < 0 {
		return errors.New("trading212 delays cannot be negative")
	}
	if c.Server.SessionTTL < 0 {
		return fmt.Errorf("server.session_ttl cannot be negative, got %s", c.Server.SessionTTL)
	}
	if c.Server.SessionSweep < 0 {
		return fmt.Errorf("server.session_sweep cannot be negative, got %s", c.Server.SessionSweep)
	}
	for _, o := range c.Server.AllowedOrigins {
		if o == "*" {
			return errors.New("server.allowed_origins cannot contain a wildcard")
		}
	}
	if c.Snapshot.Workers < 1 {
		return fmt.Errorf("snapshot.workers must be positive, got %d", c.Snapshot.Workers)
	}
	return nil
}

// ErrPasscodeNotConfigured is returned by ValidateServer without DASHBOARD_PASSCODE.
var ErrPasscodeNotConfigured = errors.New("DASHBOARD_PASSCODE is not set")

// ValidateServer checks the settings the HTTP server cannot start without.
func (c *Config) ValidateServer() error {
	if c.Server.Passcode == "" {
		return ErrPasscodeNotConfigured
	}
	return nil
}
