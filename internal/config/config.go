package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"EconSync/internal/model"
	"EconSync/internal/reconcile"
)

// Sources understood by the collector.
const (
	SourceYahoo    = "yahoo"
	SourceFRED     = "fred"
	SourceCSV      = "csv"
	SourceJSONPath = "jsonpath"
	SourceMock     = "mock"
)

// Merge policies.
const (
	// MergeAppend keeps persisted values on date collisions.
	MergeAppend = "append"
	// MergeOverlay lets the fetched batch replace persisted values.
	MergeOverlay = "overlay"
)

// Config holds all application configuration.
type Config struct {
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`
	Proxy    string `yaml:"proxy"`
	Fetch    struct {
		Timeout    time.Duration `yaml:"timeout"`
		MaxRetries int           `yaml:"max_retries"`
	} `yaml:"fetch"`
	Yahoo struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"yahoo"`
	FRED struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
	} `yaml:"fred"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	OverlayTolerance float64        `yaml:"overlay_tolerance"`
	Series           []SeriesConfig `yaml:"series"`
}

// SeriesConfig describes one synchronized series.
type SeriesConfig struct {
	Name     string       `yaml:"name"`
	File     string       `yaml:"file"`
	Source   string       `yaml:"source"`
	Symbol   string       `yaml:"symbol"`
	Interval string       `yaml:"interval"`
	Start    string       `yaml:"start"`
	Range    *model.Range `yaml:"range"`
	// Unbounded disables range filtering even when the registry knows the series.
	Unbounded bool   `yaml:"unbounded"`
	Cadence   string `yaml:"cadence"`
	Merge     string `yaml:"merge"`
	YoYFile   string `yaml:"yoy_file"`

	// jsonpath source only
	URL      string `yaml:"url"`
	Path     string `yaml:"path"`
	DateKey  string `yaml:"date_key"`
	ValueKey string `yaml:"value_key"`
}

// StartDate returns the configured first date to fetch when no data exists yet.
func (s SeriesConfig) StartDate() (model.Date, error) {
	if s.Start == "" {
		return model.Date{}, nil
	}
	return model.ParseDate(s.Start)
}

// SourceKey is the collector key the series is fetched through. JSONPath series
// each get their own fetcher, so their key carries the series name.
func (s SeriesConfig) SourceKey() string {
	if s.Source == SourceJSONPath {
		return SourceJSONPath + ":" + s.Name
	}
	return s.Source
}

// ValueRange returns the series range: the configured one first, then the registry's.
func (s SeriesConfig) ValueRange(reg reconcile.Registry) *model.Range {
	if s.Unbounded {
		return nil
	}
	if s.Range != nil {
		r := *s.Range
		return &r
	}
	return reg.Lookup(s.Name)
}

// Registry returns the built-in ranges overridden by the configured ones.
func (c *Config) Registry() reconcile.Registry {
	reg := reconcile.DefaultRegistry()
	for _, s := range c.Series {
		switch {
		case s.Unbounded:
			reg.Set(s.Name, nil)
		case s.Range != nil:
			reg.Set(s.Name, s.Range)
		}
	}
	return reg
}

// Find returns the series with the given name.
func (c *Config) Find(name string) (SeriesConfig, bool) {
	for _, s := range c.Series {
		if s.Name == name {
			return s, true
		}
	}
	return SeriesConfig{}, false
}

// Load reads config from a YAML file, expands ${VAR} references, then applies
// environment variable overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	// set before decoding so that an explicit max_retries: 0 disables retries
	cfg.Fetch.MaxRetries = DefaultMaxRetries

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config and validates it.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ECONSYNC_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("FRED_API_KEY"); v != "" {
		c.FRED.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}
