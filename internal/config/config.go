package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Seed is a statically known starting page of the hierarchy walk.
type Seed struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// DefaultContinents are the continent index pages of climate-data.org.
var DefaultContinents = []Seed{
	{Name: "North America", URL: "https://en.climate-data.org/continent/north-america/"},
	{Name: "South America", URL: "https://en.climate-data.org/continent/south-america/"},
	{Name: "Africa", URL: "https://en.climate-data.org/continent/africa/"},
	{Name: "Europe", URL: "https://en.climate-data.org/continent/europe/"},
	{Name: "Asia", URL: "https://en.climate-data.org/continent/asia/"},
	{Name: "Oceania", URL: "https://en.climate-data.org/continent/oceania/"},
}

// Fetcher modes.
const (
	FetcherBrowser = "browser"
	FetcherStatic  = "static"
)

// Config holds the run parameters of both crawl stages.
type Config struct {
	MaxCountries       int     `yaml:"max_countries"`
	WaitTimeoutSeconds float64 `yaml:"wait_timeout_seconds"`
	DelaySeconds       float64 `yaml:"delay_seconds"`

	Fetcher    string `yaml:"fetcher"`
	Headless   bool   `yaml:"headless"`
	UserAgent  string `yaml:"user_agent"`
	ChromePath string `yaml:"chrome_path"`

	Continents []Seed `yaml:"continents"`

	TableID    string `yaml:"table_id"`
	NullMarker string `yaml:"null_marker"`

	URLsJSON    string `yaml:"urls_json"`
	URLsCSV     string `yaml:"urls_csv"`
	DataCSV     string `yaml:"data_csv"`
	SQLitePath  string `yaml:"sqlite_path"`
	MetricsFile string `yaml:"metrics_file"`

	LogLevel string `yaml:"log_level"`
	Preview  int    `yaml:"preview"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		WaitTimeoutSeconds: 10,
		DelaySeconds:       0.3,
		Fetcher:            FetcherBrowser,
		Headless:           true,
		UserAgent:          "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
		Continents:         append([]Seed(nil), DefaultContinents...),
		TableID:            "weather_table",
		URLsJSON:           "urls.json",
		URLsCSV:            "urls.csv",
		DataCSV:            "cleaned_data.csv",
		LogLevel:           "info",
		Preview:            24,
	}
}

// Load reads a YAML configuration file over the defaults. Keys absent from
// the file keep their default value. A missing file is not an error unless
// required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that values are usable.
func (c *Config) Validate() error {
	if c.MaxCountries < 0 {
		return errors.New("max_countries must be >= 0")
	}
	if c.WaitTimeoutSeconds < 1 {
		return errors.New("wait_timeout_seconds must be >= 1")
	}
	if c.DelaySeconds < 0 {
		return errors.New("delay_seconds must be >= 0")
	}
	if c.Fetcher != FetcherBrowser && c.Fetcher != FetcherStatic {
		return fmt.Errorf("fetcher must be %q or %q, got %q", FetcherBrowser, FetcherStatic, c.Fetcher)
	}
	for i, seed := range c.Continents {
		if seed.Name == "" || seed.URL == "" {
			return fmt.Errorf("continents[%d] needs both name and url", i)
		}
	}
	if c.Preview < 0 {
		return errors.New("preview must be >= 0")
	}
	return nil
}

// Overrides carries command-line values. Nil fields keep the file value.
type Overrides struct {
	MaxCountries *int
	WaitTimeout  *float64
	Delay        *float64
	Fetcher      string
	Headed       bool
	LogLevel     string
	SQLitePath   string
	MetricsFile  string
	Preview      *int
}

// Apply merges command-line overrides and re-validates.
func (c *Config) Apply(o Overrides) error {
	if o.MaxCountries != nil {
		c.MaxCountries = *o.MaxCountries
	}
	if o.WaitTimeout != nil {
		c.WaitTimeoutSeconds = *o.WaitTimeout
	}
	if o.Delay != nil {
		c.DelaySeconds = *o.Delay
	}
	if o.Fetcher != "" {
		c.Fetcher = o.Fetcher
	}
	if o.Headed {
		c.Headless = false
	}
	if o.LogLevel != "" {
		c.LogLevel = o.LogLevel
	}
	if o.SQLitePath != "" {
		c.SQLitePath = o.SQLitePath
	}
	if o.MetricsFile != "" {
		c.MetricsFile = o.MetricsFile
	}
	if o.Preview != nil {
		c.Preview = *o.Preview
	}
	return c.Validate()
}

// WaitTimeout is the per-selector wait budget.
func (c *Config) WaitTimeout() time.Duration {
	return time.Duration(c.WaitTimeoutSeconds * float64(time.Second))
}

// Delay is the fixed politeness pause between page loads.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.DelaySeconds * float64(time.Second))
}
