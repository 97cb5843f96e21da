// Package config loads and validates pressharvest configuration via Viper.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all tool configuration knobs loaded via Viper.
type Config struct {
	Search  SearchConfig  `mapstructure:"search"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Storage StorageConfig `mapstructure:"storage"`
	Export  ExportConfig  `mapstructure:"export"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SearchConfig scopes one harvest run to a press-database search window.
type SearchConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	StartDate string `mapstructure:"start_date"`
	EndDate   string `mapstructure:"end_date"`
}

// FetchConfig governs batch download behavior.
type FetchConfig struct {
	Workers           int `mapstructure:"workers"`
	BatchSize         int `mapstructure:"batch_size"`
	TimeoutSeconds    int `mapstructure:"timeout_seconds"`
	BatchPauseSeconds int `mapstructure:"batch_pause_seconds"`
	CheckpointEvery   int `mapstructure:"checkpoint_every"`
}

// StorageConfig sets the root directory for downloaded artifacts.
type StorageConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// ExportConfig controls the consolidated dataset export.
type ExportConfig struct {
	Format string `mapstructure:"format"`
	Dir    string `mapstructure:"dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Supported dataset export formats.
var validExportFormats = map[string]struct{}{
	"parquet": {},
	"csv":     {},
	"jsonl":   {},
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRESSHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.base_url", "https://nouveau-eureka-cc.acces.bibl.ulaval.ca")
	v.SetDefault("fetch.workers", 6)
	v.SetDefault("fetch.batch_size", 1000)
	v.SetDefault("fetch.timeout_seconds", 45)
	v.SetDefault("fetch.batch_pause_seconds", 5)
	v.SetDefault("fetch.checkpoint_every", 10)
	v.SetDefault("storage.output_dir", "./articles")
	v.SetDefault("export.format", "parquet")
	v.SetDefault("export.dir", "./export")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Invalid date
// bounds and unsupported export formats are rejected here, before any
// fetching begins.
func (c Config) Validate() error {
	if c.Search.BaseURL == "" {
		return fmt.Errorf("search.base_url must be set")
	}
	if err := validateDate("search.start_date", c.Search.StartDate); err != nil {
		return err
	}
	if err := validateDate("search.end_date", c.Search.EndDate); err != nil {
		return err
	}
	if c.Search.StartDate != "" && c.Search.EndDate != "" && c.Search.StartDate > c.Search.EndDate {
		return fmt.Errorf("search.start_date must be before or equal to search.end_date")
	}
	if c.Fetch.Workers <= 0 {
		return fmt.Errorf("fetch.workers must be > 0")
	}
	if c.Fetch.BatchSize <= 0 {
		return fmt.Errorf("fetch.batch_size must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.CheckpointEvery <= 0 {
		return fmt.Errorf("fetch.checkpoint_every must be > 0")
	}
	if _, ok := validExportFormats[c.Export.Format]; !ok {
		return fmt.Errorf("export.format %q is not supported (use parquet, csv, or jsonl)", c.Export.Format)
	}
	return nil
}

func validateDate(field, value string) error {
	if value == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return fmt.Errorf("%s %q is not a valid YYYY-MM-DD date", field, value)
	}
	return nil
}

// Timeout converts the per-request timeout into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// BatchPause converts the inter-batch pause into a duration.
func (c Config) BatchPause() time.Duration {
	return time.Duration(c.Fetch.BatchPauseSeconds) * time.Second
}

// RunDir returns the timeframe-scoped directory where one run keeps its
// artifacts, manifest, and checkpoint.
func (c Config) RunDir() string {
	if c.Search.StartDate == "" || c.Search.EndDate == "" {
		return c.Storage.OutputDir
	}
	return filepath.Join(c.Storage.OutputDir, fmt.Sprintf("%s_%s", c.Search.StartDate, c.Search.EndDate))
}
