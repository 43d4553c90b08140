package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	DefaultConcurrency = 36
	MaxConcurrency     = 128
	DefaultAttempts    = 3
	DefaultLibraryName = "Aether_Archive"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Library  LibraryConfig  `toml:"library"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Harvest  HarvestConfig  `toml:"harvest"`
	Report   ReportConfig   `toml:"report"`
	Tagging  TaggingConfig  `toml:"tagging"`
	Database DatabaseConfig `toml:"database"`
	Storage  StorageConfig  `toml:"storage"`
	Logging  LoggingConfig  `toml:"logging"`
}

// LibraryConfig describes where and how archived tracks are written.
type LibraryConfig struct {
	Dir        string `toml:"dir"`
	Format     string `toml:"format"`
	Quality    string `toml:"quality"`
	Engine     string `toml:"engine"`
	EmbedCover bool   `toml:"embed_cover"`
}

// PipelineConfig contains worker pool and per-operation limits.
type PipelineConfig struct {
	Concurrency         int     `toml:"concurrency"`
	SearchTimeoutSecs   int     `toml:"search_timeout_secs"`
	DownloadTimeoutSecs int     `toml:"download_timeout_secs"`
	Attempts            int     `toml:"attempts"`
	SearchResults       int     `toml:"search_results"`
	SearchRate          float64 `toml:"search_rate"`
}

// HarvestConfig contains playlist scraping settings.
type HarvestConfig struct {
	UserAgent   string `toml:"user_agent"`
	TimeoutSecs int    `toml:"timeout_secs"`
}

// ReportConfig contains mission history and failure log paths.
type ReportConfig struct {
	HistoryPath string `toml:"history_path"`
	FailureLog  string `toml:"failure_log"`
}

// TaggingConfig selects the tag writer.
type TaggingConfig struct {
	Engine     string `toml:"engine"`
	FFmpegPath string `toml:"ffmpeg_path"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// StorageConfig configures the optional library mirror.
type StorageConfig struct {
	Backend         string `toml:"backend"`
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`
	CredentialsFile string `toml:"credentials_file"`
	MirrorDir       string `toml:"mirror_dir"`
}

// LoggingConfig contains log level and file destination used by the TUI.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects unknown enum values and clamps numeric limits into their supported ranges.
func (c *Config) Validate() error {
	c.Library.Engine = strings.ToLower(c.Library.Engine)
	switch c.Library.Engine {
	case "cpu", "gpu":
	case "":
		c.Library.Engine = "cpu"
	default:
		return fmt.Errorf("%w: library.engine must be cpu or gpu, got %q", ErrInvalidConfig, c.Library.Engine)
	}

	c.Tagging.Engine = strings.ToLower(c.Tagging.Engine)
	switch c.Tagging.Engine {
	case "ffmpeg", "taglib":
	case "":
		c.Tagging.Engine = "ffmpeg"
	default:
		return fmt.Errorf("%w: tagging.engine must be ffmpeg or taglib, got %q", ErrInvalidConfig, c.Tagging.Engine)
	}

	c.Storage.Backend = strings.ToLower(c.Storage.Backend)
	switch c.Storage.Backend {
	case "", "none":
		c.Storage.Backend = "none"
	case "local":
		if c.Storage.MirrorDir == "" {
			return fmt.Errorf("%w: storage.mirror_dir is required for the local backend", ErrInvalidConfig)
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("%w: storage.bucket is required for the gcs backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage.backend %q", ErrInvalidConfig, c.Storage.Backend)
	}

	if c.Library.Dir == "" {
		c.Library.Dir = DefaultLibraryName
	}
	if c.Library.Format == "" {
		c.Library.Format = "mp3"
	}
	if c.Pipeline.Concurrency <= 0 {
		c.Pipeline.Concurrency = DefaultConcurrency
	}
	if c.Pipeline.Concurrency > MaxConcurrency {
		c.Pipeline.Concurrency = MaxConcurrency
	}
	if c.Pipeline.Attempts <= 0 {
		c.Pipeline.Attempts = DefaultAttempts
	}
	if c.Pipeline.SearchResults <= 0 {
		c.Pipeline.SearchResults = 5
	}
	if c.Pipeline.SearchRate < 0 {
		c.Pipeline.SearchRate = 0
	}
	return nil
}

// SearchTimeout returns the per-query search bound.
func (c *Config) SearchTimeout() time.Duration {
	return secondsOr(c.Pipeline.SearchTimeoutSecs, 120)
}

// DownloadTimeout returns the per-attempt download bound.
func (c *Config) DownloadTimeout() time.Duration {
	return secondsOr(c.Pipeline.DownloadTimeoutSecs, 120)
}

// HarvestTimeout returns the request timeout for playlist scraping.
func (c *Config) HarvestTimeout() time.Duration {
	return secondsOr(c.Harvest.TimeoutSecs, 30)
}

// UseGPU reports whether the GPU engine is selected.
func (c *Config) UseGPU() bool {
	return c.Library.Engine == "gpu"
}

func secondsOr(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
