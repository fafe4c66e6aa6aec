package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	MinConcurrency = 1
	MaxConcurrency = 5
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Download DownloadConfig `toml:"download"`
	Playlist PlaylistConfig `toml:"playlist"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Auth     AuthConfig     `toml:"auth"`
	Database DatabaseConfig `toml:"database"`
	Server   ServerConfig   `toml:"server"`
}

// DownloadConfig controls the download phase of a run.
type DownloadConfig struct {
	OutputDir     string           `toml:"output_dir"`
	Concurrency   int              `toml:"concurrency"`
	RetryAttempts int              `toml:"retry_attempts"`
	RetryDelay    string           `toml:"retry_delay"`
	Backoff       string           `toml:"backoff"`
	Backend       string           `toml:"backend"`
	AudioOnly     bool             `toml:"audio_only"`
	CookiesFile   string           `toml:"cookies_file"`
	RateLimit     float64          `toml:"rate_limit"`
	HTTPTimeout   string           `toml:"http_timeout"`
	Resolution    ResolutionConfig `toml:"resolution"`
}

// ResolutionConfig holds quality tiers as written by the user, e.g. "720p".
type ResolutionConfig struct {
	Min       string `toml:"min"`
	Max       string `toml:"max"`
	Preferred string `toml:"preferred"`
}

// PlaylistConfig selects the playlist and where its snapshot is cached.
type PlaylistConfig struct {
	ID           string `toml:"id"`
	Source       string `toml:"source"`
	SnapshotPath string `toml:"snapshot_path"`
	AutoClean    bool   `toml:"auto_clean"`
}

// LedgerConfig selects the ledger backing store.
type LedgerConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// AuthConfig points at the OAuth client secrets and the cached token.
type AuthConfig struct {
	ClientSecrets string   `toml:"client_secrets"`
	TokenPath     string   `toml:"token_path"`
	Scopes        []string `toml:"scopes"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback listener.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// RetryDelayDuration parses [DownloadConfig.RetryDelay].
func (d DownloadConfig) RetryDelayDuration() (time.Duration, error) {
	return parseDuration("retry_delay", d.RetryDelay)
}

// HTTPTimeoutDuration parses [DownloadConfig.HTTPTimeout].
func (d DownloadConfig) HTTPTimeoutDuration() (time.Duration, error) {
	return parseDuration("http_timeout", d.HTTPTimeout)
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %v", ErrInvalidConfig, field, value, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, field)
	}
	return d, nil
}

// Validate checks value ranges that would otherwise surface mid-run.
func (c *Config) Validate() error {
	if c.Download.Concurrency < MinConcurrency || c.Download.Concurrency > MaxConcurrency {
		return fmt.Errorf("%w: download.concurrency must be between %d and %d, got %d",
			ErrInvalidConfig, MinConcurrency, MaxConcurrency, c.Download.Concurrency)
	}
	if c.Download.RetryAttempts < 1 {
		return fmt.Errorf("%w: download.retry_attempts must be at least 1", ErrInvalidConfig)
	}
	if _, err := c.Download.RetryDelayDuration(); err != nil {
		return err
	}
	if _, err := c.Download.HTTPTimeoutDuration(); err != nil {
		return err
	}
	if c.Download.RateLimit < 0 {
		return fmt.Errorf("%w: download.rate_limit must not be negative", ErrInvalidConfig)
	}

	switch c.Download.Backoff {
	case "", "fixed", "exponential":
	default:
		return fmt.Errorf("%w: unknown download.backoff %q", ErrInvalidConfig, c.Download.Backoff)
	}
	switch c.Download.Backend {
	case "native", "ytdlp":
	default:
		return fmt.Errorf("%w: unknown download.backend %q", ErrInvalidConfig, c.Download.Backend)
	}
	switch c.Playlist.Source {
	case "api", "public":
	default:
		return fmt.Errorf("%w: unknown playlist.source %q", ErrInvalidConfig, c.Playlist.Source)
	}
	switch c.Ledger.Backend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("%w: unknown ledger.backend %q", ErrInvalidConfig, c.Ledger.Backend)
	}

	if c.Download.OutputDir == "" {
		return fmt.Errorf("%w: download.output_dir is required", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
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

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML and writes it to path.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return WriteFileAtomic(path, buf.Bytes(), 0644)
}
