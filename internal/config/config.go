// Package config loads and validates the companion's configuration: the
// finance API, the price-comparison API, the browser attachment, and the
// local session storage.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pennyhq/penny-companion/internal/common"
)

// Config holds everything the companion needs to reach the finance API,
// the price-comparison API, and the browser under observation.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	Deals   DealsConfig   `mapstructure:"deals"`
	Browser BrowserConfig `mapstructure:"browser"`
	Storage StorageConfig `mapstructure:"storage"`
}

// APIConfig points at the Penny finance API.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// DealsConfig points at the price-comparison API.
type DealsConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// BrowserConfig controls how the companion attaches to Chrome.
type BrowserConfig struct {
	// DevToolsURL is the ws:// or http:// endpoint of a running Chrome
	// started with --remote-debugging-port. Empty means launch our own.
	DevToolsURL  string        `mapstructure:"devtools_url"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Headless     bool          `mapstructure:"headless"`
}

// StorageConfig locates the local session database.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// SetDefaults registers the built-in defaults.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://127.0.0.1:8000/api/v1")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("deals.base_url", "https://api.pricesapi.io/api/v1")
	v.SetDefault("browser.poll_interval", 750*time.Millisecond)
	v.SetDefault("browser.headless", false)
	v.SetDefault("storage.path", "~/.local/share/penny/session.db")
}

// Load reads the merged viper state into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Storage.Path = expandHome(cfg.Storage.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("%w: api.base_url is required", common.ErrMissingConfig)
	}
	if c.Deals.BaseURL == "" {
		return fmt.Errorf("%w: deals.base_url is required", common.ErrMissingConfig)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("%w: storage.path is required", common.ErrMissingConfig)
	}
	if c.Browser.PollInterval < 0 {
		return fmt.Errorf("%w: browser.poll_interval must not be negative", common.ErrInvalidConfig)
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("%w: api.timeout must not be negative", common.ErrInvalidConfig)
	}
	return nil
}

// expandHome resolves a leading ~ in the storage path, since the default
// session database lives under the user's home directory.
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// EnsureStorageDir creates the directory holding the session database.
func (c *Config) EnsureStorageDir() error {
	dir := filepath.Dir(c.Storage.Path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	return nil
}
