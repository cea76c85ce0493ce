package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultRegistryURL is the public radio-pad registry
const DefaultRegistryURL = "https://registry.radiopad.dev"

// Config holds all application configuration
type Config struct {
	Registry    RegistryConfig    `mapstructure:"registry"`
	Switchboard SwitchboardConfig `mapstructure:"switchboard"`
	Store       StoreConfig       `mapstructure:"store"`
	UI          UIConfig          `mapstructure:"ui"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// RegistryConfig holds registry discovery configuration
type RegistryConfig struct {
	URL     string        `mapstructure:"url"`     // Default for the registryUrl preference
	Timeout time.Duration `mapstructure:"timeout"` // Per-request HTTP timeout
}

// SwitchboardConfig holds realtime connection configuration
type SwitchboardConfig struct {
	URL            string        `mapstructure:"url"` // Skips player discovery when set
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MinBackoff     time.Duration `mapstructure:"min_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
}

// StoreConfig holds preference persistence configuration
type StoreConfig struct {
	Path string `mapstructure:"path"` // Empty keeps preferences in memory only
}

// UIConfig holds UI configuration
type UIConfig struct {
	Columns int `mapstructure:"columns"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			URL:     DefaultRegistryURL,
			Timeout: 15 * time.Second,
		},
		Switchboard: SwitchboardConfig{
			ConnectTimeout: 3 * time.Second,
			MinBackoff:     1 * time.Second,
			MaxBackoff:     30 * time.Second,
		},
		Store: StoreConfig{
			Path: filepath.Join(defaultDataPath(), "preferences.db"),
		},
		UI: UIConfig{
			Columns: 3,
		},
		Logging: LoggingConfig{
			File:  filepath.Join(defaultDataPath(), "radiopad.log"),
			Level: "INFO",
		},
	}
}

// defaultDataPath returns the per-user data directory for the current OS
func defaultDataPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "radiopad")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "radiopad")
	}
}

// defaultConfigPath returns the default config directory for the current OS
func defaultConfigPath() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "radiopad")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "radiopad")
	}
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[1:]), nil
}

// LoadConfig loads configuration from the default locations and environment
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(defaultConfigPath(), ".")
}

// LoadConfigFrom loads config.yaml from the first of dirs that has one,
// then applies RADIOPAD_* environment overrides.
func LoadConfigFrom(dirs ...string) (*Config, error) {
	cfg := DefaultConfig()
	v := newViper(cfg)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newViper creates a viper instance seeded with cfg's values as defaults so
// environment overrides apply to every key.
func newViper(cfg *Config) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("RADIOPAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("registry.url", cfg.Registry.URL)
	v.SetDefault("registry.timeout", cfg.Registry.Timeout)
	v.SetDefault("switchboard.url", cfg.Switchboard.URL)
	v.SetDefault("switchboard.connect_timeout", cfg.Switchboard.ConnectTimeout)
	v.SetDefault("switchboard.min_backoff", cfg.Switchboard.MinBackoff)
	v.SetDefault("switchboard.max_backoff", cfg.Switchboard.MaxBackoff)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("ui.columns", cfg.UI.Columns)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.level", cfg.Logging.Level)
	return v
}

// Validate checks values that would otherwise fail late at runtime
func (c *Config) Validate() error {
	if c.Switchboard.ConnectTimeout <= 0 {
		return fmt.Errorf("switchboard.connect_timeout must be positive")
	}
	if c.Switchboard.MinBackoff <= 0 || c.Switchboard.MaxBackoff < c.Switchboard.MinBackoff {
		return fmt.Errorf("switchboard backoff must satisfy 0 < min_backoff <= max_backoff")
	}
	if c.UI.Columns <= 0 {
		c.UI.Columns = 3
	}
	return nil
}

// SaveConfig saves the configuration to the default config directory
func SaveConfig(cfg *Config) error {
	return SaveConfigTo(cfg, defaultConfigPath())
}

// SaveConfigTo writes cfg as config.yaml in dir
func SaveConfigTo(cfg *Config, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	// Set fields individually to ensure correct key names (snake_case)
	v.Set("registry.url", cfg.Registry.URL)
	v.Set("registry.timeout", cfg.Registry.Timeout.String())
	v.Set("switchboard.url", cfg.Switchboard.URL)
	v.Set("switchboard.connect_timeout", cfg.Switchboard.ConnectTimeout.String())
	v.Set("switchboard.min_backoff", cfg.Switchboard.MinBackoff.String())
	v.Set("switchboard.max_backoff", cfg.Switchboard.MaxBackoff.String())
	v.Set("store.path", cfg.Store.Path)
	v.Set("ui.columns", cfg.UI.Columns)
	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.level", cfg.Logging.Level)

	configFile := filepath.Join(dir, "config.yaml")
	if err := v.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
