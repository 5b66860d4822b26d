// Package config loads soulsync configuration via viper.
//
// Resolution order: flags bound by the CLI, then SOULSYNC_* environment
// variables, then the YAML config file in the state directory, then the
// built-in defaults. The first run writes a default config file so users
// have something to edit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level application configuration.
type Config struct {
	// StateDir holds the database, token, log and settings files.
	StateDir string `mapstructure:"state_dir"`

	// Partners are the two named users of the household board.
	Partners [2]string `mapstructure:"-"`

	// Listen is the HTTP/WebSocket listen address for serve.
	Listen string `mapstructure:"listen"`

	// RefreshCron, when non-empty, schedules periodic calendar resyncs
	// (standard 5-field cron spec, e.g. "*/15 * * * *").
	RefreshCron string `mapstructure:"refresh_cron"`

	// LogFile, when non-empty, routes component logs to a rotating file.
	LogFile string `mapstructure:"log_file"`

	Google    GoogleConfig    `mapstructure:"google"`
	Assistant AssistantConfig `mapstructure:"assistant"`
}

// GoogleConfig configures the Calendar/Tasks OAuth client.
type GoogleConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`

	// DefaultCalendarID is used when no calendar has been selected yet.
	// Empty means "primary".
	DefaultCalendarID string `mapstructure:"default_calendar_id"`

	// WindowDays bounds the sync window on each side of now.
	WindowDays int `mapstructure:"window_days"`
}

// AssistantConfig configures the generative-AI chat pass-through.
type AssistantConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// DefaultStateDir returns ~/.config/soulsync, creating nothing.
func DefaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".soulsync"
	}
	return filepath.Join(home, ".config", "soulsync")
}

// Load reads configuration, creating a default config file on first run.
// An empty configPath means <state dir>/config.yaml.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	stateDir := DefaultStateDir()
	v.SetDefault("state_dir", stateDir)
	v.SetDefault("partner_a", "Austin")
	v.SetDefault("partner_b", "Angie")
	v.SetDefault("listen", "127.0.0.1:8787")
	v.SetDefault("refresh_cron", "")
	v.SetDefault("log_file", "")
	v.SetDefault("google.redirect_url", "http://localhost:8789/oauth/callback")
	v.SetDefault("google.default_calendar_id", "")
	v.SetDefault("google.window_days", 365)
	v.SetDefault("assistant.model", "claude-sonnet-4-5")

	v.SetEnvPrefix("SOULSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		configPath = filepath.Join(stateDir, "config.yaml")
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			if werr := writeDefaultConfig(v, configPath); werr != nil {
				return nil, fmt.Errorf("failed to write default config: %w", werr)
			}
		} else {
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Partners = [2]string{v.GetString("partner_a"), v.GetString("partner_b")}

	if cfg.StateDir == "" {
		cfg.StateDir = stateDir
	}
	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}

	return &cfg, nil
}

// writeDefaultConfig persists the current defaults so the user has a file
// to edit. Secrets are intentionally left blank.
func writeDefaultConfig(v *viper.Viper, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return v.WriteConfigAs(path)
}

// DatabasePath returns the store location inside the state dir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.StateDir, "soulsync.db")
}

// TokenPath returns where the OAuth token is persisted.
func (c *Config) TokenPath() string {
	return filepath.Join(c.StateDir, "token.json")
}

// SettingsPath returns the durable calendar-selection file.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.StateDir, "settings.yaml")
}

// Owners returns the valid task owner values.
func (c *Config) Owners() []string {
	return []string{c.Partners[0], c.Partners[1], "Shared"}
}
