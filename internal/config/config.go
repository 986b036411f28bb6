package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config root configuration
type Config struct {
	Workspace   WorkspaceConfig   `mapstructure:"workspace"`
	Trust       TrustConfig       `mapstructure:"trust"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Supervisors []string          `mapstructure:"supervisors"`
	Directives  map[string]string `mapstructure:"directives"`
	Gateway     GatewayConfig     `mapstructure:"gateway"`
	Channels    ChannelsConfig    `mapstructure:"channels"`
	Log         LogConfig         `mapstructure:"log"`
}

// WorkspaceConfig locates runtime state on disk
type WorkspaceConfig struct {
	Path string `mapstructure:"path"`
}

// TrustConfig identity feed settings
type TrustConfig struct {
	// IdentityFile is written by the external trust computation
	// pipeline; warden only reads it.
	IdentityFile           string `mapstructure:"identity_file"`
	RefreshEnabled         bool   `mapstructure:"refresh_enabled"`
	RefreshCron            string `mapstructure:"refresh_cron"`
	RefreshIntervalMinutes int    `mapstructure:"refresh_interval_minutes"`
}

// PermissionsConfig requirement table settings
type PermissionsConfig struct {
	File string `mapstructure:"file"`
}

// SchedulerConfig prediction scheduler settings
type SchedulerConfig struct {
	MaxPending           int `mapstructure:"max_pending"`
	MinTimeoutSeconds    int `mapstructure:"min_timeout_seconds"`
	MaxTimeoutSeconds    int `mapstructure:"max_timeout_seconds"`
	RedirectGraceSeconds int `mapstructure:"redirect_grace_seconds"`
}

// GatewayConfig operational HTTP server settings
type GatewayConfig struct {
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port"`
	Token string `mapstructure:"token"`
}

// ChannelsConfig channel settings
type ChannelsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig telegram bot settings
type TelegramConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Token     string   `mapstructure:"token"`
	AllowFrom []string `mapstructure:"allow_from"`
}

// LogConfig application logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// DefaultConfig returns config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Workspace: WorkspaceConfig{},
		Trust: TrustConfig{
			RefreshEnabled:         true,
			RefreshIntervalMinutes: 15,
		},
		Permissions: PermissionsConfig{},
		Scheduler: SchedulerConfig{
			MaxPending:           8,
			MinTimeoutSeconds:    5,
			MaxTimeoutSeconds:    60,
			RedirectGraceSeconds: 2,
		},
		Supervisors: []string{},
		Directives:  map[string]string{},
		Gateway: GatewayConfig{
			Host:  "0.0.0.0",
			Port:  18890,
			Token: "",
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				AllowFrom: []string{},
			},
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
	}
}

// ConfigDir returns the warden config directory
func ConfigDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".warden")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// Load loads config from file or returns defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	configPath := ConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := Save(cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("WARDEN")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to file
func Save(cfg *Config) error {
	configPath := ConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// Validate checks that the configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	s := &c.Scheduler

	if s.MaxPending < 0 {
		return fmt.Errorf("scheduler.max_pending must not be negative, got %d", s.MaxPending)
	}
	if s.MaxPending == 0 {
		s.MaxPending = 8
	}

	if s.MinTimeoutSeconds < 0 || s.MaxTimeoutSeconds < 0 {
		return fmt.Errorf("scheduler timeouts must not be negative, got min=%d max=%d", s.MinTimeoutSeconds, s.MaxTimeoutSeconds)
	}
	if s.MinTimeoutSeconds == 0 {
		s.MinTimeoutSeconds = 5
	}
	if s.MaxTimeoutSeconds == 0 {
		s.MaxTimeoutSeconds = 60
	}
	if s.MaxTimeoutSeconds < s.MinTimeoutSeconds {
		return fmt.Errorf("scheduler.max_timeout_seconds (%d) must not be below min_timeout_seconds (%d)", s.MaxTimeoutSeconds, s.MinTimeoutSeconds)
	}
	if s.RedirectGraceSeconds < 0 {
		return fmt.Errorf("scheduler.redirect_grace_seconds must not be negative, got %d", s.RedirectGraceSeconds)
	}
	if s.RedirectGraceSeconds == 0 {
		s.RedirectGraceSeconds = 2
	}

	if c.Trust.RefreshIntervalMinutes < 0 {
		return fmt.Errorf("trust.refresh_interval_minutes must not be negative, got %d", c.Trust.RefreshIntervalMinutes)
	}
	if c.Trust.RefreshIntervalMinutes == 0 {
		c.Trust.RefreshIntervalMinutes = 15
	}

	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port must be between 1 and 65535, got %d", c.Gateway.Port)
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	return nil
}

// WorkspacePath returns the expanded workspace path
func (c *Config) WorkspacePath() string {
	path := strings.TrimSpace(c.Workspace.Path)
	if path == "" {
		return filepath.Join(ConfigDir(), "workspace")
	}
	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			slog.Warn("failed to resolve home directory for workspace path", "error", err)
			return filepath.Join(ConfigDir(), "workspace")
		}
		rest := strings.TrimPrefix(path[1:], string(filepath.Separator))
		rest = strings.TrimPrefix(rest, "/")
		return filepath.Join(homeDir, rest)
	}
	return path
}

// IdentityFilePath returns the identity file location, defaulting to
// <workspace>/state/identity.json.
func (c *Config) IdentityFilePath() string {
	if path := strings.TrimSpace(c.Trust.IdentityFile); path != "" {
		return path
	}
	return filepath.Join(c.WorkspacePath(), "state", "identity.json")
}

// PermissionsFilePath returns the requirement table location, defaulting
// to <workspace>/permissions.json.
func (c *Config) PermissionsFilePath() string {
	if path := strings.TrimSpace(c.Permissions.File); path != "" {
		return path
	}
	return filepath.Join(c.WorkspacePath(), "permissions.json")
}
