package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all garmin-downloader configuration.
type Config struct {
	Session SessionConfig `mapstructure:"session"`
	API     APIConfig     `mapstructure:"api"`
	Export  ExportConfig  `mapstructure:"export"`
	Storage StorageConfig `mapstructure:"storage"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SessionConfig defines where the session token lives and how it is obtained.
type SessionConfig struct {
	TokenDir string `mapstructure:"token_dir"`
	SSOURL   string `mapstructure:"sso_url"`
	ClientID string `mapstructure:"client_id"`
}

// APIConfig defines the Garmin Connect API settings.
type APIConfig struct {
	BaseURL       string `mapstructure:"base_url"`
	Timeout       string `mapstructure:"timeout"`
	EndpointsFile string `mapstructure:"endpoints_file"`
}

// ExportConfig defines export defaults.
type ExportConfig struct {
	OutputDir       string `mapstructure:"output_dir"`
	ContinueOnError bool   `mapstructure:"continue_on_error"`
	Timezone        string `mapstructure:"timezone"`
}

// StorageConfig defines the export journal database.
type StorageConfig struct {
	Path    string `mapstructure:"path"`
	Enabled bool   `mapstructure:"enabled"`
}

// AlertsConfig defines run summary integrations.
type AlertsConfig struct {
	Slack   SlackConfig   `mapstructure:"slack"`
	Webhook WebhookConfig `mapstructure:"webhook"`
}

// SlackConfig defines Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	WebhookURL string `mapstructure:"webhook_url"`
	Channel    string `mapstructure:"channel"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Secret  string `mapstructure:"secret"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("find home directory: %w", err)
		}

		v.AddConfigPath(filepath.Join(home, ".gdl"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Defaults
	home, _ := os.UserHomeDir()
	v.SetDefault("session.token_dir", "~/.garth")
	v.SetDefault("session.sso_url", "https://connectapi.garmin.com/oauth-service/oauth/token")
	v.SetDefault("session.client_id", "garmin-downloader")
	v.SetDefault("api.base_url", "https://connectapi.garmin.com")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.endpoints_file", "")
	v.SetDefault("export.output_dir", ".")
	v.SetDefault("export.continue_on_error", false)
	v.SetDefault("export.timezone", "Local")
	v.SetDefault("storage.path", filepath.Join(home, ".gdl", "history.db"))
	v.SetDefault("storage.enabled", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("alerts.slack.enabled", false)
	v.SetDefault("alerts.slack.webhook_url", "")
	v.SetDefault("alerts.slack.channel", "#garmin-exports")
	v.SetDefault("alerts.webhook.enabled", false)
	v.SetDefault("alerts.webhook.url", "")
	v.SetDefault("alerts.webhook.secret", "")

	// Environment variables
	v.SetEnvPrefix("GDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if _, err := cfg.APITimeout(); err != nil {
		return nil, err
	}
	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// APITimeout parses api.timeout.
func (c *Config) APITimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parse api.timeout %q: %w", c.API.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("api.timeout must be positive, got %s", d)
	}
	return d, nil
}

// Location resolves export.timezone. An empty value or "Local" is the
// machine's local zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Export.Timezone == "" || c.Export.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Export.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load export.timezone: %w", err)
	}
	return loc, nil
}
