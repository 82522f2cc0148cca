package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/yapay-ai/garmin-downloader/internal/config"
	"github.com/yapay-ai/garmin-downloader/pkg/garmin"
	"github.com/yapay-ai/garmin-downloader/pkg/notify"
	"github.com/yapay-ai/garmin-downloader/pkg/session"
	"github.com/yapay-ai/garmin-downloader/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gdl",
	Short: "Garmin Downloader - export Garmin Connect health data to CSV",
	Long: `Garmin Downloader exports body battery and heart rate time series from
Garmin Connect into one CSV file per metric and month, using a session token
stored by 'gdl auth'.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.gdl/config.yaml)")
}

// loadConfig loads the configuration.
func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// newLogger creates a structured logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	return slog.New(handler)
}

// initClient loads the persisted session and builds a Garmin Connect client on it.
func initClient(ctx context.Context, cfg *config.Config, loc *time.Location, logger *slog.Logger) (*garmin.Client, error) {
	timeout, err := cfg.APITimeout()
	if err != nil {
		return nil, err
	}

	dir, err := session.ResolveDir(cfg.Session.TokenDir)
	if err != nil {
		return nil, err
	}
	conf := session.NewOAuthConfig(cfg.Session.SSOURL, cfg.Session.ClientID)
	s, err := session.Load(ctx, dir, conf, timeout)
	if err != nil {
		return nil, err
	}
	if tok, err := s.Token(); err == nil {
		logger.Debug("session ready", "token_dir", dir, "expiry", tok.Expiry)
	}

	var endpoints *garmin.Endpoints
	if cfg.API.EndpointsFile != "" {
		endpoints, err = garmin.LoadEndpoints(cfg.API.EndpointsFile)
		if err != nil {
			return nil, err
		}
	}

	client := garmin.NewClient(cfg.API.BaseURL, s, endpoints, logger).
		WithClock(func() time.Time { return time.Now().In(loc) })
	return client, nil
}

// initJournal opens the export journal, or returns nil when it is disabled.
func initJournal(cfg *config.Config) (*storage.SQLite, error) {
	if !cfg.Storage.Enabled {
		return nil, nil
	}
	return storage.NewSQLite(cfg.Storage.Path)
}

// initNotifiers creates run summary notifiers from config.
func initNotifiers(cfg *config.Config) []notify.Notifier {
	var notifiers []notify.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(
			cfg.Alerts.Slack.WebhookURL,
			cfg.Alerts.Slack.Channel,
		))
	}

	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(
			cfg.Alerts.Webhook.URL,
			cfg.Alerts.Webhook.Secret,
		))
	}

	return notifiers
}
