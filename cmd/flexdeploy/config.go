package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/artpar/flexdeploy/internal/shell/mirror"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Endpoints EndpointsConfig `mapstructure:"endpoints"`
	Build     BuildConfig     `mapstructure:"build"`
	Features  FeaturesConfig  `mapstructure:"features"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Mirror    MirrorConfig    `mapstructure:"mirror"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthConfig holds the credentials every remote call is made with.
// Usernames starting with AC are account sids; anything else is an API key.
type AuthConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// EndpointsConfig holds remote API base URLs.
type EndpointsConfig struct {
	Serverless       string        `mapstructure:"serverless"`
	ServerlessUpload string        `mapstructure:"serverless_upload"`
	Flex             string        `mapstructure:"flex"`
	Accounts         string        `mapstructure:"accounts"`
	ServiceName      string        `mapstructure:"service_name"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// BuildConfig controls how long to wait for a remote build.
type BuildConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
}

// FeaturesConfig holds process-wide toggles.
type FeaturesConfig struct {
	// PluginsPilot deploys through the gated preview API without --pilot.
	PluginsPilot bool `mapstructure:"plugins_pilot"`

	// PilotFlag is the feature flag checked by the pilot gate.
	PilotFlag string `mapstructure:"pilot_flag"`

	// AllowUnbundledReact enables the host UI compatibility check.
	AllowUnbundledReact bool `mapstructure:"allow_unbundled_react"`
}

// LedgerConfig holds the local deploy ledger settings.
type LedgerConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// DSN is the SQLite file. Empty means <user config dir>/flexdeploy/ledger.db.
	DSN string `mapstructure:"dsn"`
}

// MirrorConfig holds the bundle archive settings.
type MirrorConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
}

// Archive converts to the mirror package's config.
func (c MirrorConfig) Archive() mirror.Config {
	return mirror.Config{
		Enabled:   c.Enabled,
		Endpoint:  c.Endpoint,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Region:    c.Region,
		UseSSL:    c.UseSSL,
		Bucket:    c.Bucket,
	}
}

// LedgerPath returns the SQLite path, creating its directory when the
// default location is used.
func (c LedgerConfig) LedgerPath() (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	dir = filepath.Join(dir, "flexdeploy")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return filepath.Join(dir, "ledger.db"), nil
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")
	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")

	v.SetDefault("endpoints.serverless", "https://serverless.twilio.com")
	v.SetDefault("endpoints.serverless_upload", "https://serverless-upload.twilio.com")
	v.SetDefault("endpoints.flex", "https://flex-api.twilio.com")
	v.SetDefault("endpoints.accounts", "https://api.twilio.com")
	v.SetDefault("endpoints.service_name", "default")
	v.SetDefault("endpoints.timeout", "30s")

	v.SetDefault("build.poll_interval", "2s")
	v.SetDefault("build.poll_timeout", "5m")

	v.SetDefault("features.plugins_pilot", false)
	v.SetDefault("features.pilot_flag", "plugins_pilot")
	v.SetDefault("features.allow_unbundled_react", false)

	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.dsn", "")

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.endpoint", "")
	v.SetDefault("mirror.access_key", "")
	v.SetDefault("mirror.secret_key", "")
	v.SetDefault("mirror.region", "us-east-1")
	v.SetDefault("mirror.use_ssl", true)
	v.SetDefault("mirror.bucket", "flex-plugins")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// A missing file falls back to defaults; a broken one does not
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("FLEXDEPLOY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks settings that a deploy cannot run without.
func (c *Config) Validate() error {
	if c.Auth.Username == "" || c.Auth.Password == "" {
		return fmt.Errorf("auth.username and auth.password are required (FLEXDEPLOY_AUTH_USERNAME, FLEXDEPLOY_AUTH_PASSWORD)")
	}
	if err := c.Mirror.Archive().Validate(); err != nil {
		return fmt.Errorf("mirror: %w", err)
	}
	return nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format. Logs go
// to stderr so command output on stdout stays machine-readable.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
