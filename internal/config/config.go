// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// ErrNoProviderConfigured is returned when no provider API key is set, since
// the service cannot accept a single generation request without one.
var ErrNoProviderConfigured = errors.New("config: at least one provider API key is required")

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port int `env:"PORT, default=8080" json:"port"`

	// WebhookBaseURL is the public URL prefix providers deliver callbacks to,
	// e.g. "https://api.example.com". Empty disables callback URLs, which
	// restricts the service to synchronous providers.
	WebhookBaseURL string `env:"WEBHOOK_BASE_URL" json:"webhook_base_url,omitempty"`

	// Task store settings. Task records expire after TaskTTL; every write
	// restarts the clock. With REDIS_ADDR unset tasks live in process memory.
	TaskTTL   time.Duration `env:"TASK_TTL, default=1h" json:"task_ttl"`
	RedisAddr string        `env:"REDIS_ADDR" json:"redis_addr,omitempty"`
	RedisPass string        `env:"REDIS_PASSWORD" json:"-"` // Masked in JSON

	// Provider credentials. Absent keys disable the provider.
	ReplicateAPIToken      string `env:"REPLICATE_API_TOKEN" json:"-"`      // Masked in JSON
	ReplicateWebhookSecret string `env:"REPLICATE_WEBHOOK_SECRET" json:"-"` // Masked in JSON
	FalAPIKey              string `env:"FAL_API_KEY" json:"-"`              // Masked in JSON
	FalVerifyWebhooks      bool   `env:"FAL_VERIFY_WEBHOOKS, default=true" json:"fal_verify_webhooks"`
	KieAPIKey              string `env:"KIE_API_KEY" json:"-"`        // Masked in JSON
	KieWebhookSecret       string `env:"KIE_WEBHOOK_SECRET" json:"-"` // Masked in JSON
	OpenAIAPIKey           string `env:"OPENAI_API_KEY" json:"-"`     // Masked in JSON

	// Optional staging storage settings for inline source images and
	// synchronous image results.
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3PublicBaseURL    string `env:"S3_PUBLIC_BASE_URL" json:"s3_public_base_url,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if staging storage configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// RedisEnabled returns true if a Redis address is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// Load reads configuration from environment variables using go-envconfig.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the service can do useful work with this configuration.
func (c *Config) Validate() error {
	if c.ReplicateAPIToken == "" && c.FalAPIKey == "" && c.KieAPIKey == "" && c.OpenAIAPIKey == "" {
		return ErrNoProviderConfigured
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, WebhookBaseURL: %s, TaskTTL: %s, RedisAddr: %s, S3Bucket: %s, S3Region: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.WebhookBaseURL,
		c.TaskTTL,
		c.RedisAddr,
		c.S3Bucket,
		c.S3Region,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
