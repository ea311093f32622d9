// Package config provides application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingCredential is returned when a required secret is not set.
var ErrMissingCredential = errors.New("missing required credential")

// Config holds all application configuration.
type Config struct {
	Port          string
	GRPCPort      string // empty disables the gRPC health server
	AllowedOrigin string
	DBPath        string
	CatalogPath   string // empty uses the embedded catalog
	Telegram      TelegramConfig
	Completion    CompletionConfig
	Transcript    TranscriptConfig
	RateLimit     RateLimitConfig
}

// TelegramConfig controls the Telegram long-polling transport.
type TelegramConfig struct {
	Enabled bool
	Token   string
}

// CompletionConfig controls the outbound completion backend.
type CompletionConfig struct {
	APIKey        string
	BaseURL       string
	Model         string
	Timeout       time.Duration
	MaxConcurrent int
}

// TranscriptConfig controls the SQLite turn transcript.
type TranscriptConfig struct {
	Enabled   bool
	Retention time.Duration
	QueueSize int
}

// RateLimitConfig controls per-user throttling of backend-bound events.
// PerMinute 0 disables it.
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// LoadEnvFile loads variables from a dotenv file without overriding ones
// already set. An empty path means ".env".
func LoadEnvFile(path string) error {
	if path == "" {
		return godotenv.Load()
	}
	return godotenv.Load(path)
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("TRANSCRIPT_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		GRPCPort:      getEnv("GRPC_PORT", "8081"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "*"),
		DBPath:        getEnv("DB_PATH", "./data/askzen.db"),
		CatalogPath:   getEnv("CATALOG_PATH", ""),
		Telegram: TelegramConfig{
			Enabled: getEnvBool("TELEGRAM_ENABLED", true),
			Token:   strings.TrimSpace(getEnv("TELEGRAM_BOT_TOKEN", "")),
		},
		Completion: CompletionConfig{
			APIKey:        strings.TrimSpace(getEnv("OPENROUTER_API_KEY", "")),
			BaseURL:       getEnv("COMPLETION_BASE_URL", "https://openrouter.ai/api/v1"),
			Model:         getEnv("COMPLETION_MODEL", "mistralai/mistral-7b-instruct"),
			Timeout:       getEnvDuration("COMPLETION_TIMEOUT", 15*time.Second),
			MaxConcurrent: getEnvInt("COMPLETION_MAX_CONCURRENT", 8),
		},
		Transcript: TranscriptConfig{
			Enabled:   getEnvBool("TRANSCRIPT_ENABLED", true),
			Retention: getEnvDuration("TRANSCRIPT_RETENTION", 168*time.Hour),
			QueueSize: queueSize,
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
			Burst:     getEnvInt("RATE_LIMIT_BURST", 10),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("%w: TELEGRAM_BOT_TOKEN", ErrMissingCredential)
	}
	if c.Completion.APIKey == "" {
		return fmt.Errorf("%w: OPENROUTER_API_KEY", ErrMissingCredential)
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.Completion.BaseURL == "" {
		return fmt.Errorf("COMPLETION_BASE_URL cannot be empty")
	}
	if c.Completion.Model == "" {
		return fmt.Errorf("COMPLETION_MODEL cannot be empty")
	}
	if c.Completion.Timeout <= 0 {
		return fmt.Errorf("COMPLETION_TIMEOUT must be > 0")
	}
	if c.Completion.MaxConcurrent <= 0 {
		return fmt.Errorf("COMPLETION_MAX_CONCURRENT must be > 0")
	}
	if c.RateLimit.PerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be >= 0")
	}
	if c.Transcript.Enabled {
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
		if c.Transcript.Retention < 0 {
			return fmt.Errorf("TRANSCRIPT_RETENTION must be >= 0")
		}
	}
	return nil
}

// IsDevelopment returns true if the HTTP surface is not pinned to a real origin.
func (c *Config) IsDevelopment() bool {
	return c.AllowedOrigin == "" || c.AllowedOrigin == "*" ||
		strings.Contains(c.AllowedOrigin, "localhost") ||
		strings.Contains(c.AllowedOrigin, "127.0.0.1")
}

// AllowedOrigins splits ALLOWED_ORIGIN on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowedOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
