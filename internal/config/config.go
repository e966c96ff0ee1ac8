// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	RedisURL    string
	DBPath      string

	OpenAIAPIKey string
	OpenAIModel  string
	ImageModel   string

	RefinerURL    string
	RefinerAPIKey string

	JWTSecret string
	TokenTTL  time.Duration

	MediaDir       string
	MediaURLPrefix string

	SessionTTL        time.Duration
	CompletionTimeout time.Duration
	ImageBatchTimeout time.Duration
	ImageRetries      int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		FrontendURL:       getEnv("FRONTEND_URL", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		DBPath:            getEnv("DB_PATH", "./data/storylab.db"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		ImageModel:        getEnv("IMAGE_MODEL", "dall-e-3"),
		RefinerURL:        getEnv("REFINER_URL", ""),
		RefinerAPIKey:     getEnv("REFINER_API_KEY", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		TokenTTL:          getEnvDuration("TOKEN_TTL", 24*time.Hour),
		MediaDir:          getEnv("MEDIA_DIR", "./data/illustrations"),
		MediaURLPrefix:    getEnv("MEDIA_URL_PREFIX", "/static/illustrations/"),
		SessionTTL:        getEnvDuration("SESSION_TTL", 30*time.Minute),
		CompletionTimeout: getEnvDuration("COMPLETION_TIMEOUT", 60*time.Second),
		ImageBatchTimeout: getEnvDuration("IMAGE_BATCH_TIMEOUT", 3*time.Minute),
		ImageRetries:      getEnvInt("IMAGE_RETRIES", 3),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET cannot be empty")
	}
	if c.MediaDir == "" {
		return fmt.Errorf("MEDIA_DIR cannot be empty")
	}
	if !strings.HasSuffix(c.MediaURLPrefix, "/") {
		return fmt.Errorf("MEDIA_URL_PREFIX must end with a slash")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.ImageRetries < 0 {
		return fmt.Errorf("IMAGE_RETRIES must be >= 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
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
