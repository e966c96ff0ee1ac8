package config

import (
	"os"
	"testing"
	"time"
)

// clearEnv unsets keys for the duration of the test.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func validConfig() *Config {
	return &Config{
		Port:           "8080",
		DBPath:         "./data/storylab.db",
		JWTSecret:      "test-secret",
		MediaDir:       "./data/illustrations",
		MediaURLPrefix: "/static/illustrations/",
		SessionTTL:     30 * time.Minute,
		ImageRetries:   3,
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t, "PORT", "OPENAI_MODEL", "IMAGE_MODEL", "SESSION_TTL", "IMAGE_RETRIES", "MEDIA_URL_PREFIX")
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Errorf("OpenAIModel = %q", cfg.OpenAIModel)
	}
	if cfg.ImageModel != "dall-e-3" {
		t.Errorf("ImageModel = %q", cfg.ImageModel)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v, want 30m", cfg.SessionTTL)
	}
	if cfg.ImageRetries != 3 {
		t.Errorf("ImageRetries = %d, want 3", cfg.ImageRetries)
	}
	if cfg.MediaURLPrefix != "/static/illustrations/" {
		t.Errorf("MediaURLPrefix = %q", cfg.MediaURLPrefix)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "9000")
	t.Setenv("SESSION_TTL", "10m")
	t.Setenv("IMAGE_RETRIES", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9000" {
		t.Errorf("Port = %q, want 9000", cfg.Port)
	}
	if cfg.SessionTTL != 10*time.Minute {
		t.Errorf("SessionTTL = %v, want 10m", cfg.SessionTTL)
	}
	if cfg.ImageRetries != 1 {
		t.Errorf("ImageRetries = %d, want 1", cfg.ImageRetries)
	}
}

func TestLoad_RequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Error("Load without JWT_SECRET succeeded, want error")
	}
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SESSION_TTL", "not-a-duration")
	t.Setenv("IMAGE_RETRIES", "lots")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("SessionTTL = %v, want fallback 30m", cfg.SessionTTL)
	}
	if cfg.ImageRetries != 3 {
		t.Errorf("ImageRetries = %d, want fallback 3", cfg.ImageRetries)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"empty port", func(c *Config) { c.Port = "" }, true},
		{"empty db path", func(c *Config) { c.DBPath = "" }, true},
		{"empty secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"empty media dir", func(c *Config) { c.MediaDir = "" }, true},
		{"prefix without slash", func(c *Config) { c.MediaURLPrefix = "/static/illustrations" }, true},
		{"zero session TTL", func(c *Config) { c.SessionTTL = 0 }, true},
		{"negative retries", func(c *Config) { c.ImageRetries = -1 }, true},
		{"zero retries allowed", func(c *Config) { c.ImageRetries = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_IsDevelopment(t *testing.T) {
	tests := []struct {
		frontendURL string
		want        bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:3000", true},
		{"https://storylab.example.com", false},
	}

	for _, tt := range tests {
		cfg := validConfig()
		cfg.FrontendURL = tt.frontendURL
		if got := cfg.IsDevelopment(); got != tt.want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", tt.frontendURL, got, tt.want)
		}
	}
}
