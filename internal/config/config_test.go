package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		APIBaseURL:              "https://api.example.com/v1",
		APITimeout:              15 * time.Second,
		APIMaxRetries:           2,
		Port:                    "3000",
		LogLevel:                "info",
		DefaultLocale:           "fi",
		SearchDebounce:          500 * time.Millisecond,
		SessionTTL:              2 * time.Hour,
		SessionMax:              10000,
		FeedbackLedgerRetention: 720 * time.Hour,
		RateLimitBurst:          20,
		RateLimitRefillPerSec:   2,
		SentrySampleRate:        1,
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvAPIBaseURL, "https://api.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.APIBaseURL)
	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, "fi", cfg.DefaultLocale)
	assert.Equal(t, SearchDebounce, cfg.SearchDebounce)
	assert.Equal(t, 2, cfg.APIMaxRetries)
	assert.Equal(t, 10000, cfg.SessionMax)
	assert.False(t, cfg.HasFeedbackLedger())
}

func TestLoad_MissingBaseURLFailsFast(t *testing.T) {
	t.Setenv(EnvAPIBaseURL, "")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config validation failed")
	assert.Contains(t, err.Error(), EnvAPIBaseURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv(EnvAPIBaseURL, "http://localhost:8080")
	t.Setenv(EnvSearchDebounce, "250ms")
	t.Setenv(EnvDefaultLocale, "en")
	t.Setenv(EnvFeedbackLedgerPath, "/tmp/votes.db")
	t.Setenv(EnvAPIMaxRetries, "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.SearchDebounce)
	assert.Equal(t, "en", cfg.DefaultLocale)
	assert.True(t, cfg.HasFeedbackLedger())
	assert.Equal(t, 2, cfg.APIMaxRetries, "invalid int falls back to default")
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantErr     bool
		errContains string
	}{
		{"https", "https://api.example.com", false, ""},
		{"http with path", "http://localhost:8080/api", false, ""},
		{"empty", "", true, "is required"},
		{"relative", "/api", true, "absolute"},
		{"no host", "https://", true, "absolute"},
		{"other scheme", "ftp://example.com", true, "http or https"},
		{"garbage", "://bad", true, "not a valid URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBaseURL(tt.raw)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		wantErr     bool
		errContains string
	}{
		{"valid config", func(*Config) {}, false, ""},
		{"bad locale", func(c *Config) { c.DefaultLocale = "sv" }, true, "DEFAULT_LOCALE"},
		{"negative retries", func(c *Config) { c.APIMaxRetries = -1 }, true, "API_MAX_RETRIES"},
		{"zero debounce", func(c *Config) { c.SearchDebounce = 0 }, true, "SEARCH_DEBOUNCE"},
		{"empty port", func(c *Config) { c.Port = "" }, true, "PORT"},
		{"zero session cap", func(c *Config) { c.SessionMax = 0 }, true, "SESSION_MAX"},
		{"ledger without retention", func(c *Config) {
			c.FeedbackLedgerPath = "votes.db"
			c.FeedbackLedgerRetention = 0
		}, true, "FEEDBACK_LEDGER_RETENTION"},
		{"sample rate out of range", func(c *Config) { c.SentrySampleRate = 2 }, true, "SENTRY_SAMPLE_RATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.APIBaseURL = ""
	cfg.Port = ""

	err := cfg.Validate()
	require.Error(t, err)
	lines := strings.Split(err.Error(), "\n")
	assert.Len(t, lines, 2)
}

func TestGetBoolEnv(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	assert.True(t, getBoolEnv("TEST_BOOL", false))

	t.Setenv("TEST_BOOL", "maybe")
	assert.False(t, getBoolEnv("TEST_BOOL", false))
}

func TestGetDurationEnv(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"valid duration", "5s", 5 * time.Second},
		{"invalid duration", "invalid", time.Second},
		{"empty value", "", time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.value)
			assert.Equal(t, tt.want, getDurationEnv("TEST_DURATION", time.Second))
		})
	}
}
