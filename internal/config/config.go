// Package config provides application configuration management.
// It loads settings from environment variables (optionally seeded from a
// .env file) and validates them before the server starts.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Course matching API
	APIBaseURL     string
	APIAccessToken string // Optional bearer token sent with every API call
	APITimeout     time.Duration
	APIMaxRetries  int

	// Server Configuration
	Port            string
	LogLevel        string
	ShutdownTimeout time.Duration
	CookieSecure    bool // mark session cookies Secure (serve behind HTTPS)

	// Interaction Configuration
	DefaultLocale  string        // "fi" or "en"
	SearchDebounce time.Duration // Quiet window before a text search is sent
	SessionTTL     time.Duration // Idle expiry of browser sessions
	SessionMax     int           // Live session cap; the least recently seen is evicted

	// Feedback ledger (empty path = disabled)
	FeedbackLedgerPath      string
	FeedbackLedgerRetention time.Duration

	// Per-client rate limit for search and vote actions
	RateLimitBurst        float64
	RateLimitRefillPerSec float64

	// Metrics Authentication
	MetricsUsername string
	MetricsPassword string // empty = /metrics is open

	// Error tracking
	SentryDSN         string
	SentryEnvironment string
	SentrySampleRate  float64

	// Log shipping
	BetterStackToken    string
	BetterStackEndpoint string
}

// Load reads configuration from environment variables
// It attempts to load .env file first, then reads from env vars
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		APIBaseURL:     getEnv(EnvAPIBaseURL, ""),
		APIAccessToken: getEnv(EnvAPIAccessToken, ""),
		APITimeout:     getDurationEnv(EnvAPITimeout, APIRequest),
		APIMaxRetries:  getIntEnv(EnvAPIMaxRetries, 2),

		Port:            getEnv(EnvPort, "3000"),
		LogLevel:        getEnv(EnvLogLevel, "info"),
		ShutdownTimeout: getDurationEnv(EnvShutdownTimeout, GracefulShutdown),
		CookieSecure:    getBoolEnv(EnvCookieSecure, false),

		DefaultLocale:  getEnv(EnvDefaultLocale, "fi"),
		SearchDebounce: getDurationEnv(EnvSearchDebounce, SearchDebounce),
		SessionTTL:     getDurationEnv(EnvSessionTTL, SessionIdle),
		SessionMax:     getIntEnv(EnvSessionMax, 10000),

		FeedbackLedgerPath:      getEnv(EnvFeedbackLedgerPath, ""),
		FeedbackLedgerRetention: getDurationEnv(EnvFeedbackLedgerRetention, 720*time.Hour),

		RateLimitBurst:        getFloatEnv(EnvRateLimitBurst, 20),
		RateLimitRefillPerSec: getFloatEnv(EnvRateLimitRefillPerSec, 2),

		MetricsUsername: getEnv(EnvMetricsUsername, "prometheus"),
		MetricsPassword: getEnv(EnvMetricsPassword, ""),

		SentryDSN:         getEnv(EnvSentryDSN, ""),
		SentryEnvironment: getEnv(EnvSentryEnvironment, "production"),
		SentrySampleRate:  getFloatEnv(EnvSentrySampleRate, 1.0),

		BetterStackToken:    getEnv(EnvBetterStackToken, ""),
		BetterStackEndpoint: getEnv(EnvBetterStackEndpoint, ""),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if required configuration values are set
func (c *Config) Validate() error {
	var errs []error

	if err := ValidateBaseURL(c.APIBaseURL); err != nil {
		errs = append(errs, err)
	}
	if c.Port == "" {
		errs = append(errs, errors.New("PORT is required"))
	}
	if c.APITimeout <= 0 {
		errs = append(errs, fmt.Errorf("API_TIMEOUT must be positive, got %v", c.APITimeout))
	}
	if c.APIMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("API_MAX_RETRIES cannot be negative, got %d", c.APIMaxRetries))
	}
	if c.DefaultLocale != "fi" && c.DefaultLocale != "en" {
		errs = append(errs, fmt.Errorf("DEFAULT_LOCALE must be fi or en, got %q", c.DefaultLocale))
	}
	if c.SearchDebounce <= 0 {
		errs = append(errs, fmt.Errorf("SEARCH_DEBOUNCE must be positive, got %v", c.SearchDebounce))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_TTL must be positive, got %v", c.SessionTTL))
	}
	if c.SessionMax < 1 {
		errs = append(errs, fmt.Errorf("SESSION_MAX must be at least 1, got %d", c.SessionMax))
	}
	if c.FeedbackLedgerPath != "" && c.FeedbackLedgerRetention <= 0 {
		errs = append(errs, fmt.Errorf("FEEDBACK_LEDGER_RETENTION must be positive, got %v", c.FeedbackLedgerRetention))
	}
	if c.RateLimitBurst < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_BURST must be at least 1, got %v", c.RateLimitBurst))
	}
	if c.RateLimitRefillPerSec <= 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_REFILL_PER_SEC must be positive, got %v", c.RateLimitRefillPerSec))
	}
	if c.SentrySampleRate < 0 || c.SentrySampleRate > 1 {
		errs = append(errs, fmt.Errorf("SENTRY_SAMPLE_RATE must be within [0, 1], got %v", c.SentrySampleRate))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ValidateBaseURL reports whether raw is an absolute http(s) URL with a host.
func ValidateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", EnvAPIBaseURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", EnvAPIBaseURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", EnvAPIBaseURL, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", EnvAPIBaseURL, u.Scheme)
	}
	return nil
}

// HasFeedbackLedger reports whether votes are mirrored to the local ledger.
func (c *Config) HasFeedbackLedger() bool {
	return c.FeedbackLedgerPath != ""
}

// getEnv retrieves environment variable with fallback to default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv retrieves integer environment variable with fallback to default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnv retrieves boolean environment variable with fallback to default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDurationEnv retrieves duration environment variable with fallback to default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getFloatEnv retrieves float64 environment variable with fallback to default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
