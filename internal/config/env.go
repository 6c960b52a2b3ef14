// Package config defines environment variable keys for configuration.
package config

//nolint:gosec,revive // Environment variable keys are not credentials and do not need per-const comments.
const (
	// Course matching API (required)
	EnvAPIBaseURL     = "API_BASE_URL"
	EnvAPIAccessToken = "API_ACCESS_TOKEN"
	EnvAPITimeout     = "API_TIMEOUT"
	EnvAPIMaxRetries  = "API_MAX_RETRIES"

	// Server
	EnvPort            = "PORT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
	EnvCookieSecure    = "COOKIE_SECURE"

	// Interaction
	EnvDefaultLocale  = "DEFAULT_LOCALE"
	EnvSearchDebounce = "SEARCH_DEBOUNCE"
	EnvSessionTTL     = "SESSION_TTL"
	EnvSessionMax     = "SESSION_MAX"

	// Feedback ledger
	EnvFeedbackLedgerPath      = "FEEDBACK_LEDGER_PATH"
	EnvFeedbackLedgerRetention = "FEEDBACK_LEDGER_RETENTION"

	// Rate limits
	EnvRateLimitBurst        = "RATE_LIMIT_BURST"
	EnvRateLimitRefillPerSec = "RATE_LIMIT_REFILL_PER_SEC"

	// Metrics auth
	EnvMetricsUsername = "METRICS_USERNAME"
	EnvMetricsPassword = "METRICS_PASSWORD"

	// Sentry
	EnvSentryDSN         = "SENTRY_DSN"
	EnvSentryEnvironment = "SENTRY_ENVIRONMENT"
	EnvSentrySampleRate  = "SENTRY_SAMPLE_RATE"

	// Better Stack
	EnvBetterStackToken    = "BETTERSTACK_TOKEN"
	EnvBetterStackEndpoint = "BETTERSTACK_ENDPOINT"
)
