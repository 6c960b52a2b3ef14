// Package config provides centralized timeout constants for the application.
//
// The front-end renders pages synchronously except for debounced text search,
// which runs on a timer goroutine and is bounded by APIRequest.
package config

import "time"

// HTTP server timeouts
const (
	// HTTPRead bounds reading a browser request. Forms are small.
	HTTPRead = 10 * time.Second

	// HTTPWrite must cover a code search round trip plus rendering.
	HTTPWrite = 45 * time.Second

	// HTTPIdle is the keep-alive idle timeout.
	HTTPIdle = 120 * time.Second
)

// Remote API timeouts
const (
	// APIRequest is the default timeout for a single call to the matching API.
	APIRequest = 15 * time.Second

	// APIRetryInitial is the first backoff delay for retried GETs.
	APIRetryInitial = 500 * time.Millisecond

	// ReadinessCheckTimeout bounds the API ping done by /readyz.
	ReadinessCheckTimeout = 3 * time.Second
)

// Interaction timings
const (
	// SearchDebounce is the default quiet window for text search.
	SearchDebounce = 500 * time.Millisecond

	// SessionIdle is the default idle expiry of a browser session.
	SessionIdle = 2 * time.Hour

	// SessionSweepInterval is how often expired sessions are dropped.
	SessionSweepInterval = 5 * time.Minute
)

// Background job intervals
const (
	// LedgerCleanupInterval is how often old feedback votes are pruned.
	LedgerCleanupInterval = 12 * time.Hour

	// MetricsUpdateInterval is how often gauge metrics are refreshed.
	MetricsUpdateInterval = time.Minute

	// RateLimiterCleanupInterval is how often idle client limiters are removed.
	RateLimiterCleanupInterval = 5 * time.Minute
)

// GracefulShutdown is the default timeout for graceful server shutdown.
const GracefulShutdown = 30 * time.Second
