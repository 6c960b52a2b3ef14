package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Course matching API metrics
	APIRequestsTotal   *prometheus.CounterVec
	APIDurationSeconds *prometheus.HistogramVec
	APIRetriesTotal    *prometheus.CounterVec

	// Search flow metrics
	DebounceTotal          *prometheus.CounterVec
	StaleResponsesDropped  *prometheus.CounterVec
	SingleflightDedupTotal *prometheus.CounterVec

	// Feedback metrics
	FeedbackVotesTotal *prometheus.CounterVec
	LedgerRows         prometheus.Gauge

	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsEvicted prometheus.Counter

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterDropped *prometheus.CounterVec
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		APIRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursematch_api_requests_total",
				Help: "Total number of course matching API requests by operation and status",
			},
			[]string{"op", "status"}, // status: success, error, unavailable
		),

		APIDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coursematch_api_duration_seconds",
				Help:    "Course matching API request duration in seconds by operation",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
			[]string{"op"}, // op: match_code, match_text, list_courses, feedback, ping
		),

		APIRetriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursematch_api_retries_total",
				Help: "Total number of retried course matching API requests by operation",
			},
			[]string{"op"},
		),

		DebounceTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursematch_debounce_total",
				Help: "Text search keystrokes by debounce outcome",
			},
			[]string{"outcome"}, // outcome: fired, coalesced, cancelled
		),

		StaleResponsesDropped: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursematch_stale_responses_dropped_total",
				Help: "Search responses discarded because a newer request was issued",
			},
			[]string{"mode"}, // mode: code, text
		),

		SingleflightDedupTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursematch_singleflight_dedup_total",
				Help: "Total number of deduplicated requests (requests that waited instead of executing)",
			},
			[]string{"op"},
		),

		FeedbackVotesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursematch_feedback_votes_total",
				Help: "Feedback votes by label and outcome",
			},
			[]string{"label", "status"}, // label: like, dislike; status: success, error
		),

		LedgerRows: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "coursematch_feedback_ledger_rows",
				Help: "Number of votes held in the local feedback ledger",
			},
		),

		ActiveSessions: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "coursematch_active_sessions",
				Help: "Number of live browser sessions",
			},
		),

		SessionsEvicted: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "coursematch_sessions_evicted_total",
				Help: "Sessions dropped to stay under the live session cap",
			},
		),

		HTTPErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursematch_http_errors_total",
				Help: "Total HTTP errors by type and route",
			},
			[]string{"error_type", "route"}, // error_type: rate_limit, bad_request, panic
		),

		RateLimiterDropped: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "coursematch_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"}, // limiter_type: client
		),
	}

	return m
}

// RecordAPIRequest records a course matching API call with status
func (m *Metrics) RecordAPIRequest(op, status string, duration float64) {
	m.APIRequestsTotal.WithLabelValues(op, status).Inc()
	m.APIDurationSeconds.WithLabelValues(op).Observe(duration)
}

// RecordAPIRetry records one retried API attempt
func (m *Metrics) RecordAPIRetry(op string) {
	m.APIRetriesTotal.WithLabelValues(op).Inc()
}

// RecordDebounce records what happened to a debounced keystroke
func (m *Metrics) RecordDebounce(outcome string) {
	m.DebounceTotal.WithLabelValues(outcome).Inc()
}

// RecordStaleResponse records a response discarded by the sequence guard
func (m *Metrics) RecordStaleResponse(mode string) {
	m.StaleResponsesDropped.WithLabelValues(mode).Inc()
}

// RecordSingleflightDedup records a deduplicated request
func (m *Metrics) RecordSingleflightDedup(op string) {
	m.SingleflightDedupTotal.WithLabelValues(op).Inc()
}

// RecordFeedbackVote records a feedback submission
func (m *Metrics) RecordFeedbackVote(label, status string) {
	m.FeedbackVotesTotal.WithLabelValues(label, status).Inc()
}

// SetLedgerRows sets the ledger size gauge
func (m *Metrics) SetLedgerRows(n int) {
	m.LedgerRows.Set(float64(n))
}

// SetActiveSessions sets the live session gauge
func (m *Metrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

// RecordSessionEvicted counts a session dropped by the session cap
func (m *Metrics) RecordSessionEvicted() {
	m.SessionsEvicted.Inc()
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, route string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, route).Inc()
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}
