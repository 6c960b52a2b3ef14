// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/coursematch/coursematch-web/internal/api"
	"github.com/coursematch/coursematch-web/internal/buildinfo"
	"github.com/coursematch/coursematch-web/internal/card"
	"github.com/coursematch/coursematch-web/internal/config"
	"github.com/coursematch/coursematch-web/internal/ctxutil"
	"github.com/coursematch/coursematch-web/internal/i18n"
	"github.com/coursematch/coursematch-web/internal/logger"
	"github.com/coursematch/coursematch-web/internal/metrics"
	"github.com/coursematch/coursematch-web/internal/ratelimit"
	"github.com/coursematch/coursematch-web/internal/sentry"
	"github.com/coursematch/coursematch-web/internal/session"
	"github.com/coursematch/coursematch-web/internal/storage"
	"github.com/coursematch/coursematch-web/internal/web"
)

// Application manages the application lifecycle and dependencies.
type Application struct {
	cfg      *config.Config
	logger   *logger.Logger
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	client   *api.Client
	ledger   *storage.DB // nil when the feedback ledger is disabled
	sessions *session.Store
	limiter  *ratelimit.KeyedLimiter
	router   *gin.Engine
	server   *http.Server
	wg       sync.WaitGroup // Track background goroutines for graceful shutdown
}

// Initialize creates and initializes a new application with all dependencies.
func Initialize(ctx context.Context, cfg *config.Config) (*Application, error) {
	log := logger.NewWithOptions(cfg.LogLevel, os.Stdout, logger.Options{
		BetterStackToken:    cfg.BetterStackToken,
		BetterStackEndpoint: cfg.BetterStackEndpoint,
	})

	log = log.WithField("service", "coursematch-web")
	if host, err := os.Hostname(); err == nil && host != "" {
		log = log.WithField("instance_id", host)
	}

	// Set as default logger so package-level slog.*Context() calls get the
	// session and request IDs through the ContextHandler.
	slog.SetDefault(log.Logger)

	log.WithField("release", buildinfo.Release()).Info("Initializing application...")
	if cfg.BetterStackToken != "" {
		log.WithField("endpoint", cfg.BetterStackEndpoint).Info("Better Stack logging enabled")
	}

	if err := sentry.Initialize(sentry.Config{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     buildinfo.Release(),
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		log.WithError(err).Warn("Sentry initialization failed")
	} else if sentry.IsEnabled() {
		log.WithField("environment", cfg.SentryEnvironment).Info("Sentry error tracking enabled")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewBuildInfoCollector(),
	)
	m := metrics.New(registry)

	client, err := api.NewClient(api.Options{
		BaseURL:     cfg.APIBaseURL,
		AccessToken: cfg.APIAccessToken,
		Timeout:     cfg.APITimeout,
		MaxRetries:  cfg.APIMaxRetries,
		RetryDelay:  config.APIRetryInitial,
		Metrics:     m,
		Logger:      log,
	})
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}
	log.WithField("base_url", cfg.APIBaseURL).Info("Course matching API configured")

	var ledger *storage.DB
	var cardLedger card.Ledger
	if cfg.HasFeedbackLedger() {
		ledger, err = storage.New(ctx, cfg.FeedbackLedgerPath)
		if err != nil {
			return nil, fmt.Errorf("feedback ledger: %w", err)
		}
		cardLedger = ledger
		log.WithField("path", cfg.FeedbackLedgerPath).
			WithField("retention", cfg.FeedbackLedgerRetention).
			Info("Feedback ledger enabled")
	}

	sessions := session.NewStore(session.Deps{
		Backend:  client,
		Ledger:   cardLedger,
		Capture:  sentry.CaptureExceptionWithContext,
		Debounce: cfg.SearchDebounce,
		Metrics:  m,
		Logger:   log,
	}, session.Options{
		TTL:           cfg.SessionTTL,
		MaxSessions:   cfg.SessionMax,
		SweepInterval: config.SessionSweepInterval,
	})

	limiter := ratelimit.NewKeyedLimiter(ratelimit.KeyedConfig{
		Name:          "client",
		Burst:         cfg.RateLimitBurst,
		RefillRate:    cfg.RateLimitRefillPerSec,
		CleanupPeriod: config.RateLimiterCleanupInterval,
		Metrics:       m,
	})

	pages, err := web.New(web.Options{
		Sessions:      sessions,
		DefaultLocale: i18n.Locale(cfg.DefaultLocale),
		Limiter:       limiter,
		SecureCookies: cfg.CookieSecure,
		Metrics:       m,
		Logger:        log,
	})
	if err != nil {
		return nil, fmt.Errorf("web: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if sentry.IsEnabled() {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	router.Use(securityHeadersMiddleware())
	router.Use(loggingMiddleware(log))

	app := &Application{
		cfg:      cfg,
		logger:   log,
		metrics:  m,
		registry: registry,
		client:   client,
		ledger:   ledger,
		sessions: sessions,
		limiter:  limiter,
		router:   router,
	}

	pages.Register(router)
	router.GET("/livez", app.livenessCheck)
	router.HEAD("/livez", app.livenessCheck)
	router.GET("/readyz", app.readinessCheck)
	router.HEAD("/readyz", app.readinessCheck)
	router.GET("/metrics",
		metricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, m),
		gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	app.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           gzhttp.GzipHandler(router),
		ReadHeaderTimeout: config.HTTPRead,
		ReadTimeout:       config.HTTPRead,
		WriteTimeout:      config.HTTPWrite,
		IdleTimeout:       config.HTTPIdle,
	}

	log.Info("Initialization complete")
	return app, nil
}

func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

// readinessCheck reports ready when the matching API answers and, if
// enabled, the feedback ledger is reachable.
func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheckTimeout)
	defer cancel()

	if err := a.client.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: course matching API unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "api unavailable",
		})
		return
	}

	ledger := "disabled"
	if a.ledger != nil {
		if err := a.ledger.Ping(ctx); err != nil {
			a.logger.WithError(err).Warn("Readiness check failed: feedback ledger unavailable")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "not ready",
				"reason": "ledger unavailable",
			})
			return
		}
		ledger = "connected"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"api":      "reachable",
		"ledger":   ledger,
		"sessions": a.sessions.Len(),
		"release":  buildinfo.Release(),
	})
}

// Run starts the HTTP server and background jobs.
//
// Graceful shutdown sequence:
//  1. Receive shutdown signal (SIGINT/SIGTERM)
//  2. Cancel context to stop background jobs and wait for them
//  3. Stop the HTTP server, then close sessions, the ledger and limiters
func (a *Application) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel() // Ensure context is always canceled

	a.startBackgroundJobs(ctx)
	a.startHTTPServer()

	sig := a.waitForShutdownSignal()
	a.logger.WithField("signal", sig.String()).Info("Received shutdown signal")

	cancel()

	a.logger.Info("Waiting for background jobs to finish...")
	start := time.Now()
	a.wg.Wait()
	a.logger.WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("All background jobs completed")

	return a.shutdown()
}

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.sessions.Run(ctx)
	})
	if a.ledger != nil {
		a.wg.Go(func() {
			a.ledgerCleanup(ctx)
		})
		a.wg.Go(func() {
			a.updateLedgerMetrics(ctx)
		})
	}
}

// startHTTPServer starts the HTTP server in a goroutine.
func (a *Application) startHTTPServer() {
	go func() {
		a.logger.WithField("port", a.cfg.Port).Info("Starting HTTP server")
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

// waitForShutdownSignal blocks until SIGINT/SIGTERM is received.
func (a *Application) waitForShutdownSignal() os.Signal {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	return <-quit
}

// shutdown stops the HTTP server and closes resources. Call it after the
// background jobs have stopped.
func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("Stopping HTTP server...")
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Error("HTTP server shutdown error")
	}

	a.logger.Info("Closing resources...")

	// Waits for in-flight searches so none writes to a closed ledger.
	a.sessions.Close()

	if a.ledger != nil {
		if err := a.ledger.Close(); err != nil {
			a.logger.WithError(err).WithField("component", "ledger").Error("Component close error")
		}
	}

	a.limiter.Stop()

	if !sentry.Flush(2 * time.Second) {
		a.logger.Warn("Sentry flush timed out")
	}

	if err := a.logger.Shutdown(shutdownCtx); err != nil {
		a.logger.WithError(err).Warn("Logger shutdown timed out")
	}

	a.logger.Info("Shutdown complete")
	return nil
}

// ledgerCleanup prunes votes older than the retention period on startup and
// then every LedgerCleanupInterval.
func (a *Application) ledgerCleanup(ctx context.Context) {
	a.logger.Debug("Ledger cleanup job started")
	defer a.logger.Debug("Ledger cleanup job stopped")

	a.runLedgerCleanup(ctx)

	ticker := time.NewTicker(config.LedgerCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runLedgerCleanup(ctx)
		}
	}
}

func (a *Application) runLedgerCleanup(ctx context.Context) {
	start := time.Now()
	deleted, err := a.ledger.DeleteOlderThan(ctx, a.cfg.FeedbackLedgerRetention)
	if err != nil {
		a.logger.WithError(err).Warn("Ledger cleanup failed")
		return
	}
	a.logger.WithField("deleted", deleted).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("Ledger cleanup completed")
	a.recordLedgerMetrics(ctx)
}

// updateLedgerMetrics periodically records the ledger size to Prometheus.
func (a *Application) updateLedgerMetrics(ctx context.Context) {
	ticker := time.NewTicker(config.MetricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.recordLedgerMetrics(ctx)
		}
	}
}

func (a *Application) recordLedgerMetrics(ctx context.Context) {
	if a.metrics == nil || a.ledger == nil {
		return
	}
	count, err := a.ledger.CountVotes(ctx)
	if err != nil {
		a.logger.WithError(err).Debug("Failed to count ledger votes")
		return
	}
	a.metrics.SetLedgerRows(count)
}

// securityHeadersMiddleware adds security headers to responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy",
			"default-src 'none'; script-src 'self'; style-src 'self'; connect-src 'self'; "+
				"img-src 'self'; form-action 'self'; base-uri 'none'; frame-ancestors 'none'")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Next()
	}
}

// requestIDHeaders are checked in order for an incoming request ID.
var requestIDHeaders = []string{"X-Request-Id", "X-Correlation-Id"}

// loggingMiddleware tags each request with a request ID and logs it with
// status-based levels: 5xx=Error, 4xx=Warn, 404=Debug, 3xx/2xx=Debug.
func loggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		var requestID string
		for _, h := range requestIDHeaders {
			if requestID = c.GetHeader(h); requestID != "" {
				break
			}
		}
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header("X-Request-Id", requestID)
		c.Request = c.Request.WithContext(ctxutil.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()

		entry := log.WithField("http_method", method).
			WithField("http_path", path).
			WithField("http_status", status).
			WithField("duration_ms", duration.Milliseconds()).
			WithField("client_ip", c.ClientIP()).
			WithRequestID(requestID)

		if sessionID := ctxutil.GetSessionID(c.Request.Context()); sessionID != "" {
			entry = entry.WithField("session_id", sessionID)
		}

		switch {
		case status >= 500:
			entry.Error("HTTP request failed")
		case status == 404:
			entry.Debug("HTTP request not found")
		case status >= 400:
			entry.Warn("HTTP request rejected")
		default:
			entry.Debug("HTTP request completed")
		}
	}
}
