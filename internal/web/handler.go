// Package web renders the course search pages and handles the form posts
// that drive a browser session.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/coursematch/coursematch-web/internal/ctxutil"
	domerrors "github.com/coursematch/coursematch-web/internal/errors"
	"github.com/coursematch/coursematch-web/internal/i18n"
	"github.com/coursematch/coursematch-web/internal/logger"
	"github.com/coursematch/coursematch-web/internal/metrics"
	"github.com/coursematch/coursematch-web/internal/ratelimit"
	"github.com/coursematch/coursematch-web/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Cookie names.
const (
	SessionCookie = "cm_session"
	LocaleCookie  = "cm_locale"
)

// Banner keys shown for rejected form posts.
const (
	MsgInvalidInput = "errorHandling.invalidInput"
	MsgRateLimited  = "errorHandling.rateLimited"
)

const (
	fetchHeader     = "X-Requested-With"
	fetchValue      = "fetch"
	sessionKey      = "session"
	resultsAnchor   = "/#results"
	localeCookieAge = 365 * 24 * 60 * 60
)

// Options configures a Handler.
type Options struct {
	Sessions      *session.Store
	Catalog       *i18n.Catalog // defaults to i18n.Default()
	DefaultLocale i18n.Locale
	Limiter       *ratelimit.KeyedLimiter // optional, guards remote-call routes
	SecureCookies bool
	Metrics       *metrics.Metrics
	Logger        *logger.Logger
}

// Handler serves the pages of the search UI.
type Handler struct {
	sessions      *session.Store
	catalog       *i18n.Catalog
	defaultLocale i18n.Locale
	limiter       *ratelimit.KeyedLimiter
	secure        bool
	metrics       *metrics.Metrics
	log           *logger.Logger

	tmpl   *template.Template
	static fs.FS
}

// New parses the embedded templates and returns a handler.
func New(opts Options) (*Handler, error) {
	h := &Handler{
		sessions:      opts.Sessions,
		catalog:       opts.Catalog,
		defaultLocale: opts.DefaultLocale,
		limiter:       opts.Limiter,
		secure:        opts.SecureCookies,
		metrics:       opts.Metrics,
		log:           opts.Logger,
	}
	if h.catalog == nil {
		h.catalog = i18n.Default()
	}
	if h.defaultLocale == "" {
		h.defaultLocale = i18n.Finnish
	}
	if h.log == nil {
		h.log = logger.New("info")
	}
	h.log = h.log.WithModule("web")

	tmpl, err := template.New("").Funcs(h.funcs()).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	h.tmpl = tmpl

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, err
	}
	h.static = static
	return h, nil
}

// Register mounts the pages, actions and static assets on r.
func (h *Handler) Register(r *gin.Engine) {
	r.SetHTMLTemplate(h.tmpl)
	r.StaticFS("/static", http.FS(h.static))

	pages := r.Group("/", h.sessionMiddleware())
	pages.GET("/", h.index)
	pages.GET("/results", h.results)

	pages.POST("/mode", h.setMode)
	pages.POST("/search/text", h.searchText)
	pages.POST("/filters", h.toggleFilter)
	pages.POST("/page", h.setPage)
	pages.POST("/locale", h.setLocale)
	pages.POST("/reset", h.reset)
	pages.POST("/confirm", h.confirm)
	pages.POST("/confirm/cancel", h.cancelConfirm)
	pages.POST("/error/dismiss", h.dismissError)

	limited := pages.Group("/", h.rateLimitMiddleware())
	limited.POST("/search/code", h.searchCode)
	limited.POST("/feedback", h.feedback)
}

// sessionMiddleware loads the session named by the cookie or starts a new one.
func (h *Handler) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var sess *session.Session
		if id, err := c.Cookie(SessionCookie); err == nil && id != "" {
			sess, _ = h.sessions.Get(id)
		}
		if sess == nil {
			sess = h.sessions.Create(h.initialLocale(c))
			h.setCookie(c, SessionCookie, sess.ID, 0)
			h.log.DebugContext(c.Request.Context(), "Session started", "session_id", sess.ID)
		}

		c.Request = c.Request.WithContext(ctxutil.WithSessionID(c.Request.Context(), sess.ID))
		c.Set(sessionKey, sess)
		c.Next()
	}
}

// rateLimitMiddleware throttles each client IP. Script requests get 429,
// plain forms get a banner.
func (h *Handler) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.limiter == nil {
			c.Next()
			return
		}
		ip := c.ClientIP()
		ok, retryAfter := h.limiter.Allow(ip)
		if ok {
			c.Next()
			return
		}

		if isFetch(c) {
			c.Header("Retry-After", strconv.Itoa(max(1, int(math.Ceil(retryAfter.Seconds())))))
		}
		h.refuse(c, fmt.Errorf("client %s: %w", ip, domerrors.ErrRateLimitExceeded))
	}
}

func (h *Handler) initialLocale(c *gin.Context) i18n.Locale {
	if raw, err := c.Cookie(LocaleCookie); err == nil {
		if l, err := i18n.Parse(raw); err == nil {
			return l
		}
	}
	return i18n.Negotiate(c.GetHeader("Accept-Language"), h.defaultLocale)
}

func (h *Handler) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", h.secure, true)
}

func (h *Handler) recordError(c *gin.Context, errorType string) {
	if h.metrics != nil {
		h.metrics.RecordHTTPError(errorType, c.FullPath())
	}
}

func sessionFrom(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

func isFetch(c *gin.Context) bool {
	return c.GetHeader(fetchHeader) == fetchValue
}
