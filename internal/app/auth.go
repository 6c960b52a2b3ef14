package app

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursematch/coursematch-web/internal/metrics"
)

// metricsAuthMiddleware enforces Basic Auth for /metrics. An empty password
// leaves the endpoint open. Rejected scrapes are counted as HTTP errors.
func metricsAuthMiddleware(username, password string, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if password == "" {
			c.Next()
			return
		}

		user, pass, hasAuth := c.Request.BasicAuth()
		// Constant-time comparison to prevent timing attacks
		userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1

		if !hasAuth || !userMatch || !passMatch {
			if m != nil {
				m.RecordHTTPError("unauthorized", c.FullPath())
			}
			c.Header("WWW-Authenticate", `Basic realm="metrics"`)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		c.Next()
	}
}
