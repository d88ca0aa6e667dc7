package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lcalzada-xor/cgiscope/pkg/logger"
	"github.com/lcalzada-xor/cgiscope/pkg/metrics"
)

// ScriptCSP allows the inline stylesheet of the introspection page and nothing
// else. In particular no script source is allowed.
const ScriptCSP = "default-src 'none'; style-src 'unsafe-inline'; base-uri 'none'; form-action 'none'; frame-ancestors 'none'"

// SecurityHeaders sets the response headers that keep a reflected value from
// ever running as script.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		setSecurityHeaders(c)
		c.Next()
	}
}

func withSecurityHeaders(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		setSecurityHeaders(c)
		h(c)
	}
}

func setSecurityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Content-Security-Policy", ScriptCSP)
	c.Header("Referrer-Policy", "no-referrer")
}

// RequestLogger logs one line per request at verbose level.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		for _, e := range c.Errors {
			log.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, e.Err)
		}
		if !log.IsVerbose() {
			return
		}
		log.With(
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client", c.ClientIP()),
			zap.Int("bytes", c.Writer.Size()),
		).V("%s %s", c.Request.Method, c.Request.URL.Path)
	}
}

// Observe records request counts and latency.
func Observe(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		m.IncInFlight()
		defer m.DecInFlight()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

// Recovery turns a panic into a 500 and logs it.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, err any) {
		log.Error("panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.AbortWithStatus(500)
	})
}
