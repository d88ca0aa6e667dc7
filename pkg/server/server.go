// Package server exposes the introspection page to a hosting web server as a
// CGI program, a FastCGI responder or a standalone HTTP listener.
package server

import (
	"bytes"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lcalzada-xor/cgiscope/pkg/cgienv"
	"github.com/lcalzada-xor/cgiscope/pkg/config"
	"github.com/lcalzada-xor/cgiscope/pkg/introspect"
	"github.com/lcalzada-xor/cgiscope/pkg/logger"
	"github.com/lcalzada-xor/cgiscope/pkg/metrics"
)

// Server handles introspection requests.
type Server struct {
	cfg      *config.Server
	log      *logger.Logger
	renderer *introspect.Renderer
	env      EnvironmentSource
	now      func() time.Time
	loc      *time.Location
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	engine   *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithRenderer replaces the page renderer.
func WithRenderer(r *introspect.Renderer) Option {
	return func(s *Server) { s.renderer = r }
}

// WithEnvironment replaces the environment source chosen from the mode.
func WithEnvironment(src EnvironmentSource) Option {
	return func(s *Server) { s.env = src }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithRegistry registers the gateway collectors on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// New creates a Server. cfg must have been validated.
func New(cfg *config.Server, log *logger.Logger, opts ...Option) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		log:      log,
		renderer: introspect.New(),
		now:      time.Now,
		loc:      cfg.Location(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.env == nil {
		s.env = EnvironmentFor(cfg)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	s.metrics = metrics.MustNewMetrics(s.registry)
	s.engine = s.routes()
	return s
}

// Handler returns the http.Handler used by every serving mode.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(Recovery(s.log), RequestLogger(s.log), Observe(s.metrics))

	script := engine.Group(s.cfg.ScriptPath)
	if s.cfg.SecurityHeaders {
		script.Use(SecurityHeaders())
	}
	for _, route := range []string{"", "/*pathinfo"} {
		script.GET(route, s.handleIntrospect)
		script.POST(route, s.handleIntrospect)
		script.HEAD(route, s.handleIntrospect)
	}

	engine.GET("/healthz", s.handleHealth)

	// CGI answers a single request, so nothing would ever scrape it.
	if s.cfg.MetricsPath != "" && s.cfg.Mode != "cgi" {
		engine.GET(s.cfg.MetricsPath, gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	// A CGI program answers at whatever path the web server mapped it to.
	if s.cfg.Mode == "cgi" {
		var handler gin.HandlerFunc = s.handleIntrospect
		if s.cfg.SecurityHeaders {
			handler = withSecurityHeaders(s.handleIntrospect)
		}
		engine.NoRoute(func(c *gin.Context) {
			switch c.Request.Method {
			case http.MethodGet, http.MethodPost, http.MethodHead:
				handler(c)
			default:
				c.Header("Allow", "GET, POST, HEAD")
				c.Status(http.StatusMethodNotAllowed)
			}
		})
		return engine
	}

	if s.cfg.StaticDir != "" {
		files := http.FileServer(http.Dir(s.cfg.StaticDir))
		engine.NoRoute(func(c *gin.Context) {
			if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
				c.Status(http.StatusNotFound)
				return
			}
			files.ServeHTTP(c.Writer, c.Request)
		})
	}
	return engine
}

func (s *Server) handleIntrospect(c *gin.Context) {
	req := cgienv.MetadataFromRequest(c.Request, s.cfg.MaxBodyEcho)
	env := s.env(c.Request)

	view := s.renderer.View(env, req, s.now().In(s.loc))
	s.metrics.ObserveRender(len(view.Variables), view.Post.Truncated)

	if c.Request.Method == http.MethodHead {
		c.Header("Content-Type", config.ContentTypeHTML)
		c.Status(http.StatusOK)
		return
	}

	var buf bytes.Buffer
	if err := introspect.Execute(&buf, view); err != nil {
		_ = c.Error(err)
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, config.ContentTypeHTML, buf.Bytes())
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": config.Version,
		"mode":    s.cfg.Mode,
	})
}
