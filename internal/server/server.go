// Package server exposes the portfolio and its chat assistant over HTTP. The
// browser drives each widget with HTMX requests; timer-driven changes are
// pushed back over Server-Sent Events.
package server

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Zachkp/portfolio/internal/chat"
	"github.com/Zachkp/portfolio/internal/github"
	"github.com/Zachkp/portfolio/internal/metrics"
	"github.com/Zachkp/portfolio/internal/schedule"
	"github.com/Zachkp/portfolio/internal/stats"
	"github.com/Zachkp/portfolio/internal/widget"
)

//go:embed templates/*.html
var templateFS embed.FS

const widgetCookie = "widget_id"

// Deps are the collaborators of the HTTP server.
type Deps struct {
	Logger  zerolog.Logger
	Stats   *stats.Store // optional
	Profile github.Profile
	AboutMe string

	Defaults   widget.Options
	Scheduler  schedule.Scheduler
	Responder  *chat.Responder
	ReplyDelay time.Duration
	IdleTTL    time.Duration

	RateLimitPerMinute int
	AdminToken         string
}

type Server struct {
	engine   *gin.Engine
	registry *widget.Registry
	stats    *stats.Store
	logger   zerolog.Logger

	profile    github.Profile
	aboutMe    string
	defaults   widget.Options
	ttl        time.Duration
	adminToken string

	// widgets mounted from requests carrying DNT: 1 are left out of stats.
	untracked sync.Map
}

func New(d Deps) *Server {
	if d.IdleTTL <= 0 {
		d.IdleTTL = widget.DefaultIdleTTL
	}

	s := &Server{
		stats:      d.Stats,
		logger:     d.Logger,
		profile:    d.Profile,
		aboutMe:    d.AboutMe,
		defaults:   d.Defaults,
		ttl:        d.IdleTTL,
		adminToken: d.AdminToken,
	}
	s.registry = widget.NewRegistry(widget.RegistryConfig{
		Scheduler:  d.Scheduler,
		Responder:  d.Responder,
		ReplyDelay: d.ReplyDelay,
		IdleTTL:    d.IdleTTL,
		Observer:   s.observe,
		Logger:     d.Logger,
	})

	r := gin.New()
	r.SetHTMLTemplate(template.Must(template.ParseFS(templateFS, "templates/*.html")))
	r.Use(requestLogger(d.Logger), recordMetrics(), gin.Recovery())

	s.setupRoutes(r, newIPRateLimiter(d.RateLimitPerMinute))
	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// Registry is exposed so the caller can run idle eviction and close it on
// shutdown.
func (s *Server) Registry() *widget.Registry { return s.registry }

func (s *Server) setupRoutes(r *gin.Engine, limiter *ipRateLimiter) {
	r.GET("/", s.home)
	r.GET("/github-content", s.githubContent)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy.html", gin.H{
			"title":   "Privacy Policy",
			"idleTTL": s.ttl.String(),
		})
	})

	w := r.Group("/widget")
	w.POST("/unmount", s.unmount)
	w.Use(s.resolveWidget)
	w.POST("/open", s.openPanel)
	w.POST("/close", s.closePanel)
	w.POST("/input", s.input)
	w.POST("/messages", limiter.middleware("messages"), s.submit)
	w.GET("/transcript", s.transcript)
	w.GET("/state", s.state)
	w.GET("/events", s.events)

	s.setupAdminRoutes(r)
}

func (s *Server) observe(id string, a widget.Activity, rule int) {
	metrics.WidgetActivity.WithLabelValues(string(a)).Inc()
	switch a {
	case widget.ActivityMount:
		metrics.WidgetsActive.Inc()
	case widget.ActivityUnmount:
		metrics.WidgetsActive.Dec()
	case widget.ActivityReply:
		metrics.RepliesByRule.WithLabelValues(strconv.Itoa(rule)).Inc()
	}

	if _, skip := s.untracked.Load(id); skip {
		if a == widget.ActivityUnmount {
			s.untracked.Delete(id)
		}
		return
	}
	if s.stats != nil {
		s.stats.RecordAsync(id, stats.Kind(a), rule)
	}
}

func (s *Server) home(c *gin.Context) {
	w := s.currentWidget(c)
	if w == nil {
		opts := s.defaults
		if v := c.Query("primaryColor"); v != "" {
			opts.PrimaryColor = widget.ParseColor(v)
		}
		if v := c.Query("theme"); v != "" {
			opts.Theme = widget.ParseTheme(v)
		}
		w = s.mount(c, opts)
	}

	c.HTML(http.StatusOK, "index.html", gin.H{
		"title":          "Portfolio",
		"aboutMeContent": s.aboutMe,
		"widget":         newWidgetView(w),
	})
}

func (s *Server) githubContent(c *gin.Context) {
	c.HTML(http.StatusOK, "github-content.html", gin.H{
		"profile": s.profile,
	})
}

func (s *Server) mount(c *gin.Context, opts widget.Options) *widget.Widget {
	if c.GetHeader("DNT") == "1" {
		// Mark before Mount so the mount itself is not recorded.
		w := s.registry.MountWith(opts, func(id string) { s.untracked.Store(id, struct{}{}) })
		s.setWidgetCookie(c, w.ID)
		return w
	}
	w := s.registry.Mount(opts)
	s.setWidgetCookie(c, w.ID)
	return w
}

func (s *Server) setWidgetCookie(c *gin.Context, id string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(widgetCookie, id, int(s.ttl/time.Second), "/", "", false, true)
}

func (s *Server) currentWidget(c *gin.Context) *widget.Widget {
	id, err := c.Cookie(widgetCookie)
	if err != nil || id == "" {
		return nil
	}
	w, ok := s.registry.Get(id)
	if !ok {
		return nil
	}
	return w
}
