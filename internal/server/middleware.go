package server

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/Zachkp/portfolio/internal/metrics"
)

// requestLogger logs each request once it has been served.
func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request completed")
	}
}

func recordMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// Route templates keep label cardinality bounded.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

const maxTrackedClients = 10000

// ipRateLimiter is a token bucket per client IP. A zero rate disables it.
type ipRateLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients map[string]*rate.Limiter
}

func newIPRateLimiter(perMinute int) *ipRateLimiter {
	if perMinute <= 0 {
		return &ipRateLimiter{}
	}
	burst := perMinute / 6
	if burst < 1 {
		burst = 1
	}
	return &ipRateLimiter{
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		clients: make(map[string]*rate.Limiter),
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	if l.clients == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.clients[ip]
	if !ok {
		if len(l.clients) >= maxTrackedClients {
			l.clients = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients[ip] = lim
	}
	return lim.Allow()
}

func (l *ipRateLimiter) middleware(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			metrics.RateLimitHits.WithLabelValues(endpoint).Inc()
			c.Header("Retry-After", "60")
			c.String(http.StatusTooManyRequests, "Slow down a little, I can only type so fast!")
			c.Abort()
			return
		}
		c.Next()
	}
}
