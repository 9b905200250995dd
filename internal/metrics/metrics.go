package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portfolio_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Widget metrics
	WidgetsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portfolio_widgets_active",
			Help: "Currently mounted chat widgets",
		},
	)

	WidgetActivity = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_widget_activity_total",
			Help: "Widget lifecycle and chat activity",
		},
		[]string{"kind"},
	)

	RepliesByRule = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_chat_replies_total",
			Help: "Canned replies sent, by matched rule",
		},
		[]string{"rule"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portfolio_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"endpoint"},
	)
)
