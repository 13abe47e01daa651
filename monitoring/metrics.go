package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	HttpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HttpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	HttpResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "endpoint"},
	)

	// Application metrics
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "backlog_active_sessions",
			Help: "Number of signed-in sessions holding a live backlog",
		},
	)

	ActiveWebsockets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "backlog_active_websockets",
			Help: "Number of connected live-view websockets",
		},
	)

	AuthenticationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authentication_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"status"}, // success or failure
	)

	BacklogMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backlog_mutations_total",
			Help: "Backlog store writes by operation and result",
		},
		[]string{"op", "result"},
	)

	SnapshotDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_snapshot_deliveries_total",
			Help: "Live query snapshots delivered to subscribers",
		},
		[]string{"collection"},
	)

	CatalogRelayCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_relay_calls_total",
			Help: "Catalog relay calls by outcome",
		},
		[]string{"outcome"}, // ok, cached, token_error, upstream_error, breaker_open
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	// Error metrics
	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "endpoint"},
	)
)

// InitMetrics registers every collector with the default registry
func InitMetrics() {
	prometheus.MustRegister(HttpRequestsTotal)
	prometheus.MustRegister(HttpRequestDuration)
	prometheus.MustRegister(HttpResponseSize)
	prometheus.MustRegister(ActiveSessions)
	prometheus.MustRegister(ActiveWebsockets)
	prometheus.MustRegister(AuthenticationAttempts)
	prometheus.MustRegister(BacklogMutations)
	prometheus.MustRegister(SnapshotDeliveries)
	prometheus.MustRegister(CatalogRelayCalls)
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(ErrorsTotal)
}

// ObserveMutation records the result of a backlog write.
func ObserveMutation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	BacklogMutations.WithLabelValues(op, result).Inc()
}

// PrometheusMiddleware collects metrics for each request
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := c.Writer.Status()

		HttpRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(status)).Inc()
		HttpRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
		HttpResponseSize.WithLabelValues(c.Request.Method, endpoint).Observe(float64(c.Writer.Size()))

		if status >= 400 {
			ErrorsTotal.WithLabelValues("http_error", endpoint).Inc()
		}
	}
}

// PrometheusHandler returns Prometheus metrics handler
func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
