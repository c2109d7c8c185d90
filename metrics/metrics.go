package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	SearchRequests      *prometheus.CounterVec
	ProviderDuration    *prometheus.HistogramVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsTotal   *prometheus.CounterVec
	Registry            *prometheus.Registry
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flightfinder_search_requests_total",
			Help: "Flight searches by outcome",
		}, []string{"outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flightfinder_provider_request_duration_seconds",
			Help:    "Latency of flight-offers calls to the provider",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		Registry: prometheus.NewRegistry(),
	}

	m.Registry.MustRegister(
		m.SearchRequests,
		m.ProviderDuration,
		m.HTTPRequestDuration,
		m.HTTPRequestsTotal,
	)
	return m
}

func (m *Metrics) IncSearch(outcome string) {
	m.SearchRequests.WithLabelValues(outcome).Inc()
}

// ObserveProvider satisfies services.ProviderObserver.
func (m *Metrics) ObserveProvider(result string, d time.Duration) {
	m.ProviderDuration.WithLabelValues(result).Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Middleware records count and latency per route template, so path
// parameters do not explode label cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}
