// Package metrics exposes Prometheus collectors for orchestration outcomes,
// degraded-mode transitions and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "supportbot"

// Service owns a private registry so tests and multiple servers never collide
// on the global one.
type Service struct {
	registry *prometheus.Registry
	queries  *prometheus.CounterVec
	degraded *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	requests *prometheus.CounterVec
}

func New() *Service {
	registry := prometheus.NewRegistry()
	s := &Service{
		registry: registry,
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Orchestrated queries by intent and invoked action.",
		}, []string{"intent", "action"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degraded_total",
			Help:      "Switches to a degraded code path by component and reason.",
		}, []string{"component", "reason"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "orchestration_seconds",
			Help:      "Wall time of one orchestration call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"intent"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
	}
	registry.MustRegister(
		s.queries, s.degraded, s.latency, s.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return s
}

// ObserveQuery records one finished orchestration. An empty action is
// reported as "none".
func (s *Service) ObserveQuery(intent, action string, elapsed time.Duration) {
	if s == nil {
		return
	}
	if action == "" {
		action = "none"
	}
	s.queries.WithLabelValues(intent, action).Inc()
	s.latency.WithLabelValues(intent).Observe(elapsed.Seconds())
}

// Degraded implements domain.DegradationObserver.
func (s *Service) Degraded(component, reason string) {
	if s == nil {
		return
	}
	s.degraded.WithLabelValues(component, reason).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// GinMiddleware counts requests by matched route.
func (s *Service) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		s.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
