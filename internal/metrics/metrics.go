// Package metrics bundles the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AI reply outcomes.
const (
	OutcomeReplied = "replied"
	OutcomeClosing = "closing"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Metrics holds the collectors shared by the HTTP server and background workers.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer   prometheus.Gatherer
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inFlight   prometheus.Gauge
	aiReplies  *prometheus.CounterVec
	redirects  *prometheus.CounterVec
	jobsQueued prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		gatherer: reg,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hippo_http_requests_total",
				Help: "Total count of HTTP requests received.",
			},
			[]string{"method", "route", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hippo_http_request_duration_seconds",
				Help:    "Histogram of request durations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hippo_http_inflight_requests",
			Help: "Number of requests currently being handled.",
		}),
		aiReplies: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hippo_ai_replies_total",
				Help: "AI reply attempts by outcome.",
			},
			[]string{"outcome"},
		),
		redirects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hippo_redirects_served_total",
				Help: "Redirect responses served, by status code.",
			},
			[]string{"code"},
		),
		jobsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hippo_reply_jobs_queued_total",
			Help: "AI reply jobs accepted into the queue.",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.inFlight, m.aiReplies, m.redirects, m.jobsQueued)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Gatherer returns the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

// Middleware instruments gin requests. The route label is the matched route
// pattern, so unmatched paths collapse into a single "unmatched" series.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// AIReply records the outcome of one reply attempt.
func (m *Metrics) AIReply(outcome string) {
	if m == nil {
		return
	}
	m.aiReplies.WithLabelValues(outcome).Inc()
}

// RedirectServed records a redirect response.
func (m *Metrics) RedirectServed(code int) {
	if m == nil {
		return
	}
	m.redirects.WithLabelValues(strconv.Itoa(code)).Inc()
}

// JobQueued records a reply job accepted into the queue.
func (m *Metrics) JobQueued() {
	if m == nil {
		return
	}
	m.jobsQueued.Inc()
}
