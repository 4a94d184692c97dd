// Package metrics provides Prometheus metrics shared by all services
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors of the portal
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Catalog metrics
	DescendantCacheLookups *prometheus.CounterVec
	DocumentSearchesTotal  prometheus.Counter
	DocumentUploadBytes    prometheus.Counter

	// Participation metrics
	MessagesReceivedTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide metrics, registering them on first use
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics(prometheus.DefaultRegisterer)
	})
	return instance
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{}

	m.HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transparencia_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "route", "status"},
	)

	m.HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transparencia_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "route"},
	)

	m.DescendantCacheLookups = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transparencia_descendant_cache_lookups_total",
			Help: "Descendant cache lookups by result",
		},
		[]string{"result"},
	)

	m.DocumentSearchesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "transparencia_document_searches_total",
			Help: "Total number of scoped document searches",
		},
	)

	m.DocumentUploadBytes = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "transparencia_document_upload_bytes_total",
			Help: "Bytes uploaded to object storage",
		},
	)

	m.MessagesReceivedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transparencia_participation_messages_total",
			Help: "Citizen messages received by channel",
		},
		[]string{"channel"},
	)

	return m
}

// RecordCacheHit records a descendant cache hit
func (m *Metrics) RecordCacheHit() {
	m.DescendantCacheLookups.WithLabelValues("hit").Inc()
}

// RecordCacheMiss records a descendant cache miss
func (m *Metrics) RecordCacheMiss() {
	m.DescendantCacheLookups.WithLabelValues("miss").Inc()
}

// RecordSearch counts an executed document search
func (m *Metrics) RecordSearch() {
	m.DocumentSearchesTotal.Inc()
}

// Middleware records request count and latency per route
func (m *Metrics) Middleware(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(service, c.Request.Method, route, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(service, c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// RecordUpload counts bytes written to object storage
func (m *Metrics) RecordUpload(bytes int64) {
	m.DocumentUploadBytes.Add(float64(bytes))
}

// RecordMessage counts a citizen message received through channel
func (m *Metrics) RecordMessage(channel string) {
	m.MessagesReceivedTotal.WithLabelValues(channel).Inc()
}
