package api

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unimak/dftrack/internal/slogging"
)

// Metrics holds the prometheus collectors of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry          *prometheus.Registry
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	reportsCreated    prometheus.Counter
	reportsRolledBack prometheus.Counter
	photosSaved       prometheus.Counter
	importRows        *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unimak",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "unimak",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		reportsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "unimak",
			Name:      "reports_created_total",
			Help:      "DF reports committed.",
		}),
		reportsRolledBack: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "unimak",
			Name:      "reports_rolled_back_total",
			Help:      "DF report transactions rolled back.",
		}),
		photosSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "unimak",
			Name:      "photos_saved_total",
			Help:      "Photos written to the uploads folder.",
		}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unimak",
			Name:      "import_rows_total",
			Help:      "Spreadsheet rows imported by kind and result.",
		}, []string{"kind", "result"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.requestDuration,
		m.reportsCreated, m.reportsRolledBack, m.photosSaved, m.importRows,
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordReportCreated counts a committed report and its photos
func (m *Metrics) RecordReportCreated(photos int) {
	slogging.Get().Debug("[METRICS] report_created photos=%d", photos)
	if m == nil {
		return
	}
	m.reportsCreated.Inc()
	m.photosSaved.Add(float64(photos))
}

// RecordReportRolledBack counts a report transaction that did not commit
func (m *Metrics) RecordReportRolledBack() {
	slogging.Get().Debug("[METRICS] report_rolled_back")
	if m == nil {
		return
	}
	m.reportsRolledBack.Inc()
}

// RecordImport counts the outcome of a spreadsheet import
func (m *Metrics) RecordImport(kind string, imported, failed int) {
	slogging.Get().Debug("[METRICS] import kind=%s imported=%d failed=%d", kind, imported, failed)
	if m == nil {
		return
	}
	m.importRows.WithLabelValues(kind, "imported").Add(float64(imported))
	m.importRows.WithLabelValues(kind, "failed").Add(float64(failed))
}

// Middleware records request count and latency per route template
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the prometheus exposition format
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
