package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Authorization metrics
	PermissionChecksTotal   *prometheus.CounterVec // by resource, action, decision
	AccessScopeResolutions  *prometheus.CounterVec // by scope
	SuperAdminBypassesTotal prometheus.Counter
	FailClosedTotal         *prometheus.CounterVec // by reason
	HierarchyWarningsTotal  *prometheus.CounterVec // by kind (cycle, dangling_parent)
	ContextBuildDuration    prometheus.Histogram

	// Mapping cache metrics (analytics org->practice)
	MappingCacheHitsTotal   *prometheus.CounterVec // by layer (l1, redis)
	MappingCacheMissesTotal prometheus.Counter

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "practicehub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "practicehub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		PermissionChecksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "practicehub_permission_checks_total",
				Help: "Total number of permission checks by decision",
			},
			[]string{"resource", "action", "decision"},
		),
		AccessScopeResolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "practicehub_access_scope_resolutions_total",
				Help: "Total number of access scope resolutions by resulting scope",
			},
			[]string{"scope"},
		),
		SuperAdminBypassesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "practicehub_superadmin_bypasses_total",
				Help: "Total number of checks short-circuited by the super-admin flag",
			},
		),
		FailClosedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "practicehub_fail_closed_total",
				Help: "Total number of scope resolutions that failed closed to match-nothing",
			},
			[]string{"reason"},
		),
		HierarchyWarningsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "practicehub_hierarchy_warnings_total",
				Help: "Organization hierarchy integrity warnings observed during traversal",
			},
			[]string{"kind"},
		),
		ContextBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "practicehub_user_context_build_duration_seconds",
				Help:    "Time spent assembling per-request user contexts",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
		),
		MappingCacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "practicehub_practice_mapping_cache_hits_total",
				Help: "Organization to practice mapping cache hits by layer",
			},
			[]string{"layer"},
		),
		MappingCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "practicehub_practice_mapping_cache_misses_total",
				Help: "Organization to practice mapping cache misses",
			},
		),
		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "practicehub_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "practicehub_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.PermissionChecksTotal,
		m.AccessScopeResolutions,
		m.SuperAdminBypassesTotal,
		m.FailClosedTotal,
		m.HierarchyWarningsTotal,
		m.ContextBuildDuration,
		m.MappingCacheHitsTotal,
		m.MappingCacheMissesTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// Handler returns an HTTP handler for the metrics endpoint
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps an HTTP handler with request metrics
func (m *Metrics) InstrumentHandler(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(sw.status)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
