package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements Metrics on its own registry
type PrometheusMetrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	reports         *prometheus.CounterVec
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	batchSize       prometheus.Histogram
	batchDuration   prometheus.Histogram
	queueDepth      *prometheus.GaugeVec
	streamConnected *prometheus.GaugeVec
	circuitState    *prometheus.GaugeVec
	voyages         *prometheus.CounterVec
	alerts          *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	dbConnections   prometheus.Gauge
	dbQueries       *prometheus.CounterVec
}

// NewPrometheus registers all collectors on a fresh registry
func NewPrometheus() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vesselwatch_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vesselwatch_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		reports: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vesselwatch_position_reports_total",
			Help: "Position reports by source and outcome",
		}, []string{"source", "status"}),
		providerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vesselwatch_provider_calls_total",
			Help: "Provider requests by outcome",
		}, []string{"provider", "outcome"}),
		providerLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vesselwatch_provider_call_duration_seconds",
			Help:    "Provider request latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		batchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vesselwatch_batch_size",
			Help:    "Reports per flushed worker batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),
		batchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vesselwatch_batch_duration_seconds",
			Help:    "Time to process one worker batch",
			Buckets: prometheus.DefBuckets,
		}),
		queueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vesselwatch_worker_queue_depth",
			Help: "Items waiting in each worker queue",
		}, []string{"worker"}),
		streamConnected: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vesselwatch_stream_connected",
			Help: "1 when the streaming provider connection is up",
		}, []string{"provider"}),
		circuitState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vesselwatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
		voyages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vesselwatch_voyage_events_total",
			Help: "Voyage lifecycle events",
		}, []string{"event"}),
		alerts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vesselwatch_alerts_total",
			Help: "Alerts by type and outcome",
		}, []string{"alert_type", "status"}),
		notifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vesselwatch_notifications_total",
			Help: "Notification deliveries by sink and outcome",
		}, []string{"sink", "status"}),
		dbConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "vesselwatch_db_connections_active",
			Help: "Acquired database connections",
		}),
		dbQueries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vesselwatch_db_queries_total",
			Help: "Database operations by outcome",
		}, []string{"operation", "status"}),
	}
}

func (m *PrometheusMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequests.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordReport(source, status string) {
	m.reports.WithLabelValues(source, status).Inc()
}

func (m *PrometheusMetrics) RecordProviderCall(provider, outcome string, duration time.Duration) {
	m.providerCalls.WithLabelValues(provider, outcome).Inc()
	m.providerLatency.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordBatch(size int, duration time.Duration) {
	m.batchSize.Observe(float64(size))
	m.batchDuration.Observe(duration.Seconds())
}

func (m *PrometheusMetrics) SetQueueDepth(worker string, depth float64) {
	m.queueDepth.WithLabelValues(worker).Set(depth)
}

func (m *PrometheusMetrics) SetStreamConnected(provider string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	m.streamConnected.WithLabelValues(provider).Set(v)
}

func (m *PrometheusMetrics) SetCircuitState(name string, state float64) {
	m.circuitState.WithLabelValues(name).Set(state)
}

func (m *PrometheusMetrics) RecordVoyage(event string) {
	m.voyages.WithLabelValues(event).Inc()
}

func (m *PrometheusMetrics) RecordAlert(alertType, status string) {
	m.alerts.WithLabelValues(alertType, status).Inc()
}

func (m *PrometheusMetrics) RecordNotification(sink, status string) {
	m.notifications.WithLabelValues(sink, status).Inc()
}

func (m *PrometheusMetrics) SetDBConnectionsActive(count float64) {
	m.dbConnections.Set(count)
}

func (m *PrometheusMetrics) RecordDBQuery(operation, status string) {
	m.dbQueries.WithLabelValues(operation, status).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and embedding
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}
