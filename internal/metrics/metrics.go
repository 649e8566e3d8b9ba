package metrics

import (
	"net/http"
	"time"
)

// Metrics interface for dependency injection
type Metrics interface {
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)
	RecordReport(source, status string)
	RecordProviderCall(provider, outcome string, duration time.Duration)
	RecordBatch(size int, duration time.Duration)
	SetQueueDepth(worker string, depth float64)
	SetStreamConnected(provider string, connected bool)
	SetCircuitState(name string, state float64)
	RecordVoyage(event string)
	RecordAlert(alertType, status string)
	RecordNotification(sink, status string)
	SetDBConnectionsActive(count float64)
	RecordDBQuery(operation, status string)
	Handler() http.Handler
}

// NoOpMetrics provides a no-op implementation
type NoOpMetrics struct{}

func (m *NoOpMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
}
func (m *NoOpMetrics) RecordReport(source, status string)                                  {}
func (m *NoOpMetrics) RecordProviderCall(provider, outcome string, duration time.Duration) {}
func (m *NoOpMetrics) RecordBatch(size int, duration time.Duration)                        {}
func (m *NoOpMetrics) SetQueueDepth(worker string, depth float64)                          {}
func (m *NoOpMetrics) SetStreamConnected(provider string, connected bool)                  {}
func (m *NoOpMetrics) SetCircuitState(name string, state float64)                          {}
func (m *NoOpMetrics) RecordVoyage(event string)                                           {}
func (m *NoOpMetrics) RecordAlert(alertType, status string)                                {}
func (m *NoOpMetrics) RecordNotification(sink, status string)                              {}
func (m *NoOpMetrics) SetDBConnectionsActive(count float64)                                {}
func (m *NoOpMetrics) RecordDBQuery(operation, status string)                              {}
func (m *NoOpMetrics) Handler() http.Handler                                               { return http.NotFoundHandler() }

// Global metrics instance
var globalMetrics Metrics = &NoOpMetrics{}

// Init installs the Prometheus implementation as the global metrics sink
func Init() {
	globalMetrics = NewPrometheus()
}

// Set replaces the global metrics sink
func Set(m Metrics) {
	if m == nil {
		m = &NoOpMetrics{}
	}
	globalMetrics = m
}

// Handler returns the metrics handler
func Handler() http.Handler {
	return globalMetrics.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	globalMetrics.RecordHTTPRequest(method, endpoint, statusCode, duration)
}

// RecordReport counts a position report by source and outcome
// (accepted, duplicate, stale, invalid, dropped)
func RecordReport(source, status string) {
	globalMetrics.RecordReport(source, status)
}

// RecordProviderCall records one provider request
func RecordProviderCall(provider, outcome string, duration time.Duration) {
	globalMetrics.RecordProviderCall(provider, outcome, duration)
}

// RecordBatch records a flushed worker batch
func RecordBatch(size int, duration time.Duration) {
	globalMetrics.RecordBatch(size, duration)
}

// SetQueueDepth reports the number of queued items for a worker
func SetQueueDepth(worker string, depth float64) {
	globalMetrics.SetQueueDepth(worker, depth)
}

// SetStreamConnected flags a streaming connection as up or down
func SetStreamConnected(provider string, connected bool) {
	globalMetrics.SetStreamConnected(provider, connected)
}

// SetCircuitState reports a breaker state (0 closed, 1 half-open, 2 open)
func SetCircuitState(name string, state float64) {
	globalMetrics.SetCircuitState(name, state)
}

// RecordVoyage counts voyage lifecycle events
func RecordVoyage(event string) {
	globalMetrics.RecordVoyage(event)
}

// RecordAlert counts raised and suppressed alerts
func RecordAlert(alertType, status string) {
	globalMetrics.RecordAlert(alertType, status)
}

// RecordNotification counts delivery attempts per sink
func RecordNotification(sink, status string) {
	globalMetrics.RecordNotification(sink, status)
}

// SetDBConnectionsActive sets the number of active database connections
func SetDBConnectionsActive(count float64) {
	globalMetrics.SetDBConnectionsActive(count)
}

// RecordDBQuery records database query metrics
func RecordDBQuery(operation, status string) {
	globalMetrics.RecordDBQuery(operation, status)
}
