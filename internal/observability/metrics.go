package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	httpRequestsTotal       *prometheus.CounterVec
	httpLatencySeconds      *prometheus.HistogramVec
	accessDecisionsTotal    *prometheus.CounterVec
	auditRecordsTotal       *prometheus.CounterVec
	notificationsDispatched *prometheus.CounterVec
	notificationsFanout     *prometheus.CounterVec
	streamClientsActive     prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relawan_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relawan_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		accessDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relawan_access_decisions_total",
			Help: "Role gate decisions by outcome and reason.",
		}, []string{"decision", "reason"})

		auditRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relawan_audit_records_total",
			Help: "Audit records written by action and result.",
		}, []string{"action", "result"})

		notificationsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relawan_notifications_dispatched_total",
			Help: "Notifications persisted by type.",
		}, []string{"type"})

		notificationsFanout = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relawan_notifications_fanout_total",
			Help: "Realtime notification deliveries by channel and result.",
		}, []string{"channel", "result"})

		streamClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relawan_notification_stream_clients",
			Help: "Currently connected notification stream clients.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			accessDecisionsTotal,
			auditRecordsTotal,
			notificationsDispatched,
			notificationsFanout,
			streamClientsActive,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// AccessDecisions exposes the role gate decision counter.
func AccessDecisions() *prometheus.CounterVec {
	RegisterMetrics()
	return accessDecisionsTotal
}

// AuditRecords exposes the audit write counter.
func AuditRecords() *prometheus.CounterVec {
	RegisterMetrics()
	return auditRecordsTotal
}

// NotificationsDispatched exposes the persisted notification counter.
func NotificationsDispatched() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsDispatched
}

// NotificationsFanout exposes the realtime delivery counter.
func NotificationsFanout() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsFanout
}

// StreamClientsActive exposes the connected stream client gauge.
func StreamClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return streamClientsActive
}
