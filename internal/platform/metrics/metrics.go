package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the security layer.
// All methods are safe to call on a nil receiver so components can run without metrics.
type Metrics struct {
	EventsRecorded      *prometheus.CounterVec
	WriteFailures       prometheus.Counter
	EventsDropped       prometheus.Counter
	DetectorBlocked     *prometheus.CounterVec
	DetectorStoreErrors prometheus.Counter
	GateDenied          *prometheus.CounterVec
	BulkLimitRejected   prometheus.Counter
	SinkPublishFailures prometheus.Counter
}

// New creates and registers all collectors on reg.
// Pass prometheus.DefaultRegisterer in main and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "securitylog_events_recorded_total",
			Help: "Security events persisted, by event type",
		}, []string{"event_type"}),
		WriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "securitylog_write_failures_total",
			Help: "Security events that failed to persist and were dropped",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "securitylog_events_dropped_total",
			Help: "Security events dropped because the write queue was full or closed",
		}),
		DetectorBlocked: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "securitylog_detector_blocked_total",
			Help: "Requests rejected by the abuse detector, by reason",
		}, []string{"reason"}),
		DetectorStoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "securitylog_detector_store_errors_total",
			Help: "Abuse detector count queries that failed and let the request through",
		}),
		GateDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_gate_denied_total",
			Help: "Requests rejected by the admin role gate, by reason",
		}, []string{"reason"}),
		BulkLimitRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "bulklimit_rejected_total",
			Help: "Bulk operations rejected by the per-actor limiter",
		}),
		SinkPublishFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "securitylog_sink_failures_total",
			Help: "Persisted security events that could not be forwarded to a sink",
		}),
	}
}

func (m *Metrics) IncEventRecorded(eventType string) {
	if m == nil {
		return
	}
	m.EventsRecorded.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncWriteFailure() {
	if m == nil {
		return
	}
	m.WriteFailures.Inc()
}

func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.EventsDropped.Inc()
}

func (m *Metrics) IncDetectorBlocked(reason string) {
	if m == nil {
		return
	}
	m.DetectorBlocked.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncDetectorStoreError() {
	if m == nil {
		return
	}
	m.DetectorStoreErrors.Inc()
}

func (m *Metrics) IncGateDenied(reason string) {
	if m == nil {
		return
	}
	m.GateDenied.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncBulkLimitRejected() {
	if m == nil {
		return
	}
	m.BulkLimitRejected.Inc()
}

func (m *Metrics) IncSinkFailure() {
	if m == nil {
		return
	}
	m.SinkPublishFailures.Inc()
}
