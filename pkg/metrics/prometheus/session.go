package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/objmapper/objmapper/pkg/metrics"
	"github.com/objmapper/objmapper/pkg/objmap/protocol"
)

// SessionMetrics is the Prometheus implementation of session.Metrics
// (pkg/objmap/session/metrics.go), handed to a session.Server via
// SetMetrics. The session package never imports this one.
type SessionMetrics struct {
	connectionsOpened prometheus.Counter
	connectionsActive prometheus.Gauge
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

// NewSessionMetrics creates a new Prometheus-backed session.Metrics
// instance, or nil if metrics are not enabled.
func NewSessionMetrics() *SessionMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &SessionMetrics{
		connectionsOpened: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "objmapper_session_connections_opened_total",
			Help: "Total number of accepted connections",
		}),
		connectionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "objmapper_session_connections_active",
			Help: "Number of currently open connections",
		}),
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "objmapper_protocol_requests_total",
			Help: "Total number of protocol requests by operation and status",
		}, []string{"op", "status"}),
		requestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "objmapper_protocol_request_duration_seconds",
			Help:    "Duration of protocol requests by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

func (m *SessionMetrics) RecordConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsOpened.Inc()
	m.connectionsActive.Inc()
}

func (m *SessionMetrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

func (m *SessionMetrics) ObserveRequest(op string, status protocol.Status, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, status.String()).Inc()
	m.requestDuration.WithLabelValues(op).Observe(duration.Seconds())
}
