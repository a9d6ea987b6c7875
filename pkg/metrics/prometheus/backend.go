package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/objmapper/objmapper/pkg/metrics"
)

// BackendMetrics is the Prometheus implementation of backend.Metrics
// (pkg/objmap/backend/metrics.go). It is handed to a *backend.Manager via
// SetMetrics; the backend package never imports this one.
type BackendMetrics struct {
	readDuration  *prometheus.HistogramVec
	writeDuration *prometheus.HistogramVec
	writeBytes    *prometheus.HistogramVec
	migrations    *prometheus.CounterVec
	migrationDur  *prometheus.HistogramVec
	migrationErrs *prometheus.CounterVec
	utilisation   *prometheus.GaugeVec
	usedBytes     *prometheus.GaugeVec
	tickDuration  prometheus.Histogram
	tickPromoted  prometheus.Counter
	tickDemoted   prometheus.Counter
	objectCount   prometheus.Gauge
}

// NewBackendMetrics creates a new Prometheus-backed backend.Metrics
// instance, or nil if metrics are not enabled.
func NewBackendMetrics() *BackendMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &BackendMetrics{
		readDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "objmapper_backend_read_duration_seconds",
			Help:    "Duration of get_object reads by backend id",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend_id"}),
		writeDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "objmapper_backend_write_duration_seconds",
			Help:    "Duration of create_object writes by backend id",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend_id"}),
		writeBytes: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "objmapper_backend_write_bytes",
			Help:    "Distribution of bytes written per create_object call",
			Buckets: prometheus.ExponentialBuckets(4096, 4, 8),
		}, []string{"backend_id"}),
		migrations: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "objmapper_migration_total",
			Help: "Total number of object migrations by source and destination backend",
		}, []string{"from_backend", "to_backend"}),
		migrationDur: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "objmapper_migration_duration_seconds",
			Help:    "Duration of object migrations",
			Buckets: prometheus.DefBuckets,
		}, []string{"from_backend", "to_backend"}),
		migrationErrs: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "objmapper_migration_errors_total",
			Help: "Total number of failed object migrations",
		}, []string{"from_backend", "to_backend"}),
		utilisation: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "objmapper_backend_utilisation_ratio",
			Help: "Fraction of a backend's capacity currently in use",
		}, []string{"backend_id"}),
		usedBytes: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "objmapper_backend_used_bytes",
			Help: "Bytes currently in use on a backend",
		}, []string{"backend_id"}),
		tickDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "objmapper_maintenance_tick_duration_seconds",
			Help:    "Duration of the hotness-decay and cache promotion/demotion maintenance tick",
			Buckets: prometheus.DefBuckets,
		}),
		tickPromoted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "objmapper_maintenance_promoted_total",
			Help: "Total number of objects promoted into the cache backend by the maintenance loop",
		}),
		tickDemoted: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "objmapper_maintenance_demoted_total",
			Help: "Total number of objects demoted out of the cache backend by the maintenance loop",
		}),
		objectCount: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "objmapper_index_object_count",
			Help: "Total number of objects tracked by the global index",
		}),
	}
}

func (m *BackendMetrics) RecordObjectCount(count int) {
	if m == nil {
		return
	}
	m.objectCount.Set(float64(count))
}

func (m *BackendMetrics) ObserveRead(backendID int, duration time.Duration) {
	if m == nil {
		return
	}
	m.readDuration.WithLabelValues(strconv.Itoa(backendID)).Observe(duration.Seconds())
}

func (m *BackendMetrics) ObserveWrite(backendID int, bytes int64, duration time.Duration) {
	if m == nil {
		return
	}
	id := strconv.Itoa(backendID)
	m.writeDuration.WithLabelValues(id).Observe(duration.Seconds())
	if bytes > 0 {
		m.writeBytes.WithLabelValues(id).Observe(float64(bytes))
	}
}

func (m *BackendMetrics) RecordMigration(fromBackendID, toBackendID int, bytes int64, duration time.Duration, err error) {
	if m == nil {
		return
	}
	from, to := strconv.Itoa(fromBackendID), strconv.Itoa(toBackendID)
	m.migrations.WithLabelValues(from, to).Inc()
	m.migrationDur.WithLabelValues(from, to).Observe(duration.Seconds())
	if err != nil {
		m.migrationErrs.WithLabelValues(from, to).Inc()
	}
}

func (m *BackendMetrics) RecordUtilisation(backendID int, usedBytes, capacity uint64) {
	if m == nil {
		return
	}
	id := strconv.Itoa(backendID)
	m.usedBytes.WithLabelValues(id).Set(float64(usedBytes))
	if capacity > 0 {
		m.utilisation.WithLabelValues(id).Set(float64(usedBytes) / float64(capacity))
	}
}

func (m *BackendMetrics) ObserveMaintenanceTick(duration time.Duration, promoted, demoted int) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(duration.Seconds())
	m.tickPromoted.Add(float64(promoted))
	m.tickDemoted.Add(float64(demoted))
}
