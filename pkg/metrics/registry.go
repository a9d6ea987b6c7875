// Package metrics gates objmapperd's Prometheus instrumentation behind
// IsEnabled so a disabled metrics subsystem costs nothing at runtime:
// every constructor in this package returns nil when metrics are off,
// and every concrete metrics type is nil-safe to call through.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled  atomic.Bool
	registry *prometheus.Registry
	initOnce sync.Once
)

// InitRegistry creates the process-wide Prometheus registry and flips
// IsEnabled on. Safe to call more than once; only the first call takes
// effect. Call this before constructing any *Metrics value.
func InitRegistry() {
	initOnce.Do(func() {
		registry = prometheus.NewRegistry()
		enabled.Store(true)
	})
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return enabled.Load()
}

// GetRegistry returns the process-wide registry. Panics if called before
// InitRegistry — callers gate on IsEnabled first, matching every
// New*Metrics constructor in this package.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		panic("metrics: GetRegistry called before InitRegistry")
	}
	return registry
}

// Handler returns the /metrics HTTP handler for the registry. Returns
// nil if metrics are disabled.
func Handler() http.Handler {
	if !IsEnabled() {
		return nil
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
