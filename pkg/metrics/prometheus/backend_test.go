package prometheus

import (
	"testing"
	"time"

	"github.com/objmapper/objmapper/pkg/metrics"
)

func TestNewBackendMetricsNilWhenDisabled(t *testing.T) {
	if metrics.IsEnabled() {
		t.Skip("metrics already enabled by an earlier test in this process")
	}
	if m := NewBackendMetrics(); m != nil {
		t.Fatal("expected nil BackendMetrics when metrics are disabled")
	}
}

func TestBackendMetricsRecordsObservations(t *testing.T) {
	metrics.InitRegistry()
	m := NewBackendMetrics()
	if m == nil {
		t.Fatal("expected a non-nil BackendMetrics once metrics are enabled")
	}

	m.ObserveRead(1, 5*time.Millisecond)
	m.ObserveWrite(1, 4096, 2*time.Millisecond)
	m.RecordMigration(1, 2, 1024, time.Millisecond, nil)
	m.RecordMigration(1, 2, 0, time.Millisecond, errTest)
	m.RecordUtilisation(1, 512, 1024)
	m.ObserveMaintenanceTick(10*time.Millisecond, 2, 1)
	m.RecordObjectCount(42)
}

func TestNilBackendMetricsIsSafe(t *testing.T) {
	var m *BackendMetrics
	m.ObserveRead(1, time.Millisecond)
	m.ObserveWrite(1, 1, time.Millisecond)
	m.RecordMigration(1, 2, 1, time.Millisecond, nil)
	m.RecordUtilisation(1, 1, 1)
	m.ObserveMaintenanceTick(time.Millisecond, 0, 0)
	m.RecordObjectCount(0)
}

var errTest = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
