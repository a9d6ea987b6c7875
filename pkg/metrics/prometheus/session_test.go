package prometheus

import (
	"testing"
	"time"

	"github.com/objmapper/objmapper/pkg/metrics"
	"github.com/objmapper/objmapper/pkg/objmap/protocol"
)

func TestNewSessionMetricsNilWhenDisabled(t *testing.T) {
	if metrics.IsEnabled() {
		t.Skip("metrics already enabled by an earlier test in this process")
	}
	if m := NewSessionMetrics(); m != nil {
		t.Fatal("expected nil SessionMetrics when metrics are disabled")
	}
}

func TestSessionMetricsRecordsObservations(t *testing.T) {
	metrics.InitRegistry()
	m := NewSessionMetrics()
	if m == nil {
		t.Fatal("expected a non-nil SessionMetrics once metrics are enabled")
	}

	m.RecordConnectionOpened()
	m.ObserveRequest("get", protocol.StatusOK, time.Millisecond)
	m.RecordConnectionClosed()
}

func TestNilSessionMetricsIsSafe(t *testing.T) {
	var m *SessionMetrics
	m.RecordConnectionOpened()
	m.ObserveRequest("get", protocol.StatusOK, time.Millisecond)
	m.RecordConnectionClosed()
}
