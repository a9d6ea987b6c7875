package backend

import "time"

// Metrics receives observations from a Manager. A nil Metrics is always
// safe to call through — Manager guards every call site, so the default
// (no metrics installed) costs nothing beyond the guard check.
type Metrics interface {
	ObserveRead(backendID int, duration time.Duration)
	ObserveWrite(backendID int, bytes int64, duration time.Duration)
	RecordMigration(fromBackendID, toBackendID int, bytes int64, duration time.Duration, err error)
	RecordUtilisation(backendID int, usedBytes, capacity uint64)
	ObserveMaintenanceTick(duration time.Duration, promoted, demoted int)
	RecordObjectCount(count int)
}

// SetMetrics installs the metrics sink used by CreateObject, GetObject,
// MigrateObject and the maintenance loop. Passing nil disables metrics
// reporting (the default for a Manager built via NewManager).
func (m *Manager) SetMetrics(mt Metrics) {
	m.mu.Lock()
	m.metrics = mt
	m.mu.Unlock()
}
