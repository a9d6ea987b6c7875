package handlers

import (
	"net/http"

	"github.com/objmapper/objmapper/pkg/objmap/backend"
)

// HealthHandler serves the unauthenticated liveness and status probes.
type HealthHandler struct {
	manager *backend.Manager
}

// NewHealthHandler creates a new health handler. manager may be nil, in
// which case Status reports unhealthy.
func NewHealthHandler(manager *backend.Manager) *HealthHandler {
	return &HealthHandler{manager: manager}
}

// Liveness handles GET /healthz - is the process running.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "objmapperd",
	}))
}

// StatusResponse is the payload returned by GET /status.
type StatusResponse struct {
	BackendCount int  `json:"backend_count"`
	ObjectCount  int  `json:"object_count"`
	CacheRunning bool `json:"cache_running"`
}

// Status handles GET /status - a snapshot of the running manager.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.manager == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("manager not initialized"))
		return
	}

	st := h.manager.Status()
	writeJSON(w, http.StatusOK, okResponse(StatusResponse{
		BackendCount: st.BackendCount,
		ObjectCount:  st.ObjectCount,
		CacheRunning: st.CacheRunning,
	}))
}
