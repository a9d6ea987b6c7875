package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/objmapper/objmapper/pkg/objmap/backend"
	"github.com/objmapper/objmapper/pkg/objmap/backend/local"
	"github.com/objmapper/objmapper/pkg/objmap/index"
)

// BackendHandler serves the backend inventory and migration endpoints.
type BackendHandler struct {
	manager *backend.Manager
}

// NewBackendHandler creates a new backend handler.
func NewBackendHandler(manager *backend.Manager) *BackendHandler {
	return &BackendHandler{manager: manager}
}

// BackendView is the JSON shape of a single backend in list responses.
type BackendView struct {
	ID         int     `json:"id"`
	Type       string  `json:"type"`
	MountPath  string  `json:"mount_path"`
	Capacity   uint64  `json:"capacity"`
	UsedBytes  uint64  `json:"used_bytes"`
	PerfFactor float64 `json:"perf_factor"`
	LowMark    float64 `json:"low_watermark"`
	HighMark   float64 `json:"high_watermark"`
	Enabled    bool    `json:"enabled"`
	ReadOnly   bool    `json:"read_only"`
}

func viewOf(b *backend.Backend) BackendView {
	flags := b.Flags()
	wm := b.Watermarks()
	return BackendView{
		ID:         b.ID,
		Type:       b.Type.String(),
		MountPath:  b.MountPath,
		Capacity:   b.Capacity,
		UsedBytes:  b.UsedBytes(),
		PerfFactor: b.PerfFactor,
		LowMark:    wm.Low,
		HighMark:   wm.High,
		Enabled:    flags.Enabled,
		ReadOnly:   flags.ReadOnly,
	}
}

// List handles GET /backends.
func (h *BackendHandler) List(w http.ResponseWriter, r *http.Request) {
	backends := h.manager.Backends()
	views := make([]BackendView, 0, len(backends))
	for _, b := range backends {
		views = append(views, viewOf(b))
	}
	writeJSON(w, http.StatusOK, okResponse(views))
}

func backendIDFromPath(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

// RegisterRequest is the body of POST /backends. It only admits local
// disk-backed tiers: registering a network backend needs store
// credentials that have no business travelling over the admin API, so
// that still requires a config edit and restart.
type RegisterRequest struct {
	ID            int     `json:"id"`
	Type          string  `json:"type"`
	MountPath     string  `json:"mount_path"`
	Capacity      uint64  `json:"capacity"`
	PerfFactor    float64 `json:"perf_factor"`
	LowWatermark  float64 `json:"low_watermark"`
	HighWatermark float64 `json:"high_watermark"`
}

// Register handles POST /backends, adding a new local backend tier at
// runtime.
func (h *BackendHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	typ, err := backend.ParseType(req.Type)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	if req.MountPath == "" {
		BadRequest(w, "mount_path is required")
		return
	}

	store, err := local.New(local.DefaultConfig(req.MountPath))
	if err != nil {
		BadRequest(w, "local store: "+err.Error())
		return
	}

	wm := backend.Watermarks{Low: req.LowWatermark, High: req.HighWatermark}
	if wm.Low == 0 && wm.High == 0 {
		wm = backend.Watermarks{Low: 0.2, High: 0.8}
	}
	b := backend.New(req.ID, typ, req.MountPath, req.Capacity, req.PerfFactor,
		backend.Flags{Enabled: true, Persistent: true, MigrationSrc: true, MigrationDst: true},
		wm, store)

	if err := h.manager.RegisterBackend(b); err != nil {
		BadRequest(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, okResponse(viewOf(b)))
}

// enableRequest is the body of POST /backends/{id}/enable.
type enableRequest struct {
	Enabled bool `json:"enabled"`
}

// SetEnabled handles POST /backends/{id}/enable, toggling whether a
// backend accepts new object placement. Migrations to or from the
// backend are not gated by this flag.
func (h *BackendHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := backendIDFromPath(r)
	if err != nil {
		BadRequest(w, "invalid backend id")
		return
	}

	var req enableRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	b, err := h.manager.Backend(id)
	if err != nil {
		NotFound(w, err.Error())
		return
	}

	flags := b.Flags()
	flags.Enabled = req.Enabled
	b.SetFlags(flags)

	writeJSON(w, http.StatusOK, okResponse(viewOf(b)))
}

// ObjectView is the JSON shape of a single object entry.
type ObjectView struct {
	URI     string  `json:"uri"`
	Size    uint64  `json:"size"`
	Hotness float64 `json:"hotness"`
}

// Objects handles GET /backends/{id}/objects.
func (h *BackendHandler) Objects(w http.ResponseWriter, r *http.Request) {
	id, err := backendIDFromPath(r)
	if err != nil {
		BadRequest(w, "invalid backend id")
		return
	}

	entries := h.manager.ListObjects(id)
	views := make([]ObjectView, 0, len(entries))
	for _, e := range entries {
		views = append(views, ObjectView{URI: e.URI, Size: e.Size(), Hotness: e.Hotness()})
	}
	writeJSON(w, http.StatusOK, okResponse(views))
}

// MigrateRequest is the body of POST /backends/{id}/migrate.
//
// The {id} path segment is not consulted: the object named by URI moves
// from whichever backend currently holds it.
type MigrateRequest struct {
	URI           string `json:"uri"`
	DestBackendID int    `json:"dest_backend_id"`
}

// Migrate handles POST /backends/{id}/migrate.
func (h *BackendHandler) Migrate(w http.ResponseWriter, r *http.Request) {
	var req MigrateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := h.manager.MigrateObject(r.Context(), req.URI, req.DestBackendID); err != nil {
		switch {
		case errors.Is(err, index.ErrNotFound), errors.Is(err, backend.ErrBackendNotFound):
			NotFound(w, err.Error())
		default:
			BadRequest(w, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, okResponse(map[string]string{"uri": req.URI}))
}

// WatermarksRequest is the body of POST /backends/{id}/watermarks.
type WatermarksRequest struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Watermarks handles POST /backends/{id}/watermarks.
func (h *BackendHandler) Watermarks(w http.ResponseWriter, r *http.Request) {
	id, err := backendIDFromPath(r)
	if err != nil {
		BadRequest(w, "invalid backend id")
		return
	}

	var req WatermarksRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	if err := h.manager.SetWatermarks(id, backend.Watermarks{Low: req.Low, High: req.High}); err != nil {
		BadRequest(w, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, okResponse(map[string]string{"status": "updated"}))
}

// decodeJSONBody decodes a JSON request body into v, writing a 400
// response and returning false on failure.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "invalid request body")
		return false
	}
	return true
}
