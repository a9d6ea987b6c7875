package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/objmapper/objmapper/pkg/objmap/backend"
	"github.com/objmapper/objmapper/pkg/objmap/backend/local"
)

func newTestBackend(t *testing.T, id int, typ backend.Type) *backend.Backend {
	t.Helper()
	store, err := local.New(local.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	return backend.New(id, typ, t.TempDir(), 1<<30, 1.0,
		backend.Flags{Enabled: true, Persistent: true, MigrationSrc: true, MigrationDst: true},
		backend.Watermarks{Low: 0.2, High: 0.8}, store)
}

func newTestManager(t *testing.T) *backend.Manager {
	t.Helper()
	m := backend.NewManager()
	b := newTestBackend(t, 1, backend.TypeSSD)
	if err := m.RegisterBackend(b); err != nil {
		t.Fatalf("RegisterBackend: %v", err)
	}
	if err := m.SetDefault(1); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}
	return m
}

func withChiParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestListBackends(t *testing.T) {
	m := newTestManager(t)
	h := NewBackendHandler(m)

	req := httptest.NewRequest("GET", "/backends", nil)
	w := httptest.NewRecorder()
	h.List(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	views, ok := resp.Data.([]interface{})
	if !ok || len(views) != 1 {
		t.Fatalf("Data = %#v, want one backend view", resp.Data)
	}
}

func TestObjectsInvalidBackendID(t *testing.T) {
	m := newTestManager(t)
	h := NewBackendHandler(m)

	req := withChiParam(httptest.NewRequest("GET", "/backends/nope/objects", nil), "id", "nope")
	w := httptest.NewRecorder()
	h.Objects(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestMigrateMissingObjectReturns404(t *testing.T) {
	m := newTestManager(t)
	h := NewBackendHandler(m)

	body, _ := json.Marshal(MigrateRequest{URI: "obj://missing", DestBackendID: 1})
	req := httptest.NewRequest("POST", "/backends/1/migrate", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.Migrate(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestWatermarksRejectsInvertedRange(t *testing.T) {
	m := newTestManager(t)
	h := NewBackendHandler(m)

	body, _ := json.Marshal(WatermarksRequest{Low: 1.5, High: 0.1})
	req := withChiParam(httptest.NewRequest("POST", "/backends/1/watermarks", bytes.NewReader(body)), "id", "1")
	w := httptest.NewRecorder()
	h.Watermarks(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestWatermarksAcceptsValidRange(t *testing.T) {
	m := newTestManager(t)
	h := NewBackendHandler(m)

	body, _ := json.Marshal(WatermarksRequest{Low: 0.1, High: 0.9})
	req := withChiParam(httptest.NewRequest("POST", "/backends/1/watermarks", bytes.NewReader(body)), "id", "1")
	w := httptest.NewRecorder()
	h.Watermarks(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
