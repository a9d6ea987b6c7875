package apiclient

import "fmt"

// BackendView mirrors pkg/api/handlers.BackendView.
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

// ObjectView mirrors pkg/api/handlers.ObjectView.
type ObjectView struct {
	URI     string  `json:"uri"`
	Size    uint64  `json:"size"`
	Hotness float64 `json:"hotness"`
}

// registerRequest mirrors pkg/api/handlers.RegisterRequest.
type registerRequest struct {
	ID            int     `json:"id"`
	Type          string  `json:"type"`
	MountPath     string  `json:"mount_path"`
	Capacity      uint64  `json:"capacity"`
	PerfFactor    float64 `json:"perf_factor"`
	LowWatermark  float64 `json:"low_watermark"`
	HighWatermark float64 `json:"high_watermark"`
}

// enableRequest mirrors the body of POST /backends/{id}/enable.
type enableRequest struct {
	Enabled bool `json:"enabled"`
}

// migrateRequest mirrors pkg/api/handlers.MigrateRequest.
type migrateRequest struct {
	URI           string `json:"uri"`
	DestBackendID int    `json:"dest_backend_id"`
}

// watermarksRequest mirrors pkg/api/handlers.WatermarksRequest.
type watermarksRequest struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// ListBackends calls GET /backends.
func (c *Client) ListBackends() ([]BackendView, error) {
	var result []BackendView
	if err := c.get("/backends", &result); err != nil {
		return nil, err
	}
	return result, nil
}

// RegisterBackend calls POST /backends, adding a local disk-backed tier.
func (c *Client) RegisterBackend(id int, typ, mountPath string, capacity uint64, perfFactor, low, high float64) (*BackendView, error) {
	req := registerRequest{
		ID:            id,
		Type:          typ,
		MountPath:     mountPath,
		Capacity:      capacity,
		PerfFactor:    perfFactor,
		LowWatermark:  low,
		HighWatermark: high,
	}
	var result BackendView
	if err := c.post("/backends", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// EnableBackend calls POST /backends/{id}/enable with enabled=true.
func (c *Client) EnableBackend(backendID int) error {
	return c.setEnabled(backendID, true)
}

// DisableBackend calls POST /backends/{id}/enable with enabled=false.
func (c *Client) DisableBackend(backendID int) error {
	return c.setEnabled(backendID, false)
}

func (c *Client) setEnabled(backendID int, enabled bool) error {
	req := enableRequest{Enabled: enabled}
	return c.post(fmt.Sprintf("/backends/%d/enable", backendID), req, nil)
}

// ListObjects calls GET /backends/{id}/objects.
func (c *Client) ListObjects(backendID int) ([]ObjectView, error) {
	var result []ObjectView
	if err := c.get(fmt.Sprintf("/backends/%d/objects", backendID), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Migrate calls POST /backends/{id}/migrate with backendID as the path
// id, moving the object named by uri from whichever backend currently
// holds it to destBackendID. The server does not check the path id.
func (c *Client) Migrate(backendID int, uri string, destBackendID int) error {
	req := migrateRequest{URI: uri, DestBackendID: destBackendID}
	return c.post(fmt.Sprintf("/backends/%d/migrate", backendID), req, nil)
}

// SetWatermarks calls POST /backends/{id}/watermarks.
func (c *Client) SetWatermarks(backendID int, low, high float64) error {
	req := watermarksRequest{Low: low, High: high}
	return c.post(fmt.Sprintf("/backends/%d/watermarks", backendID), req, nil)
}
