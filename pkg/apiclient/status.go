package apiclient

// StatusResponse mirrors pkg/api/handlers.StatusResponse.
type StatusResponse struct {
	BackendCount int  `json:"backend_count"`
	ObjectCount  int  `json:"object_count"`
	CacheRunning bool `json:"cache_running"`
}

// Status calls GET /status.
func (c *Client) Status() (*StatusResponse, error) {
	var result StatusResponse
	if err := c.get("/status", &result); err != nil {
		return nil, err
	}
	return &result, nil
}
