package apiclient

import "fmt"

// APIError represents an error response from the admin API.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("admin API: %d: %s", e.StatusCode, e.Message)
}

// IsNotFound returns true if the admin API responded 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == 404
}

// IsConflict returns true if the admin API responded 409.
func (e *APIError) IsConflict() bool {
	return e.StatusCode == 409
}
