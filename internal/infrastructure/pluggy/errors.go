package pluggy

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuth is returned when the aggregator rejects the client credentials.
// It is fatal for the sync attempt that hit it.
var ErrAuth = errors.New("pluggy authentication failed")

// APIError carries a non-2xx response from the aggregator.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("API error (status %d) %s %s: %s", e.StatusCode, e.Method, e.Path, body)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
