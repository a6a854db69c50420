package httpx

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a failed response body is kept.
const maxErrorBody = 2048

// StatusError reports a non-2xx response from a remote service.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

// Error implements error.
func (e *StatusError) Error() string {
	if e == nil {
		return "HTTP status error"
	}
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Service, e.StatusCode, body)
}

// CheckResponse returns a *StatusError for any status other than want.
// The body is drained and truncated into the error.
func CheckResponse(service string, resp *http.Response, want int) error {
	if resp.StatusCode == want {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{Service: service, StatusCode: resp.StatusCode, Body: string(b)}
}
