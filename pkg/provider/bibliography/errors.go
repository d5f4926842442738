package bibliography

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Common errors returned by bibliography providers. Adapters wrap these with
// their own prefix so callers can test with errors.Is regardless of backend.
var (
	// ErrAuth indicates a missing or rejected API key.
	ErrAuth = errors.New("bibliography: authentication error")

	// ErrRateLimited indicates the backend throttled the request.
	ErrRateLimited = errors.New("bibliography: rate limit exceeded")

	// ErrNotFound indicates the backend has no such resource.
	ErrNotFound = errors.New("bibliography: not found")

	// ErrNetwork indicates the backend could not be reached.
	ErrNetwork = errors.New("bibliography: network error")

	// ErrInvalidResponse indicates a body that could not be decoded.
	ErrInvalidResponse = errors.New("bibliography: invalid response")
)

// APIError is a non-success HTTP response that maps to none of the sentinel
// errors.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: API error (status %d)", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// CheckResponse converts a non-2xx response into an error. provider names the
// backend in the error text. The response body is not closed.
func CheckResponse(provider string, resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w: status %d", provider, ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s: %w: status %d", provider, ErrRateLimited, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w: status %d", provider, ErrNotFound, resp.StatusCode)
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &APIError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(msg)),
	}
}

// IsAuthError reports whether err indicates an authentication problem.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrAuth) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// IsRateLimited reports whether err indicates throttling.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// IsNotFound reports whether err indicates a missing resource.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}
