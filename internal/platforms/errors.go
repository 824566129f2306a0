package platforms

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shubh-37/multipost-agent/internal/models"
)

var (
	ErrNotConfigured = errors.New("platform not configured")
	ErrBadRequest    = errors.New("bad request")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("not found")
	ErrRateLimited   = errors.New("rate limit exceeded")
)

// APIError is a non-2xx response from a platform API
type APIError struct {
	Platform   models.PlatformID
	StatusCode int
	Message    string
	Kind       error
}

func (e *APIError) Error() string {
	if e.Kind != nil {
		return fmt.Sprintf("%s: %s: %s", e.Platform.DisplayName(), e.Kind, e.Message)
	}
	return fmt.Sprintf("%s API error (status %d): %s", e.Platform.DisplayName(), e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// kindForStatus maps an HTTP status to one of the sentinel errors
func kindForStatus(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return nil
	}
}

func newAPIError(platform models.PlatformID, status int, message string) *APIError {
	return &APIError{
		Platform:   platform,
		StatusCode: status,
		Message:    message,
		Kind:       kindForStatus(status),
	}
}
