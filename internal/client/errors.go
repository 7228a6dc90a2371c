package client

import (
	"errors"
	"fmt"

	"webforge/internal/security"
)

// APIError is a provider HTTP failure.
type APIError struct {
	Provider   string
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s API error %d (%s): %s", e.Provider, e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// newAPIError builds an APIError with credentials masked out of the message.
func newAPIError(provider string, code int, status, msg string) *APIError {
	if len(msg) > 2000 {
		msg = msg[:2000] + "..."
	}
	return &APIError{
		Provider:   provider,
		StatusCode: code,
		Status:     status,
		Message:    security.Redact(msg),
	}
}

// StatusCode extracts the HTTP status from a provider error, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsAuthError reports whether err is a credential rejection.
func IsAuthError(err error) bool {
	code := StatusCode(err)
	return code == 401 || code == 403
}
