// Package errs defines the error taxonomy shared by the gateway, the push
// channel and the action layer. Callers classify with errors.Is / errors.As.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAuthRequired is returned when an operation needs an active session and
// none is held. It is raised before any network attempt.
var ErrAuthRequired = errors.New("authentication required")

// APIError is a non-success response from the backend. Message carries the
// envelope's error string when the backend provided one.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// Unauthorized reports whether the error tears down the session (401 on an
// authenticated call).
func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

// NewAPIError builds an APIError from a status and an optional envelope message.
func NewAPIError(status int, message string) *APIError {
	return &APIError{Status: status, Message: message}
}

// TransportError is a push-channel failure: a malformed frame, an unknown
// event discriminator or a broken connection. It never tears down the session.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// Transportf wraps a formatted cause as a TransportError.
func Transportf(format string, args ...any) *TransportError {
	return &TransportError{Err: fmt.Errorf(format, args...)}
}

// ValidationError is a caller-supplied input failing a local precondition.
// Raised synchronously, never sent over the wire.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Validationf builds a ValidationError for a field.
func Validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsUnauthorized reports whether err is an APIError with status 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}
