package stowgate

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when an object does not exist
	ErrNotFound = errors.New("not found")
	// ErrInternal is returned when an internal error occurs
	ErrInternal = errors.New("internal error")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized is returned when authentication fails
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the backend refuses the credentials
	ErrForbidden = errors.New("forbidden")
)

// BackendError is an object storage failure annotated with the HTTP status
// and error code the backend reported. StatusCode is 0 when the failure did
// not come from an HTTP response (network errors, cancellations).
type BackendError struct {
	Op         string
	StatusCode int
	Code       string
	Err        error
}

func (e *BackendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Op, e.Code, e.StatusCode, e.Err)
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is lets callers match backend failures against the package sentinels.
func (e *BackendError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound || isNotFoundCode(e.Code)
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden || e.Code == "AccessDenied"
	}
	return false
}

// ErrorCode returns the backend code, or "Unknown" when none was reported.
func (e *BackendError) ErrorCode() string {
	if e.Code == "" {
		return "Unknown"
	}
	return e.Code
}

func isNotFoundCode(code string) bool {
	switch code {
	case "NoSuchKey", "NotFound", "NoSuchObject":
		return true
	}
	return false
}

// AsBackendError unwraps err into a *BackendError if one is in the chain.
func AsBackendError(err error) (*BackendError, bool) {
	var be *BackendError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
