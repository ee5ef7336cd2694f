package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Domain errors
	ErrorTypeValidation      ErrorType = "VALIDATION"
	ErrorTypeNotFound        ErrorType = "NOT_FOUND"
	ErrorTypeVersionConflict ErrorType = "VERSION_CONFLICT"
	ErrorTypeConflictPending ErrorType = "SYNC_CONFLICT_PENDING"

	// Application errors
	ErrorTypeInternal ErrorType = "INTERNAL"

	// Infrastructure errors
	ErrorTypeProvider ErrorType = "PROVIDER_FAILURE"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType      `json:"type"`
	Message    string         `json:"message"`
	Code       string         `json:"code,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
	Retryable  bool           `json:"retryable"`
	Cause      error          `json:"-"`
	StackTrace string         `json:"-"`
	HTTPStatus int            `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// AsTransient marks the error retryable and reports it as 503.
func (e *AppError) AsTransient() *AppError {
	e.Retryable = true
	e.HTTPStatus = http.StatusServiceUnavailable
	return e
}

func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return b.String()
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
		StackTrace: captureStackTrace(),
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		StackTrace: captureStackTrace(),
	}
}

// NewVersionConflictError reports a stale optimistic-lock write. The caller
// may re-read the aggregate and reapply its change.
func NewVersionConflictError(resource string, expected, actual int) *AppError {
	return &AppError{
		Type:      ErrorTypeVersionConflict,
		Message:   fmt.Sprintf("%s was modified concurrently", resource),
		Retryable: true,
		Details: map[string]any{
			"expected_version": expected,
			"actual_version":   actual,
		},
		HTTPStatus: http.StatusConflict,
		StackTrace: captureStackTrace(),
	}
}

// NewProviderError creates an external provider failure. Transient failures
// (timeouts, throttling, 5xx) are marked retryable.
func NewProviderError(provider string, err error, transient bool) *AppError {
	status := http.StatusBadGateway
	if transient {
		status = http.StatusServiceUnavailable
	}
	return &AppError{
		Type:       ErrorTypeProvider,
		Message:    fmt.Sprintf("provider '%s' failed", provider),
		Retryable:  transient,
		Cause:      err,
		HTTPStatus: status,
		StackTrace: captureStackTrace(),
	}
}

// NewSyncConflictPendingError signals outstanding sync conflicts that need a
// caller decision.
func NewSyncConflictPendingError(userID string, count int) *AppError {
	return &AppError{
		Type:       ErrorTypeConflictPending,
		Message:    fmt.Sprintf("%d sync conflict(s) awaiting resolution", count),
		Details:    map[string]any{"user_id": userID, "conflicts": count},
		HTTPStatus: http.StatusConflict,
		StackTrace: captureStackTrace(),
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		StackTrace: captureStackTrace(),
	}
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsVersionConflict checks if an error is a stale version error
func IsVersionConflict(err error) bool {
	return IsType(err, ErrorTypeVersionConflict)
}

// IsProviderFailure checks if an error came from an external provider
func IsProviderFailure(err error) bool {
	return IsType(err, ErrorTypeProvider)
}

// IsSyncConflictPending checks for outstanding sync conflicts
func IsSyncConflictPending(err error) bool {
	return IsType(err, ErrorTypeConflictPending)
}

// IsTransient reports whether retrying the failed operation may succeed.
func IsTransient(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Retryable
}

// Wrap wraps an error with additional context. AppErrors keep their type and
// status; anything else becomes an internal error.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if appErr := GetAppError(err); appErr != nil {
		wrapped := *appErr
		wrapped.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return &wrapped
	}

	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...any) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
