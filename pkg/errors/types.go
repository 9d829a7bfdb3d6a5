package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a structured error code
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"

	// Acquisition errors
	ErrCodeFeedUnavailable ErrorCode = "FEED_UNAVAILABLE"
	ErrCodeTransferFailed  ErrorCode = "TRANSFER_FAILED"

	// Recognition errors
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeDecodeFailed       ErrorCode = "DECODE_FAILED"

	// Resource errors
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeOutputLocked ErrorCode = "OUTPUT_LOCKED"

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// AppError represents a structured application error
type AppError struct {
	Code     ErrorCode              `json:"code"`
	Message  string                 `json:"message"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Cause    error                  `json:"-"`
	HTTPCode int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// GetHTTPCode returns the appropriate HTTP status code
func (e *AppError) GetHTTPCode() int {
	if e.HTTPCode != 0 {
		return e.HTTPCode
	}
	return getDefaultHTTPCode(e.Code)
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		HTTPCode: getDefaultHTTPCode(code),
	}
}

// Newf creates a new AppError with formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		HTTPCode: getDefaultHTTPCode(code),
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(cause error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Cause:    cause,
		HTTPCode: getDefaultHTTPCode(code),
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(cause error, code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Cause:    cause,
		HTTPCode: getDefaultHTTPCode(code),
	}
}

// getDefaultHTTPCode returns the default HTTP status code for an error code
func getDefaultHTTPCode(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConfigInvalid, ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeFeedUnavailable, ErrCodeTransferFailed:
		return http.StatusBadGateway
	case ErrCodeBackendUnavailable:
		return http.StatusServiceUnavailable
	case ErrCodeDecodeFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeOutputLocked:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Common error constructors

// ConfigError creates a configuration error
func ConfigError(key string, reason string) *AppError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("configuration error for '%s': %s", key, reason)).
		WithDetail("key", key).
		WithDetail("reason", reason)
}

// FeedUnavailable creates an error for a feed that could not be fetched or parsed
func FeedUnavailable(feedURL string, cause error) *AppError {
	return Wrap(cause, ErrCodeFeedUnavailable, fmt.Sprintf("feed unavailable: %s", feedURL)).
		WithDetail("url", feedURL)
}

// TransferFailed creates a download failure error
func TransferFailed(sourceURL string, reason string, cause error) *AppError {
	return Wrap(cause, ErrCodeTransferFailed, fmt.Sprintf("transfer failed: %s", reason)).
		WithDetail("url", sourceURL).
		WithDetail("reason", reason)
}

// BackendUnavailable creates an error for a missing or unloadable recognition backend
func BackendUnavailable(backend string, cause error) *AppError {
	return Wrap(cause, ErrCodeBackendUnavailable, fmt.Sprintf("recognition backend '%s' unavailable", backend)).
		WithDetail("backend", backend)
}

// DecodeFailed creates an error for audio the backend could not read
func DecodeFailed(audioPath string, cause error) *AppError {
	return Wrap(cause, ErrCodeDecodeFailed, fmt.Sprintf("could not decode audio %s", audioPath)).
		WithDetail("path", audioPath)
}

// OutputLocked creates an error for an output directory held by another process
func OutputLocked(dir string) *AppError {
	return New(ErrCodeOutputLocked, fmt.Sprintf("output directory %s is in use by another podcast-dl process", dir)).
		WithDetail("dir", dir)
}

// NotFound creates a not found error
func NotFound(resource string, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

// Is checks if an error, or any error it wraps, carries the given code
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// GetHTTPCode extracts the HTTP status code from an error
func GetHTTPCode(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.GetHTTPCode()
	}
	return http.StatusInternalServerError
}
