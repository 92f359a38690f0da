// Package errors defines the structured error kinds surfaced by the retrieval engine.
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a specific error type for retrieval and routing operations.
type ErrorCode string

const (
	// ErrCodeModelUnavailable indicates the local embedding model failed to load or embed.
	ErrCodeModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"
	// ErrCodeInsufficientCredits indicates the remote quota is exhausted.
	ErrCodeInsufficientCredits ErrorCode = "INSUFFICIENT_CREDITS"
	// ErrCodeFeatureUnavailable indicates a tier or flag gate blocked the call.
	ErrCodeFeatureUnavailable ErrorCode = "FEATURE_UNAVAILABLE"
	// ErrCodeRemoteTimeout indicates a remote call exceeded its deadline.
	ErrCodeRemoteTimeout ErrorCode = "REMOTE_TIMEOUT"
	// ErrCodeRemoteFailure indicates the remote service failed or is unreachable.
	ErrCodeRemoteFailure ErrorCode = "REMOTE_FAILURE"
	// ErrCodeVersionMismatch indicates vectors of different models or dimensions were compared.
	ErrCodeVersionMismatch ErrorCode = "VERSION_MISMATCH"
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
)

// AIError represents a structured error for retrieval operations.
// Mode records which execution path (local/remote) was attempted so callers can
// explain degraded results.
type AIError struct {
	Code    ErrorCode
	Message string
	Mode    string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *AIError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.Mode != "" {
		prefix = fmt.Sprintf("[%s mode=%s]", e.Code, e.Mode)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AIError) Unwrap() error {
	return e.Cause
}

// WithMode records the execution mode that was attempted.
func (e *AIError) WithMode(mode string) *AIError {
	e.Mode = mode
	return e
}

// WithContext adds context to the error.
func (e *AIError) WithContext(key string, value interface{}) *AIError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// ModelUnavailable creates a model unavailable error.
func ModelUnavailable(msg string, cause error) *AIError {
	return &AIError{Code: ErrCodeModelUnavailable, Message: msg, Mode: "local", Cause: cause}
}

// InsufficientCredits creates an insufficient credits error.
func InsufficientCredits(msg string) *AIError {
	return &AIError{Code: ErrCodeInsufficientCredits, Message: msg, Mode: "remote"}
}

// FeatureUnavailable creates a feature unavailable error.
func FeatureUnavailable(feature string) *AIError {
	return &AIError{
		Code:    ErrCodeFeatureUnavailable,
		Message: fmt.Sprintf("feature not available for this subscription: %s", feature),
	}
}

// RemoteTimeout creates a remote timeout error.
func RemoteTimeout(msg string, cause error) *AIError {
	return &AIError{Code: ErrCodeRemoteTimeout, Message: msg, Mode: "remote", Cause: cause}
}

// RemoteFailure creates a remote failure error.
func RemoteFailure(msg string, cause error) *AIError {
	return &AIError{Code: ErrCodeRemoteFailure, Message: msg, Mode: "remote", Cause: cause}
}

// VersionMismatch creates a version mismatch error.
func VersionMismatch(want, got string) *AIError {
	return &AIError{
		Code:    ErrCodeVersionMismatch,
		Message: fmt.Sprintf("embedding version mismatch: index=%s query=%s", want, got),
	}
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *AIError {
	return &AIError{Code: ErrCodeInvalidArgument, Message: msg}
}

// IsCode checks if an error, or any error it wraps, carries a specific code.
func IsCode(err error, code ErrorCode) bool {
	var aiErr *AIError
	if stderrors.As(err, &aiErr) {
		return aiErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not an AIError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var aiErr *AIError
	if stderrors.As(err, &aiErr) {
		return aiErr.Code
	}
	return defaultCode
}

// ModeFromError returns the execution mode recorded on err, or "" if none.
func ModeFromError(err error) string {
	var aiErr *AIError
	if stderrors.As(err, &aiErr) {
		return aiErr.Mode
	}
	return ""
}
