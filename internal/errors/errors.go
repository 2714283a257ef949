// Package errors defines the error taxonomy used throughout guardian.
//
// Every error raised by a guardian component is a GuardianError carrying a
// stable code. Callers match on the code with errors.Is against the
// predefined values, and decide between fatal, retryable and skippable
// handling with IsFatal and IsRetryable.
package errors

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	ErrCodeConfigInvalid        = "CONFIG_INVALID"
	ErrCodeFetchFailed          = "FETCH_FAILED"
	ErrCodeRPCTimeout           = "RPC_TIMEOUT"
	ErrCodeRPCRateLimited       = "RPC_RATE_LIMITED"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeDecodeFailed         = "DECODE_FAILED"
	ErrCodeClassificationFailed = "CLASSIFICATION_FAILED"
	ErrCodeStoreFailed          = "STORE_FAILED"
	ErrCodeContextCanceled      = "CONTEXT_CANCELED"
)

// GuardianError represents an error in guardian.
type GuardianError struct {
	// Code is a unique error code for this error type.
	Code string

	// Message is a human-readable error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Details contains additional error context.
	Details map[string]any
}

// Error implements the error interface.
func (e *GuardianError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *GuardianError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches the target by code.
func (e *GuardianError) Is(target error) bool {
	t, ok := target.(*GuardianError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *GuardianError) WithCause(cause error) *GuardianError {
	cp := *e
	cp.Cause = cause
	return &cp
}

// WithDetails returns a copy of the error with the given details.
func (e *GuardianError) WithDetails(details map[string]any) *GuardianError {
	cp := *e
	cp.Details = details
	return &cp
}

// NewError creates a new GuardianError.
func NewError(code, message string) *GuardianError {
	return &GuardianError{
		Code:    code,
		Message: message,
	}
}

// Sentinel values for errors.Is matching.
var (
	ErrConfigInvalid        = NewError(ErrCodeConfigInvalid, "invalid configuration")
	ErrFetchFailed          = NewError(ErrCodeFetchFailed, "fetch failed")
	ErrRPCTimeout           = NewError(ErrCodeRPCTimeout, "rpc timeout")
	ErrRPCRateLimited       = NewError(ErrCodeRPCRateLimited, "rpc rate limited")
	ErrNotFound             = NewError(ErrCodeNotFound, "not found")
	ErrDecodeFailed         = NewError(ErrCodeDecodeFailed, "decode failed")
	ErrClassificationFailed = NewError(ErrCodeClassificationFailed, "classification failed")
	ErrStoreFailed          = NewError(ErrCodeStoreFailed, "snapshot store failed")
	ErrContextCanceled      = NewError(ErrCodeContextCanceled, "context canceled")
)

// ConfigInvalid creates a fatal configuration error.
func ConfigInvalid(format string, args ...any) *GuardianError {
	return NewError(ErrCodeConfigInvalid, fmt.Sprintf(format, args...))
}

// FetchFailed creates a non-retryable fetch error.
func FetchFailed(what string, cause error) *GuardianError {
	return NewError(ErrCodeFetchFailed, fmt.Sprintf("failed to fetch %s", what)).WithCause(cause)
}

// RPCTimeout creates a retryable timeout or transport error.
func RPCTimeout(what string, cause error) *GuardianError {
	return NewError(ErrCodeRPCTimeout, fmt.Sprintf("rpc timed out fetching %s", what)).WithCause(cause)
}

// RPCRateLimited creates a retryable rate limit error.
func RPCRateLimited(what string, cause error) *GuardianError {
	return NewError(ErrCodeRPCRateLimited, fmt.Sprintf("rpc rate limited fetching %s", what)).WithCause(cause)
}

// NotFound creates an error for a missing account or entry.
func NotFound(what string) *GuardianError {
	return NewError(ErrCodeNotFound, fmt.Sprintf("%s not found", what))
}

// DecodeFailed creates an error for unexpected on-chain data.
func DecodeFailed(what string, cause error) *GuardianError {
	return NewError(ErrCodeDecodeFailed, fmt.Sprintf("failed to decode %s", what)).WithCause(cause)
}

// ClassificationFailed creates an error for an event the classifier cannot map.
func ClassificationFailed(what string) *GuardianError {
	return NewError(ErrCodeClassificationFailed, what)
}

// StoreFailed creates an error for snapshot store failures.
func StoreFailed(what string, cause error) *GuardianError {
	return NewError(ErrCodeStoreFailed, fmt.Sprintf("failed to %s", what)).WithCause(cause)
}

// Code returns the code of the first GuardianError in err's chain, or "".
func Code(err error) string {
	var ge *GuardianError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// IsRetryable reports whether err should be retried with backoff.
func IsRetryable(err error) bool {
	switch Code(err) {
	case ErrCodeRPCTimeout, ErrCodeRPCRateLimited:
		return true
	}
	return false
}

// IsFatal reports whether err must stop the process.
func IsFatal(err error) bool {
	return Code(err) == ErrCodeConfigInvalid
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
