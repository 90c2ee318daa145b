// Package errors provides a structured error system for the cache engine
// with error codes, categories, and context.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents a structured error code for cache engine operations.
type ErrorCode string

// Error code constants organized by category.
const (
	// Configuration errors
	ErrCodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"
	ErrCodeConfigLoad       ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigSave       ErrorCode = "CONFIG_SAVE"

	// Compute/load errors
	ErrCodeComputeFailed ErrorCode = "COMPUTE_FAILED"
	ErrCodeLoaderFailed  ErrorCode = "LOADER_FAILED"

	// Concurrency errors
	ErrCodeLockTimeout ErrorCode = "LOCK_TIMEOUT"

	// State management errors
	ErrCodeAlreadyStarted ErrorCode = "ALREADY_STARTED"
	ErrCodeNotStarted     ErrorCode = "NOT_STARTED"
	ErrCodeInvalidState   ErrorCode = "INVALID_STATE"

	// Internal errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorCategory represents the general category of an error.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryCompute       ErrorCategory = "compute"
	CategoryConcurrency   ErrorCategory = "concurrency"
	CategoryState         ErrorCategory = "state"
	CategoryInternal      ErrorCategory = "internal"
)

// CacheError represents a structured error with context and metadata.
type CacheError struct {
	Code     ErrorCode      `json:"code"`
	Category ErrorCategory  `json:"category"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`

	Cause     error     `json:"-"` // Not serialized to avoid circular refs
	Timestamp time.Time `json:"timestamp"`

	Component string `json:"component,omitempty"`
	Operation string `json:"operation,omitempty"`

	// Retryable indicates the call may succeed if repeated (lock
	// timeouts, transient loader failures).
	Retryable bool `json:"retryable"`
}

// Error implements the error interface.
func (e *CacheError) Error() string {
	if e.Component != "" {
		if e.Operation != "" {
			return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Code, e.Message)
		}
		return fmt.Sprintf("[%s] %s: %s", e.Component, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error wrapping compatibility.
func (e *CacheError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target error (for errors.Is compatibility).
func (e *CacheError) Is(target error) bool {
	if cacheErr, ok := target.(*CacheError); ok {
		return e.Code == cacheErr.Code
	}
	return false
}

// String returns a detailed string representation for logging.
func (e *CacheError) String() string {
	parts := []string{
		fmt.Sprintf("Code=%s", e.Code),
		fmt.Sprintf("Category=%s", e.Category),
		fmt.Sprintf("Message=%q", e.Message),
	}
	if e.Component != "" {
		parts = append(parts, fmt.Sprintf("Component=%s", e.Component))
	}
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("Operation=%s", e.Operation))
	}
	if e.Retryable {
		parts = append(parts, "Retryable=true")
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("Cause=%q", e.Cause.Error()))
	}
	return fmt.Sprintf("CacheError{%s}", strings.Join(parts, ", "))
}

// WithComponent attaches the originating component name.
func (e *CacheError) WithComponent(component string) *CacheError {
	e.Component = component
	return e
}

// WithOperation attaches the operation that produced the error.
func (e *CacheError) WithOperation(operation string) *CacheError {
	e.Operation = operation
	return e
}

// WithDetail attaches a key/value detail pair.
func (e *CacheError) WithDetail(key string, value any) *CacheError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new cache error with default values.
func New(code ErrorCode, message string) *CacheError {
	return &CacheError{
		Code:      code,
		Category:  GetCategory(code),
		Message:   message,
		Timestamp: time.Now(),
		Retryable: IsRetryableByDefault(code),
	}
}

// Newf creates a new cache error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *CacheError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a new cache error that wraps an underlying cause.
func Wrap(cause error, code ErrorCode, message string) *CacheError {
	err := New(code, message)
	err.Cause = cause
	return err
}

// Wrapf creates a wrapping cache error with a formatted message.
func Wrapf(cause error, code ErrorCode, format string, args ...any) *CacheError {
	return Wrap(cause, code, fmt.Sprintf(format, args...))
}

// GetCategory determines the category based on the error code.
func GetCategory(code ErrorCode) ErrorCategory {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "INVALID_CONFIG") || strings.HasPrefix(codeStr, "CONFIG_"):
		return CategoryConfiguration
	case strings.HasPrefix(codeStr, "COMPUTE_") || strings.HasPrefix(codeStr, "LOADER_"):
		return CategoryCompute
	case strings.HasPrefix(codeStr, "LOCK_"):
		return CategoryConcurrency
	case strings.HasPrefix(codeStr, "ALREADY_") || strings.HasPrefix(codeStr, "NOT_STARTED") ||
		strings.HasPrefix(codeStr, "INVALID_STATE"):
		return CategoryState
	default:
		return CategoryInternal
	}
}

// IsRetryableByDefault determines if an error is retryable by default.
func IsRetryableByDefault(code ErrorCode) bool {
	switch code {
	case ErrCodeLockTimeout, ErrCodeLoaderFailed:
		return true
	}
	return false
}

// IsRetryable reports whether err is a retryable cache error.
func IsRetryable(err error) bool {
	for err != nil {
		if cacheErr, ok := err.(*CacheError); ok {
			return cacheErr.Retryable
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// CodeOf returns the error code of err, walking the wrap chain. It
// returns an empty code when err is not a structured cache error.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if cacheErr, ok := err.(*CacheError); ok {
			return cacheErr.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return ""
		}
		err = u.Unwrap()
	}
	return ""
}
