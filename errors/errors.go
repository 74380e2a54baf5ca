// Package errors defines the error taxonomy for the stellar-watch SDK.
//
// All SDK errors are represented as StellarWatchError, which provides:
//   - Code: Machine-readable error identifier
//   - Message: Human-readable error description
//   - Layer: Which component layer produced the error (core, source, watcher, store, config)
//   - Cause: Underlying error, if any
//   - Context: Additional error details (account, cursor, record kind, etc.)
//
// Use the provided constructor functions (NewSourceError, NewWatcherError, etc.)
// to create properly typed errors with automatic layer assignment. Errors compare
// equal under errors.Is when their codes match, so the exported sentinels can be
// used as targets.
package errors

import "fmt"

// Code is a machine-readable error identifier.
type Code string

// Error codes - Core Layer
const (
	NETWORK_ERROR     Code = "NETWORK_ERROR"
	ACCOUNT_NOT_FOUND Code = "ACCOUNT_NOT_FOUND"
	ACCOUNT_INVALID   Code = "ACCOUNT_INVALID"
	TOML_FETCH_FAILED Code = "TOML_FETCH_FAILED"
	TOML_INVALID      Code = "TOML_INVALID"
)

// Error codes - Source Layer
const (
	STREAM_ERROR       Code = "STREAM_ERROR"
	CURSOR_UNAVAILABLE Code = "CURSOR_UNAVAILABLE"
	DECODE_FAILED      Code = "DECODE_FAILED"
)

// Error codes - Watcher Layer
const (
	WATCHER_CLOSED     Code = "WATCHER_CLOSED"
	CURSOR_SAVE_FAILED Code = "CURSOR_SAVE_FAILED"
)

// Error codes - Store and Config Layers
const (
	STORE_ERROR    Code = "STORE_ERROR"
	CONFIG_INVALID Code = "CONFIG_INVALID"
)

// Sentinels for errors.Is matching.
var (
	ErrCursorUnavailable = &StellarWatchError{Code: CURSOR_UNAVAILABLE}
	ErrStream            = &StellarWatchError{Code: STREAM_ERROR}
	ErrAccountInvalid    = &StellarWatchError{Code: ACCOUNT_INVALID}
	ErrAccountNotFound   = &StellarWatchError{Code: ACCOUNT_NOT_FOUND}
	ErrConfigInvalid     = &StellarWatchError{Code: CONFIG_INVALID}
)

// StellarWatchError is the base error type for all SDK errors.
type StellarWatchError struct {
	Code    Code
	Message string
	Layer   string // "core", "source", "watcher", "store", "config"
	Cause   error
	Context map[string]any
}

// Error returns a formatted error string.
func (e *StellarWatchError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Layer, e.Code, e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause error, enabling error chain inspection.
func (e *StellarWatchError) Unwrap() error {
	return e.Cause
}

// With attaches a context value and returns the receiver for chaining.
func (e *StellarWatchError) With(key string, value any) *StellarWatchError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

func newError(layer string, code Code, message string, cause error) *StellarWatchError {
	return &StellarWatchError{
		Code:    code,
		Message: message,
		Layer:   layer,
		Cause:   cause,
		Context: make(map[string]any),
	}
}

// NewCoreError creates a core layer error.
func NewCoreError(code Code, message string, cause error) *StellarWatchError {
	return newError("core", code, message, cause)
}

// NewSourceError creates an event source layer error.
func NewSourceError(code Code, message string, cause error) *StellarWatchError {
	return newError("source", code, message, cause)
}

// NewWatcherError creates a watcher layer error.
func NewWatcherError(code Code, message string, cause error) *StellarWatchError {
	return newError("watcher", code, message, cause)
}

// NewStoreError creates a store layer error.
func NewStoreError(code Code, message string, cause error) *StellarWatchError {
	return newError("store", code, message, cause)
}

// NewConfigError creates a config layer error.
func NewConfigError(code Code, message string, cause error) *StellarWatchError {
	return newError("config", code, message, cause)
}

// Is checks if the target error is a StellarWatchError with the same code.
func (e *StellarWatchError) Is(target error) bool {
	if target == nil {
		return false
	}
	other, ok := target.(*StellarWatchError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// As checks if err or any error in its chain is a StellarWatchError and assigns it.
func As(err error, target **StellarWatchError) bool {
	for err != nil {
		if v, ok := err.(*StellarWatchError); ok {
			*target = v
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// CodeOf returns the code of the first StellarWatchError in err's chain, or "".
func CodeOf(err error) Code {
	var e *StellarWatchError
	if As(err, &e) {
		return e.Code
	}
	return ""
}
