// Package errors provides the structured error types used across scopectl.
//
// # Error Types
//
// Base errors (sentinel errors):
//   - ErrNotFound - resource not found
//   - ErrInvalid - validation failed
//   - ErrIO - serial or file I/O error
//   - ErrCanceled - operation canceled by the user or a context
//   - ErrNotConnected - mount has no open serial port
//
// Wrapped error types (add context):
//   - ConfigError{Path, Err} - configuration errors
//   - SerialError{Op, Port, Err} - serial port errors
//   - ValidationError{Problems} - every problem found while validating a config
//
// # Usage
//
//	return &errors.SerialError{Op: "open", Port: "/dev/ttyUSB0", Err: err}
//
//	if errors.IsNotConnected(err) {
//	    // connect first
//	}
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Base error types (sentinel errors).
var (
	// ErrNotFound indicates a resource was not found.
	ErrNotFound = baseError("not found")

	// ErrInvalid indicates validation failed.
	ErrInvalid = baseError("invalid")

	// ErrIO indicates a serial or file I/O error.
	ErrIO = baseError("I/O error")

	// ErrCanceled indicates the operation was canceled.
	ErrCanceled = baseError("canceled")

	// ErrNotConnected indicates the mount has no open serial port.
	ErrNotConnected = baseError("not connected")
)

// baseError is a string that implements error.
type baseError string

func (e baseError) Error() string { return string(e) }

// ConfigError represents an error related to configuration.
type ConfigError struct {
	// Path is the configuration file path (optional).
	Path string
	// Err is the underlying error.
	Err error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %s", e.Path, e.Err)
	}
	return fmt.Sprintf("config: %s", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// SerialError represents an error raised by a serial port operation.
type SerialError struct {
	// Op is the operation being performed (e.g., "open", "write", "read").
	Op string
	// Port is the device name (optional).
	Port string
	// Err is the underlying error.
	Err error
}

func (e *SerialError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("serial %s %s: %s", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("serial %s: %s", e.Op, e.Err)
}

func (e *SerialError) Unwrap() error { return e.Err }

// ValidationError carries every problem found in a mount configuration.
// It unwraps to ErrInvalid.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	switch len(e.Problems) {
	case 0:
		return ErrInvalid.Error()
	case 1:
		return e.Problems[0]
	}
	return fmt.Sprintf("%d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Wrap adds context to an error by wrapping it with an operation name.
// The returned error implements Unwrap() allowing errors.Is and errors.As
// to work with the wrapped error.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{op: op, err: err}
}

// wrappedError is an error with an operation context.
type wrappedError struct {
	op  string
	err error
}

func (e *wrappedError) Error() string { return fmt.Sprintf("%s: %s", e.op, e.err) }
func (e *wrappedError) Unwrap() error { return e.err }

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalid reports whether err is or wraps ErrInvalid.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

// IsIO reports whether err is or wraps ErrIO.
func IsIO(err error) bool {
	return errors.Is(err, ErrIO)
}

// IsCanceled reports whether err is or wraps ErrCanceled.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// IsNotConnected reports whether err is or wraps ErrNotConnected.
func IsNotConnected(err error) bool {
	return errors.Is(err, ErrNotConnected)
}

// AsConfigError reports whether err can be typed as a *ConfigError.
func AsConfigError(err error) (*ConfigError, bool) {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// AsSerialError reports whether err can be typed as a *SerialError.
func AsSerialError(err error) (*SerialError, bool) {
	var se *SerialError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// AsValidationError reports whether err can be typed as a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
