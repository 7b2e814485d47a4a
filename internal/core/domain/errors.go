// Package domain defines the error vocabulary shared by the session container.
package domain

import (
	"errors"
	"fmt"
)

// DomainError is an error carrying a stable code.
//
// Codes have the form SFSB-<AREA>-<NNNN>; the last four digits follow
// HTTP status semantics so transport layers can map them mechanically.
type DomainError struct {
	Code    string // e.g. "SFSB-SESS-4040"
	Message string
	Details string
	Cause   error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with fmt.Sprintf formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrSessionNotFound indicates no live or persisted session has the id.
	ErrSessionNotFound = NewDomainError("SFSB-SESS-4040", "session not found")

	// ErrSessionExists indicates a bean is already registered under the id.
	ErrSessionExists = NewDomainError("SFSB-SESS-4090", "session already exists")

	// ErrInvalidSessionID indicates an id that cannot name a storage entry.
	ErrInvalidSessionID = NewDomainError("SFSB-SESS-4001", "invalid session id")
)

// ============================================================================
// Bean & Codec Errors (BEAN, CODEC)
// ============================================================================

var (
	// ErrUnknownType indicates a wrapper type tag with no registered factory.
	ErrUnknownType = NewDomainError("SFSB-BEAN-4220", "unknown bean type")

	// ErrCorruptEncoding indicates bytes that cannot be decoded into a wrapper.
	ErrCorruptEncoding = NewDomainError("SFSB-CODEC-4220", "corrupt session encoding")

	// ErrCipherRequired indicates an encrypted frame read without a key.
	ErrCipherRequired = NewDomainError("SFSB-CODEC-4230", "encrypted session requires a key")

	// ErrCipherMismatch indicates an intact frame the configured key cannot open.
	ErrCipherMismatch = NewDomainError("SFSB-CODEC-4231", "session key mismatch")
)

// ============================================================================
// Storage Errors (STOR)
// ============================================================================

var (
	// ErrStorageWrite indicates a session file could not be written.
	ErrStorageWrite = NewDomainError("SFSB-STOR-5001", "storage write failed")

	// ErrStorageDelete indicates a session file could not be deleted.
	ErrStorageDelete = NewDomainError("SFSB-STOR-5002", "storage delete failed")

	// ErrStorageRead indicates a session file exists but could not be read.
	ErrStorageRead = NewDomainError("SFSB-STOR-5003", "storage read failed")
)

// ============================================================================
// Configuration Errors (CONF)
// ============================================================================

var (
	// ErrInvalidSettings indicates settings that failed validation.
	ErrInvalidSettings = NewDomainError("SFSB-CONF-4000", "invalid settings")
)

// IsCorrupt reports whether err means the stored bytes are unusable and
// may be discarded. Cipher configuration errors are not corruption.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorruptEncoding) || errors.Is(err, ErrUnknownType)
}
