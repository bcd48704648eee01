package shared

import "errors"

// Error codes shared by every bounded context. The first four make up the
// allocation error taxonomy; the rest are used by the service surface.
const (
	CodeInvalidArgument        = "INVALID_ARGUMENT"
	CodeLookupUnavailable      = "LOOKUP_UNAVAILABLE"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodePersistence            = "PERSISTENCE_ERROR"
	CodeNotFound               = "NOT_FOUND"
	CodeInvalidState           = "INVALID_STATE"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code.
// This lets callers use errors.Is(err, shared.ErrNotFound) against errors
// built with a more specific message.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapDomainError creates a domain error that keeps cause in its chain
func WrapDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// CodeOf returns the domain error code carried by err, or "" when err is not
// (and does not wrap) a DomainError.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Common domain errors
var (
	ErrInvalidArgument        = NewDomainError(CodeInvalidArgument, "Invalid argument")
	ErrLookupUnavailable      = NewDomainError(CodeLookupUnavailable, "Lookup unavailable")
	ErrConcurrentModification = NewDomainError(CodeConcurrentModification, "Resource was modified by another process")
	ErrPersistence            = NewDomainError(CodePersistence, "Failed to persist changes")
	ErrNotFound               = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidState           = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
)
