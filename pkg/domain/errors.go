package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a DomainError for the transport layer.
type ErrorKind string

const (
	KindNotFound     ErrorKind = "not_found"
	KindForbidden    ErrorKind = "forbidden"
	KindValidation   ErrorKind = "validation"
	KindInvalidState ErrorKind = "invalid_state"
	KindConflict     ErrorKind = "conflict"
	KindInternal     ErrorKind = "internal"
)

// Stable machine-readable error codes.
const (
	CodeBadRequest             = "BAD_REQUEST"
	CodeInsufficientPerms      = "INSUFFICIENT_PERMISSIONS"
	CodeInvalidStatus          = "INVALID_STATUS"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeInternal               = "INTERNAL_ERROR"
)

// DomainError is the typed error value every service returns for
// business-rule failures.
type DomainError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause.
func (e *DomainError) Unwrap() error { return e.Err }

// WithDetail attaches a key/value pair to the error details.
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause records the underlying error.
func (e *DomainError) WithCause(err error) *DomainError {
	e.Err = err
	return e
}

// New builds a DomainError of the given kind.
func New(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{Kind: kind, Code: code, Message: message}
}

// NewNotFoundError reports a missing entity. The code is derived from the
// entity name, e.g. "Booking" -> BOOKING_NOT_FOUND.
func NewNotFoundError(entity, id string) *DomainError {
	code := strings.ToUpper(entity) + "_NOT_FOUND"
	return New(KindNotFound, code, fmt.Sprintf("%s not found: %s", entity, id)).
		WithDetail("id", id)
}

// NewValidationError reports bad input with the generic BAD_REQUEST code.
func NewValidationError(message string) *DomainError {
	return New(KindValidation, CodeBadRequest, message)
}

// NewValidationErrorWithCode reports bad input with a specific code.
func NewValidationErrorWithCode(code, message string) *DomainError {
	return New(KindValidation, code, message)
}

// NewForbiddenError reports an authorization failure.
func NewForbiddenError(message string) *DomainError {
	return New(KindForbidden, CodeInsufficientPerms, message)
}

// NewInvalidStateError reports an illegal lifecycle transition.
func NewInvalidStateError(current, target string) *DomainError {
	return New(KindInvalidState, CodeInvalidStatus,
		fmt.Sprintf("invalid state transition from %s to %s", current, target)).
		WithDetail("current", current).
		WithDetail("target", target)
}

// NewConflictError reports a lost optimistic-lock race.
func NewConflictError(message string) *DomainError {
	return New(KindConflict, CodeConcurrentModification, message)
}

// NewInternalError reports a consistency failure that is not the caller's fault.
func NewInternalError(code, message string) *DomainError {
	return New(KindInternal, code, message)
}

// AsDomainError unwraps err into a DomainError if it carries one.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) ErrorKind {
	if de, ok := AsDomainError(err); ok {
		return de.Kind
	}
	return KindInternal
}

// HasCode reports whether err is a DomainError carrying code.
func HasCode(err error, code string) bool {
	de, ok := AsDomainError(err)
	return ok && de.Code == code
}

func IsNotFound(err error) bool {
	de, ok := AsDomainError(err)
	return ok && de.Kind == KindNotFound
}

func IsForbidden(err error) bool {
	de, ok := AsDomainError(err)
	return ok && de.Kind == KindForbidden
}
