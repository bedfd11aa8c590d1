// Package errs provides the unified error type used across schemasql.
//
// Every subsystem (schema loading, compilation, database drivers, CRUD,
// object storage) wraps its native errors into *errs.Error before returning
// them to callers. Callers use the Is* predicates to handle errors without
// importing driver-specific packages.
//
// Usage:
//
//	// In a driver — wrap native errors and keep the failing statement:
//	return errs.Wrap(errs.ErrKindQueryFailed, "exec failed", err).WithStatement(q)
//
//	// In a handler — check error kind:
//	if errs.IsNotFound(err) {
//	    http.Error(w, "not found", http.StatusNotFound)
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, no object, no schema file
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL or storage operation error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied / auth failure
	ErrKindConflict                 // duplicate key / foreign key violation
	ErrKindSchemaLoad               // schema file missing, unreadable or not JSON
	ErrKindReference                // a $ref could not be resolved
	ErrKindCyclicReference          // a $ref chain leads back to a table being compiled
	ErrKindValidation               // payload does not satisfy its schema
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindConflict:
		return "conflict"
	case ErrKindSchemaLoad:
		return "schema_load"
	case ErrKindReference:
		return "reference"
	case ErrKindCyclicReference:
		return "cyclic_reference"
	case ErrKindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all schemasql subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging

	// Statement is the SQL text that failed, when the error came from a database call.
	Statement string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// WithStatement attaches the failing SQL text and returns e.
func (e *Error) WithStatement(stmt string) *Error {
	if e != nil {
		e.Statement = stmt
	}
	return e
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a formatted message.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsConflict reports whether err is a uniqueness or foreign key violation.
func IsConflict(err error) bool {
	return KindOf(err) == ErrKindConflict
}

// IsSchemaLoad reports whether err came from loading or parsing a schema document.
func IsSchemaLoad(err error) bool {
	return KindOf(err) == ErrKindSchemaLoad
}

// IsReference reports whether err is an unresolvable $ref.
func IsReference(err error) bool {
	return KindOf(err) == ErrKindReference
}

// IsCyclicReference reports whether err is a $ref cycle.
func IsCyclicReference(err error) bool {
	return KindOf(err) == ErrKindCyclicReference
}

// IsValidation reports whether err is a payload validation failure.
func IsValidation(err error) bool {
	return KindOf(err) == ErrKindValidation
}

// KindOf extracts the ErrKind from the first *Error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

// StatementOf returns the SQL text attached to the first *Error in the chain, if any.
func StatementOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Statement
	}
	return ""
}
