// Package errs provides the unified error type used across all of sqlgrid.
//
// Every subsystem (backends, the table editor, the config editor, the RPC
// dispatcher, …) wraps its native errors into *errs.Error before returning
// them to callers. Callers use the Is* predicates to tell a statement failure
// from a validation failure, a deletion denial, corrupt metadata or a missing
// cross-reference without importing driver-specific packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindQueryFailed, "insert failed", myErr)
//
//	// In a handler, check the error kind:
//	if errs.IsPermissionDenied(err) {
//	    grid.Alert(err.(*errs.Error).Message)
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
	ErrKindNotFound                 // no rows, missing table, missing list target row
	ErrKindConnectionFailed         // cannot reach the backend or the dispatcher
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // statement rejected by the backend
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // row deletion denied, access denied
	ErrKindValidation               // value rejected before any statement is issued
	ErrKindCorrupt                  // unreadable or null metadata JSON
	ErrKindUnsupported              // unknown command kind or capability
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
	case ErrKindValidation:
		return "validation"
	case ErrKindCorrupt:
		return "corrupt"
	case ErrKindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all sqlgrid subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	// Field names the column a validation message is scoped to, if any.
	Field string
	Cause error // original driver-level error, preserved for logging

	// quoted is set when Message already carries the cause's text.
	quoted bool
}

func (e *Error) Error() string {
	if e.Cause != nil && !e.quoted {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// WrapDetail is Wrap for driver errors whose text must reach the user:
// detail is appended to msg and the cause is not repeated by Error.
func WrapDetail(kind ErrKind, msg, detail string, cause error) *Error {
	return &Error{Kind: kind, Message: msg + ": " + detail, Cause: cause, quoted: true}
}

// Validation creates a field-scoped validation error.
func Validation(field, msg string) *Error {
	return &Error{Kind: ErrKindValidation, Message: msg, Field: field}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result
// (no rows, unknown table, dangling list reference, …).
func IsNotFound(err error) bool {
	return kindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return kindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return kindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a statement failure reported by a backend.
func IsQueryFailed(err error) bool {
	return kindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return kindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is a denial (row deletion refused, access denied).
func IsPermissionDenied(err error) bool {
	return kindOf(err) == ErrKindPermissionDenied
}

// IsValidation reports whether err is a value that failed a type or required rule.
func IsValidation(err error) bool {
	return kindOf(err) == ErrKindValidation
}

// IsCorrupt reports whether err was caused by unreadable metadata.
func IsCorrupt(err error) bool {
	return kindOf(err) == ErrKindCorrupt
}

// IsUnsupported reports whether err names a command or capability nobody handles.
func IsUnsupported(err error) bool {
	return kindOf(err) == ErrKindUnsupported
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	return kindOf(err)
}

// FieldOf returns the field a validation error is scoped to, or "".
func FieldOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Field
	}
	return ""
}

// MessageOf returns the human-readable message of err: the Message of the
// first *Error in the chain, or err.Error() for foreign errors.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

func kindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
