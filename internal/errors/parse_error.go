// Package errors provides the error taxonomy for CSV parse sessions.
// ParseError carries the failing operation, the source path when one is
// known, and a Kind that callers match with errors.Is against the
// predefined sentinels.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Kind classifies a parse session failure.
type Kind int

const (
	// KindMalformedRecord is a record whose field count differs from the schema.
	KindMalformedRecord Kind = iota + 1
	// KindHeaderMismatch is an inconsistent header or type hint configuration.
	KindHeaderMismatch
	// KindEmptyInput means no usable input files or no columns were found.
	KindEmptyInput
	// KindCancelled means the session observed a cancellation request.
	KindCancelled
	// KindIO is a byte source that could not be opened or read.
	KindIO
	// KindInvalidOptions is a session option that failed validation.
	KindInvalidOptions
)

func (k Kind) String() string {
	switch k {
	case KindMalformedRecord:
		return "MalformedRecord"
	case KindHeaderMismatch:
		return "UnknownHeaderMismatch"
	case KindEmptyInput:
		return "EmptyInput"
	case KindCancelled:
		return "Cancelled"
	case KindIO:
		return "IOError"
	case KindInvalidOptions:
		return "InvalidOptions"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseError represents every failure surfaced by a parse session
type ParseError struct {
	Kind    Kind
	Op      string // Operation name (e.g., "ReadHeader", "Parse")
	Path    string // Source path if applicable, already sanitized
	Message string // Human-readable error description
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *ParseError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		if msg == "" {
			msg = e.Cause.Error()
		} else {
			msg = msg + ": " + e.Cause.Error()
		}
	}
	if e.Path != "" {
		return fmt.Sprintf("%s failed on '%s' (%s): %s", e.Op, e.Path, e.Kind, msg)
	}
	return fmt.Sprintf("%s failed (%s): %s", e.Op, e.Kind, msg)
}

// Unwrap returns the underlying cause for error wrapping support
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is matches on Kind, so any ParseError matches the sentinel of its kind.
func (e *ParseError) Is(target error) bool {
	if pe, ok := target.(*ParseError); ok {
		return e.Kind == pe.Kind
	}
	return false
}

// Predefined sentinels, one per Kind, for errors.Is checks
var (
	ErrMalformedRecord = &ParseError{Kind: KindMalformedRecord, Op: "parse", Message: "malformed record"}
	ErrHeaderMismatch  = &ParseError{Kind: KindHeaderMismatch, Op: "schema", Message: "header mismatch"}
	ErrEmptyInput      = &ParseError{Kind: KindEmptyInput, Op: "open", Message: "empty input"}
	ErrCancelled       = &ParseError{Kind: KindCancelled, Op: "parse", Message: "cancelled"}
	ErrIO              = &ParseError{Kind: KindIO, Op: "read", Message: "i/o failure"}
	ErrInvalidOptions  = &ParseError{Kind: KindInvalidOptions, Op: "options", Message: "invalid options"}
)

// NewMalformedRecordError creates an error for a record that failed to tokenize
func NewMalformedRecordError(path, diagnosis string) *ParseError {
	return &ParseError{
		Kind:    KindMalformedRecord,
		Op:      "Parse",
		Path:    path,
		Message: diagnosis,
	}
}

// NewHeaderMismatchError creates an error for inconsistent header configuration
func NewHeaderMismatchError(op, message string) *ParseError {
	return &ParseError{
		Kind:    KindHeaderMismatch,
		Op:      op,
		Message: message,
	}
}

// NewEmptyInputError creates an error for inputs without usable files or columns
func NewEmptyInputError(path, message string) *ParseError {
	return &ParseError{
		Kind:    KindEmptyInput,
		Op:      "Open",
		Path:    path,
		Message: message,
	}
}

// NewIOError creates an error for a byte source failure
func NewIOError(op, path string, cause error) *ParseError {
	return &ParseError{
		Kind:  KindIO,
		Op:    op,
		Path:  path,
		Cause: cause,
	}
}

// NewInvalidOptionsError creates an error for options that failed validation
func NewInvalidOptionsError(cause error) *ParseError {
	return &ParseError{
		Kind:  KindInvalidOptions,
		Op:    "Validate",
		Cause: cause,
	}
}

// NewCancelledError creates an error for an observed cancellation.
// The context error is kept as the cause.
func NewCancelledError(path string, cause error) *ParseError {
	return &ParseError{
		Kind:    KindCancelled,
		Op:      "Parse",
		Path:    path,
		Message: "cancelled by user",
		Cause:   cause,
	}
}

// FromContext converts a done context into a cancellation error; it returns
// nil while the context is still live.
func FromContext(ctx context.Context, path string) error {
	err := ctx.Err()
	if err == nil {
		return nil
	}
	return NewCancelledError(path, err)
}

// KindOf reports the Kind of the first ParseError in err's chain, or 0.
func KindOf(err error) Kind {
	var pe *ParseError
	if stderrors.As(err, &pe) {
		return pe.Kind
	}
	return 0
}
