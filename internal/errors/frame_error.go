// Package errors provides the error types returned by frame and group-by
// operations.
//
// Three families exist. Validation errors (FrameError) are detected locally
// before any request is sent. RemoteError carries the evaluator's diagnostic
// verbatim. Transport failures are wrapped with %w and otherwise passed
// through untouched.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Sentinel kinds matched with errors.Is.
var (
	ErrNoSuchColumn          = stderrors.New("no such column")
	ErrColumnIndexOutOfRange = stderrors.New("column index out of range")
	ErrInvalidNAPolicy       = stderrors.New("invalid NA policy")
	ErrUseAfterRelease       = stderrors.New("use after release")
	ErrAlreadyReleased       = stderrors.New("frame already released")
	ErrFrameRemoved          = stderrors.New("frame removed from the cluster")
	ErrNoSuchAggregate       = stderrors.New("no such aggregate")
	ErrInvalidOrderBy        = stderrors.New("invalid order_by: must be a group by column")
	ErrNotScalar             = stderrors.New("not a scalar")
	ErrInvalidInput          = stderrors.New("invalid input")
)

// FrameError is a local validation failure.
type FrameError struct {
	Op      string // Operation name (e.g., "IndexOf", "GroupBy")
	Column  string // Column name or selector if applicable
	Kind    error  // One of the sentinel kinds above
	Message string // Extra detail; may be empty
	Cause   error  // Underlying error cause
}

// Error implements the error interface
func (e *FrameError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Op)
	sb.WriteString(" operation failed")
	if e.Column != "" {
		fmt.Fprintf(&sb, " on column '%s'", e.Column)
	}
	sb.WriteString(": ")
	if e.Kind != nil {
		sb.WriteString(e.Kind.Error())
		if e.Message != "" {
			sb.WriteString(" (")
			sb.WriteString(e.Message)
			sb.WriteString(")")
		}
	} else {
		sb.WriteString(e.Message)
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause for error wrapping support
func (e *FrameError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is this error's kind, or an equal FrameError.
func (e *FrameError) Is(target error) bool {
	if e.Kind != nil && target == e.Kind {
		return true
	}
	if fe, ok := target.(*FrameError); ok {
		return e.Op == fe.Op && e.Column == fe.Column && e.Kind == fe.Kind && e.Message == fe.Message
	}
	return false
}

// RemoteError is returned when the evaluator rejects or fails an expression.
type RemoteError struct {
	Expr    string // The submitted expression text
	Message string // Diagnostic returned by the server, verbatim
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rapids expression not evaluated: %s", e.Message)
}

// NewRemoteError creates a RemoteError for the given expression.
func NewRemoteError(expr, message string) *RemoteError {
	return &RemoteError{Expr: expr, Message: message}
}

// NewColumnNotFoundError reports an unknown column name, listing the
// available ones.
func NewColumnNotFoundError(op, column string, available []string) *FrameError {
	msg := ""
	if len(available) > 0 {
		msg = fmt.Sprintf("available columns: [%s]", strings.Join(available, ", "))
	}
	return &FrameError{Op: op, Column: column, Kind: ErrNoSuchColumn, Message: msg}
}

// NewIndexOutOfRangeError reports a column position outside [0, width).
func NewIndexOutOfRangeError(op string, index, width int) *FrameError {
	return &FrameError{
		Op:      op,
		Column:  fmt.Sprintf("#%d", index),
		Kind:    ErrColumnIndexOutOfRange,
		Message: fmt.Sprintf("frame has %d columns", width),
	}
}

// NewValidationError creates an error of the given kind.
func NewValidationError(op, column string, kind error, message string) *FrameError {
	return &FrameError{Op: op, Column: column, Kind: kind, Message: message}
}

// NewInvalidInputError creates an error for invalid operation inputs
func NewInvalidInputError(op, message string) *FrameError {
	return &FrameError{Op: op, Kind: ErrInvalidInput, Message: message}
}

// NewRemovedError reports an operation on a frame whose key was deleted
// from the cluster while the handle was still live.
func NewRemovedError(op, key string) *FrameError {
	return &FrameError{Op: op, Kind: ErrFrameRemoved, Message: fmt.Sprintf("key %s no longer exists", key)}
}

// NewReleasedError reports an operation attempted through a released handle.
func NewReleasedError(op string) *FrameError {
	return &FrameError{Op: op, Kind: ErrUseAfterRelease}
}
