// Package errs classifies the failures this service can report: who is at
// fault and whether a job record, the external tool, the disk or the
// database is to blame. Handlers and the worker branch on Kind, never on
// error strings.
package errs

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// Validation: bad request shape or range, the caller's fault.
	Validation Kind = "validation"
	// Reference: a source video or referenced asset does not exist.
	Reference Kind = "reference"
	// Tool: the external tool exited non-zero or produced no output.
	Tool Kind = "tool_failure"
	// Storage: disk or permission failure.
	Storage Kind = "storage"
	// Persistence: a catalog or ledger write failed.
	Persistence Kind = "persistence"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err, or Persistence for unclassified
// errors so that unknown failures never masquerade as the caller's fault.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Persistence
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
