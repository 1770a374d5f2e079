package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned when a fragment kind is not registered.
var ErrUnknownKind = errors.New("unknown fragment kind")

// ErrTargetNotFound is returned when the target document does not exist.
var ErrTargetNotFound = errors.New("target not found")

// ErrConflict is returned when a singleton selector matches more than one node or token.
var ErrConflict = errors.New("conflicting state")

// ErrBackupNotFound is returned when a backup does not exist.
var ErrBackupNotFound = errors.New("backup not found")

// ErrRejected is returned by targets when the external system refuses a candidate.
var ErrRejected = errors.New("candidate rejected")

// Code is the error taxonomy reported to callers.
type Code string

const (
	CodeNone                 Code = ""
	CodePrecondition         Code = "PreconditionError"
	CodeParse                Code = "ParseError"
	CodeApplyRejected        Code = "ApplyRejected"
	CodeVerificationMismatch Code = "VerificationMismatch"
	CodeRollbackFailed       Code = "RollbackFailed"
	CodeConflictingState     Code = "ConflictingState"
	CodeCancelled            Code = "Cancelled"
)

// Error carries the taxonomy code together with the identity of the failed
// reconciliation. BackupPath is set whenever a backup exists for manual recovery.
type Error struct {
	Code       Code
	Target     string
	Kind       string
	BackupPath string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: target=%s kind=%s", e.Code, e.Target, e.Kind)
	if e.BackupPath != "" {
		msg += " backup=" + e.BackupPath
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the taxonomy code from err, or CodeNone.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeNone
}

// Errorf builds a taxonomy error without target identity; the runtime fills it in.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}
