package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies the kind of an engine failure.
type Code string

const (
	CodeInvalidDuration      Code = "INVALID_DURATION"
	CodeNoSuccessor          Code = "NO_SUCCESSOR"
	CodeCannotDeleteSentinel Code = "CANNOT_DELETE_SENTINEL"
	CodeConstraintViolation  Code = "CONSTRAINT_VIOLATION"
	CodeInsertionFailed      Code = "INSERTION_FAILED"
	CodeTransactionAborted   Code = "TRANSACTION_ABORTED"
	CodeNotFound             Code = "NOT_FOUND"
	CodeInvalidTask          Code = "INVALID_TASK"
)

// Sentinel values for errors.Is; any *Error with the same code matches.
var (
	ErrInvalidDuration      = &Error{Code: CodeInvalidDuration}
	ErrNoSuccessor          = &Error{Code: CodeNoSuccessor}
	ErrCannotDeleteSentinel = &Error{Code: CodeCannotDeleteSentinel}
	ErrConstraintViolation  = &Error{Code: CodeConstraintViolation}
	ErrInsertionFailed      = &Error{Code: CodeInsertionFailed}
	ErrTransactionAborted   = &Error{Code: CodeTransactionAborted}
	ErrNotFound             = &Error{Code: CodeNotFound}
	ErrInvalidTask          = &Error{Code: CodeInvalidTask}
)

// Error is the failure result of an engine operation.
type Error struct {
	Code    Code
	Op      string
	Message string
	Cause   error
}

func newError(code Code, op, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("engine")
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	b.WriteString(": ")
	b.WriteString(e.UserMessage())
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// UserMessage is the short text shown in transient notices.
func (e *Error) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	return strings.ToLower(strings.ReplaceAll(string(e.Code), "_", " "))
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
