package catalog

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrDependency   = errors.New("dependency failure")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
)

// Error carries a kind, the message shown to clients and the underlying
// cause, if any.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NewError(kind error, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func validation(msg string) *Error {
	return NewError(ErrValidation, msg, nil)
}

func notFound(msg string) *Error {
	return NewError(ErrNotFound, msg, nil)
}

func forbidden(msg string) *Error {
	return NewError(ErrForbidden, msg, nil)
}

func dependency(op string, err error) *Error {
	return NewError(ErrDependency, fmt.Sprintf("%s: %v", op, err), err)
}
