// Copyright © 2018 One Concern

// Package errors augments the standard errors
// provided by fmt (https://golang.org/src/fmt/errors.go)
// with a Wrap() method to wrap errors without resorting
// to fmt.Errorf("%w", err).
package errors

import (
	stderr "errors"
)

var _ error = New("")

// New Error
func New(msg string) *Error {
	return &Error{msg: msg}
}

// Error augments the standard error interface with a Wrap method.
//
// Sentinel errors are declared once with New and wrapped at the call site:
// Wrap returns a new error which still matches its sentinel with Is.
type Error struct {
	msg  string
	err  error
	kind *Error
}

// Error message, followed by the wrapped cause if any
func (e *Error) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

// Unwrap nested error
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Wrap a nested error. The receiver is left untouched.
func (e *Error) Wrap(err error) *Error {
	kind := e
	if e.kind != nil {
		kind = e.kind
	}
	return &Error{msg: e.msg, err: err, kind: kind}
}

// WrapMessage wraps a plain message as the nested cause
func (e *Error) WrapMessage(msg string) *Error {
	return e.Wrap(stderr.New(msg))
}

// Is of some error type?
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e == t || (e.kind != nil && e.kind == t)
}

// As finds the first error in err's chain that matches target, and if so, sets target to that error value and returns true.
// (a shortcut to standard lib errors.As)
func As(err error, target interface{}) bool {
	return stderr.As(err, target)
}

// Is reports whether any error in err's chain matches target
// (a shortcut to standard lib errors.Is)
func Is(err, target error) bool {
	return stderr.Is(err, target)
}
