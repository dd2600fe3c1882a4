// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package kerr implements the closed error taxonomy that every fallible
// call in the IR and runtime returns through, instead of panicking
// across a component boundary. The name echoes the 'KMDL' model
// identifier (see package model).
//
// This plays the role expr.TypeError/expr.SyntaxError play in the
// teacher (github.com/SnellerInc/sneller/expr/check.go): a small
// struct type that carries structured context and implements error,
// generalized here to a closed Kind enum instead of one struct per
// failure mode.
package kerr

import "fmt"

// Kind is the closed taxonomy from spec section 7.
type Kind int

const (
	_ Kind = iota
	InvalidArgument
	InvalidProgram
	InvalidOperation
	NotFound
	NotSupported
	ResultOutOfRange
	IOError
	OutOfMemory
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case InvalidProgram:
		return "InvalidProgram"
	case InvalidOperation:
		return "InvalidOperation"
	case NotFound:
		return "NotFound"
	case NotSupported:
		return "NotSupported"
	case ResultOutOfRange:
		return "ResultOutOfRange"
	case IOError:
		return "IOError"
	case OutOfMemory:
		return "OutOfMemory"
	default:
		return "Unknown"
	}
}

// Error is the concrete error value returned through Result. It wraps
// an optional underlying error so errors.Is/errors.As keep working
// across the kerr boundary.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a *Error with no wrapped cause.
func New(k Kind, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// Wrap builds a *Error that wraps an existing error.
func Wrap(k Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...), Err: err}
}

// Is reports whether err is a *Error of the given Kind.
func Is(err error, k Kind) bool {
	var e *Error
	if ae, ok := err.(*Error); ok {
		e = ae
	} else {
		return false
	}
	return e.Kind == k
}

// Result is a sum type wrapping either a value of T or an *Error,
// mirroring nncase's result<T> (see
// _examples/original_source/include/nncase/runtime/result.h) without
// the exception-unsafe template machinery: a Go Result is just a
// (T, *Error) pair with helpers, since Go already has a no-throw
// calling convention.
type Result[T any] struct {
	value T
	err   *Error
}

// Ok wraps a value as a successful Result.
func Ok[T any](v T) Result[T] { return Result[T]{value: v} }

// Err wraps an error as a failed Result.
func Err[T any](err *Error) Result[T] { return Result[T]{err: err} }

// IsOk reports whether the Result holds a value.
func (r Result[T]) IsOk() bool { return r.err == nil }

// IsErr reports whether the Result holds an error.
func (r Result[T]) IsErr() bool { return r.err != nil }

// Unwrap returns the value, or the zero value of T if the Result holds
// an error. Callers that have not checked IsOk should use Get instead.
func (r Result[T]) Unwrap() T { return r.value }

// UnwrapErr returns the wrapped error, or nil if the Result is ok.
func (r Result[T]) UnwrapErr() *Error { return r.err }

// Get is the usual two-value accessor: (value, error).
func (r Result[T]) Get() (T, error) {
	if r.err != nil {
		return r.value, r.err
	}
	return r.value, nil
}

// From adapts a (T, error) pair, as returned by ordinary Go functions,
// into a Result, tagging a non-nil plain error as InvalidOperation
// unless it already is a *Error.
func From[T any](v T, err error) Result[T] {
	if err == nil {
		return Ok(v)
	}
	if ke, ok := err.(*Error); ok {
		return Err[T](ke)
	}
	return Err[T](Wrap(InvalidOperation, err, "wrapped error"))
}
