// Package result provides the outcome type returned by repository operations.
//
// Expected conditions (missing rows, invalid input, duplicates, stale updates)
// are values, not errors: callers branch on Kind and treat IsSuccess() == false
// as the only failure signal.
package result

import (
	"context"
	"errors"

	"stockroom/internal/core/apperror"
)

// Kind identifies the active variant of a Result.
type Kind uint8

const (
	KindSuccess Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	default:
		return "failure"
	}
}

// Result is a tagged outcome. Exactly one variant is active.
type Result[T any] struct {
	kind    Kind
	value   T
	message string
	errs    []string
	err     error
}

// Success wraps a value. An optional message describes the outcome.
func Success[T any](v T, message ...string) Result[T] {
	r := Result[T]{kind: KindSuccess, value: v}
	if len(message) > 0 {
		r.message = message[0]
	}
	return r
}

// NotFound reports that subject does not exist or is filtered out.
func NotFound[T any](subject string) Result[T] {
	return Result[T]{kind: KindNotFound, message: subject + " not found"}
}

// ValidationError reports caller-supplied data that violates a precondition.
func ValidationError[T any](message string, errs ...string) Result[T] {
	return Result[T]{kind: KindValidation, message: message, errs: errs}
}

// Conflict reports a uniqueness or concurrency violation.
func Conflict[T any](message string) Result[T] {
	return Result[T]{kind: KindConflict, message: message}
}

// Failure reports any other unexpected condition.
func Failure[T any](message string) Result[T] {
	return Result[T]{kind: KindFailure, message: message}
}

// FromError maps an error into the matching variant. The error stays available via Err.
func FromError[T any](err error) Result[T] {
	if err == nil {
		var zero T
		return Success(zero)
	}

	var r Result[T]
	appErr, ok := apperror.AsAppError(err)
	switch {
	case ok && appErr.Code == apperror.CodeNotFound:
		r = Result[T]{kind: KindNotFound, message: appErr.Message}
	case ok && appErr.Code == apperror.CodeValidation:
		r = Result[T]{kind: KindValidation, message: appErr.Message, errs: appErr.Errors}
	case ok && (appErr.Code == apperror.CodeConflict || appErr.Code == apperror.CodeDuplicate):
		r = Result[T]{kind: KindConflict, message: appErr.Message}
	case ok:
		r = Result[T]{kind: KindFailure, message: appErr.Message}
	case errors.Is(err, context.Canceled):
		r = Result[T]{kind: KindFailure, message: apperror.NewCancelled(err).Message}
	case errors.Is(err, context.DeadlineExceeded):
		r = Result[T]{kind: KindFailure, message: apperror.NewTimeout(err).Message}
	default:
		r = Result[T]{kind: KindFailure, message: apperror.NewInternal(err).Message}
	}
	r.err = err
	return r
}

// IsSuccess is true only for the Success variant.
func (r Result[T]) IsSuccess() bool {
	return r.kind == KindSuccess
}

// Kind returns the active variant.
func (r Result[T]) Kind() Kind {
	return r.kind
}

// Value returns the wrapped value; the zero value unless IsSuccess.
func (r Result[T]) Value() T {
	return r.value
}

// Message returns the outcome description.
func (r Result[T]) Message() string {
	return r.message
}

// Errors returns validation messages.
func (r Result[T]) Errors() []string {
	return r.errs
}

// Err returns nil on success, otherwise an error describing the outcome.
// The original cause is preserved when the result was built by FromError.
func (r Result[T]) Err() error {
	if r.kind == KindSuccess {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	switch r.kind {
	case KindNotFound:
		return &apperror.AppError{Code: apperror.CodeNotFound, Message: r.message, HTTPStatus: 404}
	case KindValidation:
		return apperror.NewValidation(r.message).WithErrors(r.errs...)
	case KindConflict:
		return apperror.NewConflict(r.message)
	default:
		return &apperror.AppError{Code: apperror.CodeInternal, Message: r.message, HTTPStatus: 500}
	}
}

// Map transforms a successful value; other variants pass through.
func Map[T, U any](r Result[T], fn func(T) U) Result[U] {
	if !r.IsSuccess() {
		return Propagate[U](r)
	}
	return Result[U]{kind: KindSuccess, value: fn(r.value), message: r.message}
}

// Propagate re-types a non-success result.
func Propagate[U, T any](r Result[T]) Result[U] {
	return Result[U]{kind: r.kind, message: r.message, errs: r.errs, err: r.err}
}
