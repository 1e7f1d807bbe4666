package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError indicates that an entity does not exist or is not visible
// to the caller. Domain packages expose sentinels built with NewNotFoundError
// so both `errors.Cause(err) == pkg.ErrNotFound` and IsNotFound checks work.
type NotFoundError struct {
	message string
}

func NewNotFoundError(msg string) *NotFoundError {
	return &NotFoundError{message: msg}
}

func (e NotFoundError) Error() string {
	return e.message
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

// ForbiddenError indicates the caller lacks the capability for an operation.
type ForbiddenError struct {
	message string
}

func NewForbiddenError(msg string) *ForbiddenError {
	return &ForbiddenError{message: msg}
}

func (e ForbiddenError) Error() string {
	return e.message
}

func IsForbidden(err error) bool {
	_, ok := errors.Cause(err).(*ForbiddenError)
	return ok
}

// ConflictError indicates a unique/integrity constraint violation.
type ConflictError struct {
	message string
}

func NewConflictError(msg string) *ConflictError {
	return &ConflictError{message: msg}
}

func (e ConflictError) Error() string {
	return e.message
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

// StoreUnavailableError indicates the backing store failed a request
// (timeout, connectivity, deadlock). A retryable one may be attempted once
// more inside the transactional boundary before giving up.
type StoreUnavailableError struct {
	message   string
	retryable bool
}

func NewStoreUnavailableError(msg string, retryable ...bool) *StoreUnavailableError {
	e := &StoreUnavailableError{message: msg}
	if len(retryable) > 0 {
		e.retryable = retryable[0]
	}
	return e
}

func (e StoreUnavailableError) Error() string {
	return e.message
}

func IsStoreUnavailable(err error) bool {
	_, ok := errors.Cause(err).(*StoreUnavailableError)
	return ok
}

func IsRetryable(err error) bool {
	if e, ok := errors.Cause(err).(*StoreUnavailableError); ok {
		return e.retryable
	}
	return false
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
