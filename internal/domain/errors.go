package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an Error. The set is closed; every kind carries a fixed HTTP status.
type ErrorKind string

const (
	KindValidation       ErrorKind = "validation"
	KindAuthorization    ErrorKind = "authorization"
	KindUnauthorized     ErrorKind = "unauthorized"
	KindImmutableState   ErrorKind = "immutable_state"
	KindNotFound         ErrorKind = "not_found"
	KindDependencyConfig ErrorKind = "dependency_config"
	KindConflict         ErrorKind = "constraint_conflict"
	KindUpstreamStorage  ErrorKind = "upstream_storage"
	KindTimeout          ErrorKind = "timeout"
	KindInternal         ErrorKind = "internal"
)

// Status returns the HTTP status associated with the kind.
// Upstream storage and timeout errors only ever surface through a failed job,
// so they map to 500 if one leaks into a synchronous response.
func (k ErrorKind) Status() int {
	switch k {
	case KindValidation, KindImmutableState:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is the application error type. The status is decided where the error is created.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status for this error.
func (e *Error) Status() int { return e.Kind.Status() }

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func newError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// NewValidationError reports malformed or incomplete input.
func NewValidationError(format string, args ...interface{}) *Error {
	return newError(KindValidation, nil, format, args...)
}

// NewAuthorizationError reports an actor acting on a resource it does not own.
func NewAuthorizationError(format string, args ...interface{}) *Error {
	return newError(KindAuthorization, nil, format, args...)
}

// NewUnauthorizedError reports a missing or invalid credential.
func NewUnauthorizedError(format string, args ...interface{}) *Error {
	return newError(KindUnauthorized, nil, format, args...)
}

// NewImmutableStateError reports a change to an entry that is already confirmed.
func NewImmutableStateError(format string, args ...interface{}) *Error {
	return newError(KindImmutableState, nil, format, args...)
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(format string, args ...interface{}) *Error {
	return newError(KindNotFound, nil, format, args...)
}

// NewDependencyConfigError reports missing or invalid configuration.
func NewDependencyConfigError(format string, args ...interface{}) *Error {
	return newError(KindDependencyConfig, nil, format, args...)
}

// NewConflictError reports a state clash, such as a duplicate key or a second job transition.
func NewConflictError(err error, format string, args ...interface{}) *Error {
	return newError(KindConflict, err, format, args...)
}

// NewUpstreamStorageError wraps a failure of object storage.
func NewUpstreamStorageError(err error, format string, args ...interface{}) *Error {
	return newError(KindUpstreamStorage, err, format, args...)
}

// NewTimeoutError reports work that exceeded its deadline.
func NewTimeoutError(format string, args ...interface{}) *Error {
	return newError(KindTimeout, nil, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// StatusOf returns the HTTP status for any error, defaulting to 500.
func StatusOf(err error) int {
	return KindOf(err).Status()
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
