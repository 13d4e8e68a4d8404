package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError and decides its HTTP status.
type Kind string

const (
	KindValidation     Kind = "validation_error"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindPriceMismatch  Kind = "price_mismatch"
	KindAuthorization  Kind = "forbidden"
	KindUnauthorized   Kind = "unauthorized"
	KindTransientStore Kind = "transient_store_error"
	KindInternal       Kind = "internal_error"
)

// AppError is the error type every layer returns for expected failures.
type AppError struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// HTTPStatus maps the kind to a response code.
func (e *AppError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindPriceMismatch:
		return http.StatusUnprocessableEntity
	case KindAuthorization:
		return http.StatusForbidden
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindTransientStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may safely repeat the operation.
func (e *AppError) Retryable() bool {
	return e.Kind == KindTransientStore
}

// WithDetail attaches a key to the error details and returns the same error.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(kind Kind, msg string, err error) *AppError {
	return &AppError{Kind: kind, Message: msg, Err: err}
}

func Validation(msg string) *AppError { return newError(KindValidation, msg, nil) }
func NotFound(msg string) *AppError { return newError(KindNotFound, msg, nil) }
func Conflict(msg string) *AppError { return newError(KindConflict, msg, nil) }
func Forbidden(msg string) *AppError { return newError(KindAuthorization, msg, nil) }
func Unauthorized(msg string) *AppError { return newError(KindUnauthorized, msg, nil) }
func Internal(msg string, err error) *AppError { return newError(KindInternal, msg, err) }

// Transient wraps a store failure that is safe to retry (serialization failure,
// deadlock, lock timeout).
func Transient(msg string, err error) *AppError {
	return newError(KindTransientStore, msg, err)
}

// PriceMismatch reports a client-side total that disagrees with the computed one.
func PriceMismatch(expected, actual float64) *AppError {
	return newError(KindPriceMismatch,
		fmt.Sprintf("price changed: expected %.2f, computed %.2f", expected, actual), nil).
		WithDetail("expected", expected).
		WithDetail("actual", actual)
}

// UnavailableMessage is what every lost booking race is reported as.
const UnavailableMessage = "no longer available"

// Unavailable returns a fresh "no longer available" conflict.
func Unavailable() *AppError {
	return Conflict(UnavailableMessage)
}

// As extracts an *AppError from the chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func isKind(err error, kind Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == kind
}

func IsValidation(err error) bool { return isKind(err, KindValidation) }
func IsNotFound(err error) bool { return isKind(err, KindNotFound) }
func IsConflict(err error) bool { return isKind(err, KindConflict) }
func IsPriceMismatch(err error) bool { return isKind(err, KindPriceMismatch) }
func IsForbidden(err error) bool { return isKind(err, KindAuthorization) }
func IsUnauthorized(err error) bool { return isKind(err, KindUnauthorized) }
func IsTransient(err error) bool { return isKind(err, KindTransientStore) }

// IsRetryable reports whether err carries a retryable AppError.
func IsRetryable(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Retryable()
}

// StatusCode resolves the HTTP status for any error; unknown errors are 500.
func StatusCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
