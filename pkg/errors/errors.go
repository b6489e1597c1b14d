// Package errors carries typed API errors. A Code decides the HTTP status,
// whether the caller's message is shown, and whether details are exposed.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeIdempotency  Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a code is rendered.
type Metadata struct {
	HTTPStatus int
	Retryable  bool
	// PublicMessage replaces the error message unless ExposeMessage is set.
	PublicMessage  string
	ExposeMessage  bool
	DetailsAllowed bool
}

var catalog = map[Code]Metadata{
	CodeValidation:   {http.StatusBadRequest, false, "validation failed", true, true},
	CodeUnauthorized: {http.StatusUnauthorized, false, "authentication required", true, false},
	CodeForbidden:    {http.StatusForbidden, false, "access denied", true, true},
	CodeNotFound:     {http.StatusNotFound, false, "resource not found", true, false},
	CodeConflict:     {http.StatusConflict, false, "conflict detected", true, false},
	CodeIdempotency:  {http.StatusConflict, false, "idempotency key reused", true, true},
	CodeRateLimit:    {http.StatusTooManyRequests, true, "rate limit exceeded", true, false},
	CodeInternal:     {http.StatusInternalServerError, true, "internal server error", false, false},
	CodeDependency:   {http.StatusServiceUnavailable, true, "dependency unavailable", false, true},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := catalog[code]; ok {
		return meta
	}
	return catalog[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches code and message to err. A nil err behaves like New.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause == nil {
		return fmt.Sprintf("%s: %s", e.code, e.message)
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	return As(err).Code()
}

func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// IsRetryable reports whether a client may retry the same request.
func IsRetryable(err error) bool {
	return MetadataFor(CodeOf(err)).Retryable
}
