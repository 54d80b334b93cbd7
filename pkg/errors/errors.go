package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the stable machine-readable identifier sent to clients.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	CodeInvalidSignature    Code = "INVALID_SIGNATURE"
	CodePaymentNotCompleted Code = "PAYMENT_NOT_COMPLETED"
	CodeNotConfigured       Code = "NOT_CONFIGURED"
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
)

// Metadata drives how a code is rendered over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool

	// Opaque codes never echo the caller-supplied message.
	Opaque bool
}

type flag uint8

const (
	retryable flag = 1 << iota
	details
	opaque
)

func md(status int, msg string, flags flag) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  msg,
		Retryable:      flags&retryable != 0,
		DetailsAllowed: flags&details != 0,
		Opaque:         flags&opaque != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:          md(http.StatusBadRequest, "validation failed", details),
	CodeUnauthorized:        md(http.StatusUnauthorized, "authentication required", 0),
	CodeForbidden:           md(http.StatusForbidden, "access denied", 0),
	CodeNotFound:            md(http.StatusNotFound, "resource not found", 0),
	CodeConflict:            md(http.StatusConflict, "conflict detected", 0),
	CodeStateConflict:       md(http.StatusUnprocessableEntity, "state transition disallowed", details),
	CodeIdempotency:         md(http.StatusConflict, "idempotency key reused", details),
	CodeRateLimit:           md(http.StatusTooManyRequests, "rate limit exceeded", 0),
	CodeInvalidSignature:    md(http.StatusBadRequest, "invalid payment signature", 0),
	CodePaymentNotCompleted: md(http.StatusBadRequest, "payment not successful", retryable|details),
	CodeNotConfigured:       md(http.StatusBadRequest, "capability not configured", 0),
	CodeInvalidTransition:   md(http.StatusUnprocessableEntity, "invalid status transition", details),
	CodeInternal:            md(http.StatusInternalServerError, "internal server error", retryable|opaque),
	CodeDependency:          md(http.StatusServiceUnavailable, "dependency unavailable", retryable|details|opaque),
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
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

// Wrap attaches code and message to err. A nil err yields a plain New.
func Wrap(code Code, err error, message string) *Error {
	e := New(code, message)
	e.cause = err
	return e
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

// PublicMessage is what clients see: the error's own message unless the code
// is opaque or the message is empty.
func (e *Error) PublicMessage() string {
	meta := MetadataFor(e.Code())
	if meta.Opaque || e.Message() == "" {
		return meta.PublicMessage
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
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether err carries a typed error with the given code.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

// As returns the outermost typed error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
