package service

import (
	"errors"
	"net/http"
)

// ErrorKind classifies service errors for the HTTP layer.
type ErrorKind string

const (
	KindValidation  ErrorKind = "ValidationError"
	KindNotFound    ErrorKind = "NotFound"
	KindRateLimited ErrorKind = "RateLimited"
	KindKeyExpired  ErrorKind = "KeyExpired"
	KindAlreadyUsed ErrorKind = "AlreadyUsed"
	KindInvalidKey  ErrorKind = "InvalidKey"
	KindInternal    ErrorKind = "InternalError"
)

// Sentinels for errors.Is. Any *Error of the same kind matches.
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrRateLimited = &Error{Kind: KindRateLimited}
	ErrKeyExpired  = &Error{Kind: KindKeyExpired}
	ErrAlreadyUsed = &Error{Kind: KindAlreadyUsed}
	ErrInvalidKey  = &Error{Kind: KindInvalidKey}
	ErrInternal    = &Error{Kind: KindInternal}
)

// Error is the only error type returned by the protocol controller.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func internalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to its response status.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindKeyExpired, KindAlreadyUsed, KindInvalidKey:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is safe to show to a client; internal details are hidden.
func PublicMessage(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindInternal {
		return "internal server error"
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}
