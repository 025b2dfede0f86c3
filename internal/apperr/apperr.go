// Package apperr is the error taxonomy shared by repositories, middleware and
// handlers. Callers branch on Kind instead of string-matching messages.
package apperr

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindInternal         Kind = "internal"
	KindUnavailable      Kind = "unavailable"
	KindNotFound         Kind = "not_found"
	KindValidationFailed Kind = "validation_failed"
	KindInvalidPayload   Kind = "invalid_payload"
	KindForbidden        Kind = "forbidden"
	KindInvalidToken     Kind = "invalid_token"
	// KindValidationError is the named request-validation condition answered with 406.
	KindValidationError Kind = "validation_error"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}

	if e.Op != "" {
		msg = e.Op + ": " + msg
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets sentinels built with New match any error of the same kind and message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches kind and operation to an underlying cause.
func Wrap(kind Kind, op string, err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return &Error{Kind: ae.Kind, Op: op, Message: ae.Message, Details: ae.Details, Err: err}
	}

	return &Error{Kind: kind, Op: op, Err: err}
}

// Unavailable marks err as a persistence or transport failure. Errors that
// already carry a domain kind keep it.
func Unavailable(op string, err error) *Error {
	if k := KindOf(err); k != KindInternal {
		return Wrap(k, op, err)
	}
	return &Error{Kind: KindUnavailable, Op: op, Message: "Service unavailable", Err: err}
}

// WithDetails returns a copy of e carrying client-visible details.
func WithDetails(e *Error, details interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}

	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to the response status. Repository conditions,
// store failures included, are collapsed into 503.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound, KindValidationFailed, KindInvalidPayload, KindUnavailable:
		return http.StatusServiceUnavailable
	case KindForbidden, KindInvalidToken:
		return http.StatusForbidden
	case KindValidationError:
		return http.StatusNotAcceptable
	default:
		return http.StatusInternalServerError
	}
}

// Code is the machine-readable error code written in response envelopes.
func Code(err error) string {
	switch HTTPStatus(err) {
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotAcceptable:
		return "validation_error"
	default:
		return "internal_error"
	}
}

// PublicMessage is safe to show to clients; internal causes are not leaked.
func PublicMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != KindInternal {
		if ae.Message != "" {
			return ae.Message
		}
		if ae.Kind == KindUnavailable {
			return "Service unavailable"
		}
		return string(ae.Kind)
	}

	return "Internal server error"
}

func DetailsOf(err error) interface{} {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Details
	}
	return nil
}
