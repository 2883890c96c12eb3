// Package apperrors provides the structured error taxonomy shared by the
// entitlement engine and the HTTP boundary.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an application error.
type Kind string

const (
	KindAuthenticationRequired Kind = "AUTHENTICATION_REQUIRED"
	KindPaymentRequired        Kind = "PAYMENT_REQUIRED"
	KindQuotaExceeded          Kind = "QUOTA_EXCEEDED"
	KindValidation             Kind = "VALIDATION_ERROR"
	KindPayloadTooLarge        Kind = "PAYLOAD_TOO_LARGE"
	KindNotFound               Kind = "NOT_FOUND"
	KindForbidden              Kind = "FORBIDDEN"
	KindConfiguration          Kind = "CONFIGURATION_ERROR"
	KindInternal               Kind = "INTERNAL_ERROR"
)

// Error is a user-facing failure. Message is safe to return to callers;
// Details and the wrapped error are for logs only.
type Error struct {
	Kind     Kind
	Message  string
	Details  string
	Metadata map[string]interface{}
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can compare against the sentinel values below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// With attaches a metadata key/value and returns the same error.
func (e *Error) With(key string, value interface{}) *Error {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

// Sentinels for errors.Is comparisons.
var (
	ErrAuthenticationRequired = &Error{Kind: KindAuthenticationRequired}
	ErrPaymentRequired        = &Error{Kind: KindPaymentRequired}
	ErrQuotaExceeded          = &Error{Kind: KindQuotaExceeded}
	ErrValidation             = &Error{Kind: KindValidation}
	ErrPayloadTooLarge        = &Error{Kind: KindPayloadTooLarge}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrForbidden              = &Error{Kind: KindForbidden}
	ErrConfiguration          = &Error{Kind: KindConfiguration}
)

func AuthenticationRequired(message string) *Error {
	return &Error{Kind: KindAuthenticationRequired, Message: message}
}

func PaymentRequired(message string) *Error {
	return &Error{Kind: KindPaymentRequired, Message: message}
}

// QuotaExceeded records the counter state that caused the rejection.
func QuotaExceeded(message string, used, limit int) *Error {
	return &Error{
		Kind:     KindQuotaExceeded,
		Message:  message,
		Metadata: map[string]interface{}{"used": used, "limit": limit},
	}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func PayloadTooLarge(message string) *Error {
	return &Error{Kind: KindPayloadTooLarge, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// Configuration signals a deployment defect such as a missing catalog row.
func Configuration(details string) *Error {
	return &Error{
		Kind:    KindConfiguration,
		Message: "Service is misconfigured. Please try again later.",
		Details: details,
	}
}

// Wrap converts an unexpected error into an internal error without leaking
// its text to the caller.
func Wrap(err error, details string) *Error {
	return &Error{
		Kind:    KindInternal,
		Message: "Internal server error",
		Details: details,
		Err:     err,
	}
}

// KindOf reports the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to its response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindAuthenticationRequired:
		return http.StatusUnauthorized
	case KindPaymentRequired:
		return http.StatusPaymentRequired
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	case KindValidation:
		return http.StatusBadRequest
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that may be shown to the caller.
func PublicMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return "Internal server error"
}
