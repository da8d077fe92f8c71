package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation and HTTP mapping.
type Kind string

const (
	KindAuthentication       Kind = "AUTHENTICATION_ERROR"
	KindConfiguration        Kind = "CONFIGURATION_ERROR"
	KindInvalidState         Kind = "INVALID_STATE"
	KindRequiresConfirmation Kind = "REQUIRES_CONFIRMATION"
	KindNotServiceable       Kind = "NOT_SERVICEABLE"
	KindAggregator           Kind = "AGGREGATOR_ERROR"
	KindNotFound             Kind = "NOT_FOUND"
	KindUnknownOutcome       Kind = "UNKNOWN_OUTCOME"
	KindValidation           Kind = "VALIDATION_ERROR"
	KindInternal             Kind = "INTERNAL_ERROR"
)

// Error is the typed error used across the service.
type Error struct {
	Kind           Kind
	Message        string
	UpstreamStatus int
	Details        map[string]interface{}
	Cause          error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetail attaches a key/value that is safe to show to the caller.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithUpstreamStatus records the aggregator's HTTP status.
func (e *Error) WithUpstreamStatus(code int) *Error {
	e.UpstreamStatus = code
	return e
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func NewAuthenticationError(message string) *Error {
	return New(KindAuthentication, message)
}

func NewConfigurationError(message string) *Error {
	return New(KindConfiguration, message)
}

func NewInvalidStateError(message string) *Error {
	return New(KindInvalidState, message)
}

// NewRequiresConfirmationError carries the courier status that made the action dangerous.
func NewRequiresConfirmationError(currentStatus string) *Error {
	return New(KindRequiresConfirmation,
		fmt.Sprintf("shipment is %s; retry with force to confirm", currentStatus)).
		WithDetail("currentStatus", currentStatus)
}

func NewNotServiceableError(message string) *Error {
	return New(KindNotServiceable, message)
}

func NewAggregatorError(message string) *Error {
	return New(KindAggregator, message)
}

func NewNotFoundError(resource, id string) *Error {
	return New(KindNotFound, fmt.Sprintf("%s %s not found", resource, id))
}

// NewUnknownOutcomeError marks a state-changing call whose result could not be
// observed: a timeout, a server error or a connection lost after sending.
func NewUnknownOutcomeError(operation string) *Error {
	return New(KindUnknownOutcome,
		fmt.Sprintf("%s did not complete cleanly; the courier may have applied it, run sync to verify", operation)).
		WithDetail("operation", operation)
}

func NewValidationError(message string) *Error {
	return New(KindValidation, message)
}

// Sentinels for errors.Is checks.
var (
	ErrAuthentication       = New(KindAuthentication, "authentication failed")
	ErrConfiguration        = New(KindConfiguration, "configuration error")
	ErrInvalidState         = New(KindInvalidState, "invalid state")
	ErrRequiresConfirmation = New(KindRequiresConfirmation, "requires confirmation")
	ErrNotServiceable       = New(KindNotServiceable, "not serviceable")
	ErrAggregator           = New(KindAggregator, "aggregator error")
	ErrNotFound             = New(KindNotFound, "not found")
	ErrUnknownOutcome       = New(KindUnknownOutcome, "unknown outcome")
	ErrValidation           = New(KindValidation, "validation error")
)

// KindOf returns the Kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error to the response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindInvalidState, KindRequiresConfirmation:
		return http.StatusConflict
	case KindConfiguration, KindNotServiceable:
		return http.StatusUnprocessableEntity
	case KindAuthentication, KindAggregator:
		return http.StatusBadGateway
	case KindUnknownOutcome:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

const maxPublicMessage = 200

// PublicMessage returns a caller-safe message. Causes are never included.
func PublicMessage(err error) string {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return "internal error"
	}
	msg := appErr.Message
	switch appErr.Kind {
	case KindAggregator:
		msg = "courier aggregator request failed: " + msg
	case KindAuthentication:
		msg = "courier aggregator authentication failed"
	}
	if len(msg) > maxPublicMessage {
		msg = msg[:maxPublicMessage]
	}
	return msg
}

// PublicDetails returns the details attached to a typed error, if any.
func PublicDetails(err error) map[string]interface{} {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Details
	}
	return nil
}
