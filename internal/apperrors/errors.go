// Package apperrors defines the error taxonomy of the weather service and how
// each kind of failure is reported at the HTTP boundary.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies the kind of failure.
type ErrorCode string

const (
	ErrCodeBadRequest          ErrorCode = "BAD_REQUEST"
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeUpstreamError       ErrorCode = "UPSTREAM_ERROR"
	ErrCodeMalformedResponse   ErrorCode = "MALFORMED_UPSTREAM_RESPONSE"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// Error is a structured application error.
type Error struct {
	Code    ErrorCode
	Message string
	Details string

	// UpstreamStatus is the provider's HTTP status for ErrCodeUpstreamError.
	UpstreamStatus int
	// Timeout marks an ErrCodeUpstreamUnavailable caused by a deadline.
	Timeout bool

	cause error
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewBadRequestError reports invalid caller input.
func NewBadRequestError(message string) *Error {
	return &Error{
		Code:    ErrCodeBadRequest,
		Message: message,
	}
}

// NewUpstreamUnavailableError reports a transport failure reaching the provider.
func NewUpstreamUnavailableError(err error, timeout bool) *Error {
	msg := "weather provider is unavailable"
	if timeout {
		msg = "weather provider did not respond in time"
	}
	return &Error{
		Code:    ErrCodeUpstreamUnavailable,
		Message: msg,
		Details: errString(err),
		Timeout: timeout,
		cause:   err,
	}
}

// NewUpstreamError reports a non-success status from the provider. body is
// the provider's own error text and is kept verbatim.
func NewUpstreamError(status int, body string) *Error {
	msg := fmt.Sprintf("weather provider returned status %d", status)
	if status == http.StatusNotFound {
		msg = "city not found"
	}
	return &Error{
		Code:           ErrCodeUpstreamError,
		Message:        msg,
		Details:        body,
		UpstreamStatus: status,
	}
}

// NewMalformedResponseError reports a successful provider response that lacks
// the expected fields.
func NewMalformedResponseError(details string, err error) *Error {
	return &Error{
		Code:    ErrCodeMalformedResponse,
		Message: "weather provider returned an unexpected payload",
		Details: details,
		cause:   err,
	}
}

// From normalizes any error into an *Error. Unknown errors become
// ErrCodeInternal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{
		Code:    ErrCodeInternal,
		Message: "internal server error",
		Details: err.Error(),
		cause:   err,
	}
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// HTTPStatus maps an error to the status code returned to the caller.
func HTTPStatus(err error) int {
	appErr := From(err)
	if appErr == nil {
		return http.StatusOK
	}

	switch appErr.Code {
	case ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeUpstreamUnavailable:
		if appErr.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case ErrCodeUpstreamError:
		if appErr.UpstreamStatus == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case ErrCodeMalformedResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
