package handler

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/planguard/pkg/binder"
	"github.com/dmitrymomot/planguard/pkg/validator"
)

var ErrNilResponse = errors.New("handler.errors.nil_response")

// HTTPError is an error with a status code and a stable machine-readable key.
type HTTPError struct {
	Code    int
	Key     string
	Message string
}

func (e HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Key
}

// NewHTTPError creates an HTTPError. The message defaults to the status text.
func NewHTTPError(code int, key string, message ...string) HTTPError {
	e := HTTPError{Code: code, Key: key, Message: http.StatusText(code)}
	if len(message) > 0 && message[0] != "" {
		e.Message = message[0]
	}
	return e
}

var (
	ErrBadRequest           = NewHTTPError(http.StatusBadRequest, "bad_request")
	ErrUnauthorized         = NewHTTPError(http.StatusUnauthorized, "unauthorized")
	ErrPaymentRequired      = NewHTTPError(http.StatusPaymentRequired, "payment_required")
	ErrNotFound             = NewHTTPError(http.StatusNotFound, "not_found")
	ErrConflict             = NewHTTPError(http.StatusConflict, "conflict")
	ErrRequestTooLarge      = NewHTTPError(http.StatusRequestEntityTooLarge, "request_entity_too_large")
	ErrUnsupportedMediaType = NewHTTPError(http.StatusUnsupportedMediaType, "unsupported_media_type")
	ErrUnprocessableEntity  = NewHTTPError(http.StatusUnprocessableEntity, "unprocessable_entity")
	ErrTooManyRequests      = NewHTTPError(http.StatusTooManyRequests, "too_many_requests")
	ErrInternalServerError  = NewHTTPError(http.StatusInternalServerError, "internal_server_error")
	ErrNotImplemented       = NewHTTPError(http.StatusNotImplemented, "not_implemented")
	ErrBadGateway           = NewHTTPError(http.StatusBadGateway, "bad_gateway")
	ErrServiceUnavailable   = NewHTTPError(http.StatusServiceUnavailable, "service_unavailable")
)

// StatusCode classifies err into an HTTP status.
func StatusCode(err error) int {
	var httpErr HTTPError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &httpErr):
		return httpErr.Code
	case validator.IsValidationError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, binder.ErrBodyTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, binder.ErrInvalidJSON), errors.Is(err, binder.ErrInvalidQuery), errors.Is(err, binder.ErrInvalidPath):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
