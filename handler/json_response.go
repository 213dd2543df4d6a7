package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrymomot/planguard/pkg/validator"
)

// JSONResponse is the envelope of every JSON body.
type JSONResponse struct {
	Data  any            `json:"data,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
	Error *ErrorDetail   `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string              `json:"code,omitempty"`
	Message string              `json:"message,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   JSONResponse
}

func (j jsonResponse) Render(w http.ResponseWriter, _ *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

type JSONOption func(*jsonResponse)

func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) {
		r.status = status
	}
}

func WithJSONMeta(meta map[string]any) JSONOption {
	return func(r *jsonResponse) {
		r.body.Meta = meta
	}
}

// JSON wraps v in the data envelope with status 200.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: JSONResponse{Data: v}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders err in the error envelope with the status from StatusCode.
// Internal errors never leak their message.
func JSONError(err error, opts ...JSONOption) Response {
	if err == nil {
		err = ErrInternalServerError
	}
	r := &jsonResponse{status: StatusCode(err), body: JSONResponse{Error: errorToDetail(err)}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func errorToDetail(err error) *ErrorDetail {
	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		return &ErrorDetail{Code: httpErr.Key, Message: httpErr.Error()}
	}

	if ve := validator.ExtractValidationErrors(err); ve != nil {
		return &ErrorDetail{
			Code:    "validation_error",
			Message: "validation failed",
			Details: ve.Fields(),
		}
	}

	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		return &ErrorDetail{Code: "internal_error", Message: http.StatusText(status)}
	}
	return &ErrorDetail{
		Code:    strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_"),
		Message: err.Error(),
	}
}
