// Package handler turns typed request handlers into http.HandlerFunc.
//
// A HandlerFunc receives a Context and a request value already populated by
// the configured binders, and returns a Response that renders itself. Errors
// from binding or rendering go through an ErrorHandler, which by default writes
// the JSON error envelope:
//
//	{"error": {"code": "validation_error", "message": "...", "details": {...}}}
//
// StatusCode maps HTTPError, validator.ValidationErrors and binder errors to
// status codes; anything else is a 500 with a generic message.
package handler
