// Package subscriber identifies the subscriber behind an HTTP request.
//
// Authentication happens upstream; this package only reads the id the
// gateway forwards and puts it on the request context:
//
//	r.With(subscriber.Middleware(subscriber.NewHeaderResolver(""))).Get("/usage", h)
package subscriber

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// ErrorHandler writes the response for a request without a usable id.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type middlewareConfig struct {
	optional bool
	onError  ErrorHandler
}

type MiddlewareOption func(*middlewareConfig)

// WithOptional lets requests without an id through; invalid ids still fail.
func WithOptional() MiddlewareOption {
	return func(c *middlewareConfig) { c.optional = true }
}

func WithErrorHandler(h ErrorHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if h != nil {
			c.onError = h
		}
	}
}

// Middleware resolves the subscriber id and stores it with WithID.
// Missing ids answer 401 and invalid ones 400 unless an ErrorHandler is set.
func Middleware(resolve Resolver, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{onError: defaultErrorHandler}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolve(r)
			if err != nil {
				cfg.onError(w, r, err)
				return
			}
			if id == uuid.Nil {
				if cfg.optional {
					next.ServeHTTP(w, r)
					return
				}
				cfg.onError(w, r, ErrMissingID)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
		})
	}
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	if errors.Is(err, ErrMissingID) {
		http.Error(w, "Subscriber not identified", http.StatusUnauthorized)
		return
	}
	http.Error(w, "Invalid subscriber id", http.StatusBadRequest)
}
