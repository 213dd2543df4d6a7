package gate

import (
	"context"
	"net/http"

	"github.com/dmitrymomot/planguard/handler"
	"github.com/dmitrymomot/planguard/svc/subscriber"
)

// ErrFeatureNotAvailable is the 402 answer of RequireFeature.
var ErrFeatureNotAvailable = handler.NewHTTPError(http.StatusPaymentRequired, "feature_not_available", "Your plan does not include this feature")

type resultKey struct{}

// ResultFromContext returns the check RequireFeature let through.
func ResultFromContext(ctx context.Context) (Result, bool) {
	res, ok := ctx.Value(resultKey{}).(Result)
	return res, ok
}

// DenyHandler writes the response for a denied check.
type DenyHandler func(w http.ResponseWriter, r *http.Request, res Result)

type middlewareConfig struct {
	deny DenyHandler
}

type MiddlewareOption func(*middlewareConfig)

func WithDenyHandler(h DenyHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if h != nil {
			c.deny = h
		}
	}
}

// RequireFeature lets a request through only when the subscriber's plan
// grants feature. It must run after subscriber.Middleware. Denials answer
// 402 with the check result, including the qualifying upgrades, in the
// error envelope's meta.
func (s *Service) RequireFeature(feature string, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{deny: defaultDeny}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := subscriber.IDFromContext(r.Context())
			if !ok {
				_ = handler.JSONError(handler.ErrUnauthorized).Render(w, r)
				return
			}

			res, err := s.Check(r.Context(), id, feature)
			if err != nil {
				_ = handler.JSONError(err).Render(w, r)
				return
			}
			if !res.Decision.Allowed {
				cfg.deny(w, r, res)
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), resultKey{}, res)))
		})
	}
}

func defaultDeny(w http.ResponseWriter, r *http.Request, res Result) {
	_ = handler.JSONError(ErrFeatureNotAvailable, handler.WithJSONMeta(map[string]any{
		"check": res,
	})).Render(w, r)
}
