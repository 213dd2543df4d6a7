package subscriber

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/planguard/pkg/logger"
)

// contextKey prevents collisions with other packages using context values
type contextKey struct{}

func WithID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func IDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(contextKey{}).(uuid.UUID)
	return id, ok && id != uuid.Nil
}

// MustIDFromContext panics if no subscriber is set. Use only behind Middleware.
func MustIDFromContext(ctx context.Context) uuid.UUID {
	id, ok := IDFromContext(ctx)
	if !ok {
		panic("subscriber: no subscriber id in context")
	}
	return id
}

// LoggerExtractor enriches log records with the subscriber id.
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := IDFromContext(ctx); ok {
			return logger.SubscriberID(id.String()), true
		}
		return slog.Attr{}, false
	}
}

// RateLimitKey keys throttling buckets by subscriber. It returns "" for
// unidentified requests.
func RateLimitKey(r *http.Request) string {
	if id, ok := IDFromContext(r.Context()); ok {
		return "subscriber:" + id.String()
	}
	return ""
}
