package subscriber_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/planguard/pkg/logger"
	"github.com/dmitrymomot/planguard/svc/subscriber"
)

func TestMiddleware(t *testing.T) {
	t.Parallel()
	id := uuid.New()

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := subscriber.IDFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(got.String()))
	})

	tests := []struct {
		name     string
		header   string
		opts     []subscriber.MiddlewareOption
		wantCode int
		wantBody string
	}{
		{"valid id", id.String(), nil, http.StatusOK, id.String()},
		{"padded id", "  " + id.String() + " ", nil, http.StatusOK, id.String()},
		{"missing id", "", nil, http.StatusUnauthorized, "Subscriber not identified"},
		{"nil uuid", uuid.Nil.String(), nil, http.StatusBadRequest, "Invalid subscriber id"},
		{"garbage", "acme", nil, http.StatusBadRequest, "Invalid subscriber id"},
		{"optional without id", "", []subscriber.MiddlewareOption{subscriber.WithOptional()}, http.StatusNoContent, ""},
		{"optional with garbage", "acme", []subscriber.MiddlewareOption{subscriber.WithOptional()}, http.StatusBadRequest, "Invalid subscriber id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := subscriber.Middleware(subscriber.NewHeaderResolver(""), tt.opts...)(echo)

			req := httptest.NewRequest(http.MethodGet, "/usage", nil)
			if tt.header != "" {
				req.Header.Set(subscriber.DefaultHeader, tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestMiddleware_CustomErrorHandler(t *testing.T) {
	t.Parallel()

	var got error
	h := subscriber.Middleware(subscriber.NewHeaderResolver("X-User"),
		subscriber.WithErrorHandler(func(w http.ResponseWriter, _ *http.Request, err error) {
			got = err
			w.WriteHeader(http.StatusTeapot)
		}),
	)(http.NotFoundHandler())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.ErrorIs(t, got, subscriber.ErrMissingID)
}

func TestResolvers(t *testing.T) {
	t.Parallel()
	id := uuid.New()

	path := subscriber.NewPathResolver(2)
	got, err := path(httptest.NewRequest(http.MethodGet, "/subscribers/"+id.String()+"/usage", nil))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = path(httptest.NewRequest(http.MethodGet, "/subscribers", nil))
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, got)

	_, err = path(httptest.NewRequest(http.MethodGet, "/subscribers/acme", nil))
	assert.ErrorIs(t, err, subscriber.ErrInvalidID)

	_, err = subscriber.NewPathResolver(0)(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Error(t, err)

	composite := subscriber.NewCompositeResolver(subscriber.NewHeaderResolver(""), path)
	req := httptest.NewRequest(http.MethodGet, "/subscribers/"+id.String(), nil)
	req.Header.Set(subscriber.DefaultHeader, "broken")
	got, err = composite(req)
	require.NoError(t, err, "a later resolver can still find the id")
	assert.Equal(t, id, got)

	_, err = composite(httptest.NewRequest(http.MethodGet, "/subscribers/broken", nil))
	assert.ErrorIs(t, err, subscriber.ErrInvalidID)
}

func TestContext(t *testing.T) {
	t.Parallel()
	id := uuid.New()
	ctx := subscriber.WithID(context.Background(), id)

	got, ok := subscriber.IDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)
	assert.Equal(t, id, subscriber.MustIDFromContext(ctx))

	_, ok = subscriber.IDFromContext(context.Background())
	assert.False(t, ok)
	assert.Panics(t, func() { subscriber.MustIDFromContext(context.Background()) })

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithJSONFormatter(),
		logger.WithContextExtractors(subscriber.LoggerExtractor()),
	)
	log.InfoContext(ctx, "checked")
	assert.Contains(t, buf.String(), `"subscriber_id":"`+id.String()+`"`)

	buf.Reset()
	log.Info("anonymous")
	assert.NotContains(t, buf.String(), "subscriber_id")
}

func TestRateLimitKey(t *testing.T) {
	t.Parallel()
	id := uuid.New()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, subscriber.RateLimitKey(r))

	r = r.WithContext(subscriber.WithID(r.Context(), id))
	assert.Equal(t, "subscriber:"+id.String(), subscriber.RateLimitKey(r))
}
