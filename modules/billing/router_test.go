package billing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/planguard/modules/billing"
	"github.com/dmitrymomot/planguard/pkg/entitlement"
	"github.com/dmitrymomot/planguard/pkg/ratelimit"
	"github.com/dmitrymomot/planguard/pkg/subscription"
	"github.com/dmitrymomot/planguard/svc/gate"
	"github.com/dmitrymomot/planguard/svc/subscriber"
	"github.com/dmitrymomot/planguard/svc/usage"
)

const validSignature = "ts=1;h1=ok"

type fakeProvider struct {
	mu        sync.Mutex
	checkouts []subscription.CheckoutRequest
}

func (p *fakeProvider) CreateCheckoutLink(_ context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutLink, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkouts = append(p.checkouts, req)
	return &subscription.CheckoutLink{URL: "https://pay.example.com/" + req.PriceRef, SessionID: "txn_1"}, nil
}

func (p *fakeProvider) GetCustomerPortalLink(_ context.Context, sub *subscription.Subscription) (*subscription.PortalLink, error) {
	return &subscription.PortalLink{URL: "https://portal.example.com/" + sub.ProviderCustomerID}, nil
}

func (p *fakeProvider) ParseWebhook(_ context.Context, payload []byte, signature string) (*subscription.WebhookEvent, error) {
	if signature != validSignature {
		return nil, subscription.ErrWebhookVerificationFailed
	}
	var ev subscription.WebhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, subscription.ErrInvalidWebhookPayload
	}
	return &ev, nil
}

func catalog(t *testing.T) *entitlement.Catalog {
	t.Helper()
	q := entitlement.Quota
	c, err := entitlement.NewCatalog([]entitlement.Plan{
		{ID: "plan_free", Slug: entitlement.SlugFree, Name: "Free", Currency: "BRL", IsActive: true, Features: map[string]entitlement.Value{
			entitlement.FeatureWorkspaces: q(1), entitlement.FeatureExamsPerMonth: q(3),
			entitlement.FeatureQRAttendance: entitlement.Bool(false), entitlement.FeatureSupport: entitlement.Bool(false),
		}},
		{ID: "plan_starter", Slug: entitlement.SlugStarter, Name: "Starter", PriceMinorUnits: 1990, Currency: "BRL", PriceRef: "pri_starter", IsActive: true, Features: map[string]entitlement.Value{
			entitlement.FeatureWorkspaces: q(3), entitlement.FeatureExamsPerMonth: q(entitlement.Unlimited),
			entitlement.FeatureQRAttendance: entitlement.Bool(false), entitlement.FeatureSupport: entitlement.Tier("email"),
		}},
		{ID: "plan_pro", Slug: entitlement.SlugPro, Name: "Pro", PriceMinorUnits: 4990, Currency: "BRL", PriceRef: "pri_pro", IsActive: true, Features: map[string]entitlement.Value{
			entitlement.FeatureWorkspaces: q(entitlement.Unlimited), entitlement.FeatureExamsPerMonth: q(entitlement.Unlimited),
			entitlement.FeatureQRAttendance: entitlement.Bool(true), entitlement.FeatureSupport: entitlement.Tier("prioritario"),
		}},
	})
	require.NoError(t, err)
	return c
}

type env struct {
	srv      *httptest.Server
	provider *fakeProvider
	store    *subscription.MemoryStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	c := catalog(t)
	catalogFn := func() *entitlement.Catalog { return c }

	store := subscription.NewMemoryStore()
	resolver := subscription.NewResolver(catalogFn, store, subscription.WithCache(subscription.NewLRUCache(100, time.Minute)))
	provider := &fakeProvider{}
	subs := subscription.NewService(store, provider, catalogFn, subscription.WithInvalidator(resolver))
	tracker := usage.New(usage.NewMemoryStore())

	srv := httptest.NewServer(billing.Router(billing.RouterOptions{
		Catalog:           catalogFn,
		Gate:              gate.New(resolver, catalogFn, gate.WithCounters(tracker.Counters())),
		Subscriptions:     subs,
		Usage:             tracker,
		AttendanceBaseURL: "https://app.example.com",
	}))
	t.Cleanup(srv.Close)
	return &env{srv: srv, provider: provider, store: store}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  json.RawMessage `json:"meta"`
	Error *struct {
		Code    string              `json:"code"`
		Details map[string][]string `json:"details"`
	} `json:"error"`
}

func (e *env) do(t *testing.T, method, path string, subscriberID *uuid.UUID, body string, header ...string) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if subscriberID != nil {
		req.Header.Set(subscriber.DefaultHeader, subscriberID.String())
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func decodeEnvelope(t *testing.T, raw []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func slugs(ps []entitlement.Plan) []entitlement.Slug {
	out := make([]entitlement.Slug, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Slug)
	}
	return out
}

func TestPlans(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	resp, raw := e.do(t, http.MethodGet, "/plans", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data struct {
		Plans []entitlement.Plan `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, raw).Data, &data))
	assert.Equal(t, []entitlement.Slug{"free", "starter", "pro"}, slugs(data.Plans))
}

func TestIdentification(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	resp, raw := e.do(t, http.MethodGet, "/usage", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "subscriber_required", decodeEnvelope(t, raw).Error.Code)

	resp, raw = e.do(t, http.MethodGet, "/usage", nil, "", subscriber.DefaultHeader, "not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_subscriber", decodeEnvelope(t, raw).Error.Code)
}

func TestThrottle(t *testing.T) {
	t.Parallel()
	c := catalog(t)
	catalogFn := func() *entitlement.Catalog { return c }
	resolver := subscription.NewResolver(catalogFn, subscription.NewMemoryStore())

	tb, err := ratelimit.NewTokenBucket(ratelimit.Config{Rate: 1, Interval: time.Hour, Burst: 1, MaxKeys: 10})
	require.NoError(t, err)

	srv := httptest.NewServer(billing.Router(billing.RouterOptions{
		Catalog:       catalogFn,
		Gate:          gate.New(resolver, catalogFn),
		Subscriptions: subscription.NewService(subscription.NewMemoryStore(), nil, catalogFn),
		Throttle:      ratelimit.Middleware(tb, subscriber.RateLimitKey),
	}))
	t.Cleanup(srv.Close)
	e := &env{srv: srv}
	first, second := uuid.New(), uuid.New()

	resp, _ := e.do(t, http.MethodGet, "/upgrades", &first, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, raw := e.do(t, http.MethodGet, "/upgrades", &first, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "too_many_requests", decodeEnvelope(t, raw).Error.Code)

	resp, _ = e.do(t, http.MethodGet, "/upgrades", &second, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "buckets are per subscriber")

	resp, _ = e.do(t, http.MethodGet, "/plans", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "public routes are not throttled")
}

func TestEntitlementsAndUsage(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	id := uuid.New()

	resp, raw := e.do(t, http.MethodGet, "/entitlements/qr_chamada", &id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res gate.Result
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, raw).Data, &res))
	assert.False(t, res.Decision.Allowed)
	assert.Equal(t, entitlement.SlugFree, res.Plan)
	assert.Equal(t, []entitlement.Slug{entitlement.SlugPro}, slugs(res.Upgrades))

	resp, raw = e.do(t, http.MethodGet, "/entitlements/workspaces", &id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, raw).Data, &res))
	assert.True(t, res.Decision.Allowed)
	assert.Equal(t, entitlement.Quota(1), res.Decision.Limit)

	resp, raw = e.do(t, http.MethodGet, "/usage", &id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ov gate.Overview
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, raw).Data, &ov))
	assert.Equal(t, entitlement.SlugFree, ov.Plan.Slug)
	assert.Len(t, ov.Features, len(entitlement.Features()))
	assert.Equal(t, []entitlement.Slug{entitlement.SlugStarter, entitlement.SlugPro}, slugs(ov.Upgrades))

	resp, raw = e.do(t, http.MethodGet, "/upgrades?feature=suporte", &id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var up struct {
		Plans []entitlement.Plan `json:"plans"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, raw).Data, &up))
	assert.Equal(t, []entitlement.Slug{entitlement.SlugStarter, entitlement.SlugPro}, slugs(up.Plans))
}

func TestRecordUsage(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	id := uuid.New()

	record := func(feature, body string) (int, envelope) {
		resp, raw := e.do(t, http.MethodPost, "/usage/"+feature, &id, body)
		return resp.StatusCode, decodeEnvelope(t, raw)
	}

	status, env := record("workspaces", `{"delta":1}`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"feature":"workspaces","used":1}`, string(env.Data))

	status, env = record("workspaces", `{"delta":1}`)
	assert.Equal(t, http.StatusPaymentRequired, status)
	assert.Equal(t, "feature_not_available", env.Error.Code)
	var meta struct {
		Check gate.Result `json:"check"`
	}
	require.NoError(t, json.Unmarshal(env.Meta, &meta))
	require.NotNil(t, meta.Check.Used)
	assert.Equal(t, int64(1), *meta.Check.Used)
	assert.Equal(t, []entitlement.Slug{entitlement.SlugStarter, entitlement.SlugPro}, slugs(meta.Check.Upgrades))

	status, env = record("workspaces", `{"delta":-1}`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"feature":"workspaces","used":0}`, string(env.Data))

	status, _ = record("workspaces", `{"delta":2}`)
	assert.Equal(t, http.StatusPaymentRequired, status, "a batch past the quota is refused whole")

	status, env = record("provas_mes", `{"delta":3}`)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"feature":"provas_mes","used":3}`, string(env.Data))

	resp, raw := e.do(t, http.MethodGet, "/entitlements/provas_mes", &id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res gate.Result
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, raw).Data, &res))
	assert.False(t, res.Decision.Allowed)

	status, env = record("workspaces", `{"delta":0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, env.Error.Details, "delta")

	status, env = record("qr_chamada", `{"delta":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, env.Error.Details, "feature")
}

func TestCheckout(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	id := uuid.New()

	resp, raw := e.do(t, http.MethodPost, "/checkout", &id, `{"plan_id":"plan_pro","email":"prof@escola.com.br","success_url":"https://app.example.com/ok"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	var link subscription.CheckoutLink
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, raw).Data, &link))
	assert.Equal(t, "https://pay.example.com/pri_pro", link.URL)

	require.Len(t, e.provider.checkouts, 1)
	assert.Equal(t, id.String(), e.provider.checkouts[0].SubscriberID)
	assert.Equal(t, "prof@escola.com.br", e.provider.checkouts[0].Email)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"missing plan", `{"email":"x"}`, http.StatusUnprocessableEntity, "validation_error"},
		{"free plan", `{"plan_id":"plan_free"}`, http.StatusUnprocessableEntity, "plan_not_purchasable"},
		{"unknown plan", `{"plan_id":"plan_gold"}`, http.StatusNotFound, "plan_not_found"},
		{"bad json", `{"plan_id":`, http.StatusBadRequest, "bad_request"},
		{"unknown field", `{"plan":"plan_pro"}`, http.StatusBadRequest, "bad_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp, raw := e.do(t, http.MethodPost, "/checkout", &id, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, decodeEnvelope(t, raw).Error.Code)
		})
	}
}

func webhookBody(t *testing.T, ev subscription.WebhookEvent) string {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return string(b)
}

func TestWebhookUpgradeFlow(t *testing.T) {
	t.Parallel()
	e := newEnv(t)
	id := uuid.New()

	resp, _ := e.do(t, http.MethodPost, "/attendance/qr", &id, `{"session_id":"turma-7a"}`)
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/portal", &id, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	created := webhookBody(t, subscription.WebhookEvent{
		ID:             "evt_1",
		Type:           subscription.EventSubscriptionCreated,
		OccurredAt:     time.Now().Add(-time.Minute),
		SubscriptionID: "sub_1",
		CustomerID:     "ctm_1",
		SubscriberID:   id.String(),
		Status:         subscription.StatusActive,
		PriceRef:       "pri_pro",
	})

	resp, raw := e.do(t, http.MethodPost, "/webhooks/paddle", nil, created, billing.PaddleSignatureHeader, "forged")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_signature", decodeEnvelope(t, raw).Error.Code)

	resp, raw = e.do(t, http.MethodPost, "/webhooks/paddle", nil, created, billing.PaddleSignatureHeader, validSignature)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = e.do(t, http.MethodGet, "/entitlements/qr_chamada", &id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res gate.Result
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, raw).Data, &res))
	assert.True(t, res.Decision.Allowed, "webhook must invalidate the cached plan")
	assert.Equal(t, entitlement.SlugPro, res.Plan)

	resp, raw = e.do(t, http.MethodPost, "/attendance/qr", &id, `{"session_id":"turma-7a","size":128}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())

	resp, raw = e.do(t, http.MethodPost, "/attendance/qr", &id, `{"session_id":"turma-7a","size":10}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, decodeEnvelope(t, raw).Error.Details, "size")

	resp, raw = e.do(t, http.MethodGet, "/portal", &id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var portal subscription.PortalLink
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, raw).Data, &portal))
	assert.Equal(t, "https://portal.example.com/ctm_1", portal.URL)

	resp, raw = e.do(t, http.MethodGet, "/subscriptions", &id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var history []subscription.Subscription
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, raw).Data, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "plan_pro", history[0].PlanID)

	resp, _ = e.do(t, http.MethodPost, "/checkout", &id, `{"plan_id":"plan_pro"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	unknownPrice := webhookBody(t, subscription.WebhookEvent{
		Type:           subscription.EventSubscriptionCreated,
		SubscriptionID: "sub_2",
		SubscriberID:   uuid.NewString(),
		PriceRef:       "pri_missing",
	})
	resp, _ = e.do(t, http.MethodPost, "/webhooks/paddle", nil, unknownPrice, billing.PaddleSignatureHeader, validSignature)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestBillingNotConfigured(t *testing.T) {
	t.Parallel()
	c := catalog(t)
	catalogFn := func() *entitlement.Catalog { return c }
	store := subscription.NewMemoryStore()
	resolver := subscription.NewResolver(catalogFn, store)

	srv := httptest.NewServer(billing.Router(billing.RouterOptions{
		Catalog:       catalogFn,
		Gate:          gate.New(resolver, catalogFn),
		Subscriptions: subscription.NewService(store, nil, catalogFn),
	}))
	t.Cleanup(srv.Close)
	e := &env{srv: srv}
	id := uuid.New()

	resp, raw := e.do(t, http.MethodPost, "/checkout", &id, `{"plan_id":"plan_pro"}`)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
	assert.Equal(t, "billing_not_configured", decodeEnvelope(t, raw).Error.Code)

	resp, _ = e.do(t, http.MethodPost, "/webhooks/paddle", nil, `{}`)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/usage/workspaces", &id, `{"delta":1}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "usage recording is off without a tracker")
}
