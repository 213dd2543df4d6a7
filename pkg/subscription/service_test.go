package subscription_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/planguard/pkg/entitlement"
	"github.com/dmitrymomot/planguard/pkg/subscription"
)

func TestService_CreateCheckoutLink(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	catalog := testCatalog(t)

	t.Run("paid plan", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		provider := &mockProvider{}
		want := &subscription.CheckoutLink{URL: "https://pay.example/txn_1", SessionID: "txn_1"}
		provider.On("CreateCheckoutLink", mock.Anything, subscription.CheckoutRequest{
			PriceRef:     "pri_pro",
			SubscriberID: id.String(),
			Email:        "ana@example.com",
			SuccessURL:   "https://app.example/ok",
		}).Return(want, nil).Once()

		svc := subscription.NewService(subscription.NewMemoryStore(), provider, catalogFunc(catalog))
		link, err := svc.CreateCheckoutLink(ctx, id, "plan_pro", subscription.CheckoutOptions{
			Email:      "ana@example.com",
			SuccessURL: "https://app.example/ok",
		})
		require.NoError(t, err)
		assert.Equal(t, want, link)
		provider.AssertExpectations(t)
	})

	t.Run("rejections", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		store := subscription.NewMemoryStore(*activeSub(id, "plan_starter"))
		svc := subscription.NewService(store, &mockProvider{}, catalogFunc(catalog))

		_, err := svc.CreateCheckoutLink(ctx, id, "plan_free", subscription.CheckoutOptions{})
		assert.ErrorIs(t, err, subscription.ErrPlanNotPurchasable)

		_, err = svc.CreateCheckoutLink(ctx, id, "plan_enterprise", subscription.CheckoutOptions{})
		assert.ErrorIs(t, err, entitlement.ErrPlanNotFound)

		_, err = svc.CreateCheckoutLink(ctx, id, "plan_starter", subscription.CheckoutOptions{})
		assert.ErrorIs(t, err, subscription.ErrAlreadyOnPlan)

		_, err = svc.CreateCheckoutLink(ctx, uuid.Nil, "plan_pro", subscription.CheckoutOptions{})
		assert.ErrorIs(t, err, subscription.ErrInvalidSubscriberID)
	})

	t.Run("billing disabled", func(t *testing.T) {
		t.Parallel()
		svc := subscription.NewService(subscription.NewMemoryStore(), nil, catalogFunc(catalog))
		_, err := svc.CreateCheckoutLink(ctx, uuid.New(), "plan_pro", subscription.CheckoutOptions{})
		assert.ErrorIs(t, err, subscription.ErrProviderNotConfigured)
		assert.ErrorIs(t, svc.HandleWebhook(ctx, []byte("{}"), ""), subscription.ErrProviderNotConfigured)
	})
}

type lifecycleFixture struct {
	store    *subscription.MemoryStore
	resolver *subscription.Resolver
	svc      *subscription.Service

	mu      sync.Mutex
	changes []subscription.PlanChange
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	catalog := testCatalog(t)
	f := &lifecycleFixture{store: subscription.NewMemoryStore()}
	f.resolver = subscription.NewResolver(catalogFunc(catalog), f.store,
		subscription.WithCache(subscription.NewLRUCache(100, time.Hour)))
	f.svc = subscription.NewService(f.store, &mockProvider{}, catalogFunc(catalog),
		subscription.WithInvalidator(f.resolver),
		subscription.WithPlanChangeHook(func(_ context.Context, c subscription.PlanChange) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.changes = append(f.changes, c)
		}),
	)
	return f
}

func (f *lifecycleFixture) planChanges() []subscription.PlanChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]subscription.PlanChange(nil), f.changes...)
}

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func created(subscriberID uuid.UUID, priceRef string) *subscription.WebhookEvent {
	return &subscription.WebhookEvent{
		Type:           subscription.EventSubscriptionCreated,
		ProviderEvent:  "subscription.created",
		OccurredAt:     t0,
		SubscriptionID: "sub_01",
		CustomerID:     "ctm_01",
		SubscriberID:   subscriberID.String(),
		Status:         subscription.StatusActive,
		PriceRef:       priceRef,
	}
}

func TestService_ApplyEvent_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newLifecycleFixture(t)
	id := uuid.New()

	// warm the cache with "no subscription"
	require.Equal(t, entitlement.SlugFree, f.resolver.ResolveCurrentPlan(ctx, id).Slug)

	require.NoError(t, f.svc.ApplyEvent(ctx, created(id, "pri_starter")))
	assert.Equal(t, entitlement.SlugStarter, f.resolver.ResolveCurrentPlan(ctx, id).Slug, "cache invalidated on create")

	cur, err := f.svc.Current(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ctm_01", cur.ProviderCustomerID)
	assert.Equal(t, t0, cur.CreatedAt)

	// duplicate delivery does not create a second record
	require.NoError(t, f.svc.ApplyEvent(ctx, created(id, "pri_starter")))
	history, err := f.svc.History(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	// upgrade
	require.NoError(t, f.svc.ApplyEvent(ctx, &subscription.WebhookEvent{
		Type:           subscription.EventSubscriptionUpdated,
		OccurredAt:     t0.Add(time.Hour),
		SubscriptionID: "sub_01",
		Status:         subscription.StatusActive,
		PriceRef:       "pri_pro",
	}))
	assert.Equal(t, entitlement.SlugPro, f.resolver.ResolveCurrentPlan(ctx, id).Slug)

	// payment failure suspends the plan
	require.NoError(t, f.svc.ApplyEvent(ctx, &subscription.WebhookEvent{
		Type:           subscription.EventPaymentFailed,
		OccurredAt:     t0.Add(2 * time.Hour),
		SubscriptionID: "sub_01",
	}))
	assert.Equal(t, entitlement.SlugFree, f.resolver.ResolveCurrentPlan(ctx, id).Slug)

	// payment recovers
	require.NoError(t, f.svc.ApplyEvent(ctx, &subscription.WebhookEvent{
		Type:           subscription.EventPaymentSucceeded,
		OccurredAt:     t0.Add(3 * time.Hour),
		SubscriptionID: "sub_01",
	}))
	assert.Equal(t, entitlement.SlugPro, f.resolver.ResolveCurrentPlan(ctx, id).Slug)

	// cancellation is terminal
	require.NoError(t, f.svc.ApplyEvent(ctx, &subscription.WebhookEvent{
		Type:           subscription.EventSubscriptionCanceled,
		OccurredAt:     t0.Add(4 * time.Hour),
		SubscriptionID: "sub_01",
		Status:         subscription.StatusCanceled,
	}))
	assert.Equal(t, entitlement.SlugFree, f.resolver.ResolveCurrentPlan(ctx, id).Slug)

	require.NoError(t, f.svc.ApplyEvent(ctx, &subscription.WebhookEvent{
		Type:           subscription.EventPaymentSucceeded,
		OccurredAt:     t0.Add(5 * time.Hour),
		SubscriptionID: "sub_01",
	}))
	assert.Equal(t, entitlement.SlugFree, f.resolver.ResolveCurrentPlan(ctx, id).Slug)

	history, err = f.svc.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, subscription.StatusCanceled, history[0].Status)
	require.NotNil(t, history[0].CanceledAt)
	assert.Equal(t, t0.Add(4*time.Hour), *history[0].CanceledAt)

	assert.Equal(t, []subscription.PlanChange{
		{SubscriberID: id, FromPlanID: "", ToPlanID: "plan_starter"},
		{SubscriberID: id, FromPlanID: "plan_starter", ToPlanID: "plan_pro"},
		{SubscriberID: id, FromPlanID: "plan_pro", ToPlanID: ""},
		{SubscriberID: id, FromPlanID: "", ToPlanID: "plan_pro"},
		{SubscriberID: id, FromPlanID: "plan_pro", ToPlanID: ""},
	}, f.planChanges())
}

func TestService_ApplyEvent_Edges(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("stale events are skipped", func(t *testing.T) {
		t.Parallel()
		f := newLifecycleFixture(t)
		id := uuid.New()
		require.NoError(t, f.svc.ApplyEvent(ctx, created(id, "pri_pro")))

		require.NoError(t, f.svc.ApplyEvent(ctx, &subscription.WebhookEvent{
			Type:           subscription.EventPaymentFailed,
			OccurredAt:     t0.Add(-time.Minute),
			SubscriptionID: "sub_01",
		}))
		cur, err := f.svc.Current(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, cur.Status)
	})

	t.Run("scheduled cancellation keeps the plan", func(t *testing.T) {
		t.Parallel()
		f := newLifecycleFixture(t)
		id := uuid.New()
		require.NoError(t, f.svc.ApplyEvent(ctx, created(id, "pri_pro")))

		require.NoError(t, f.svc.ApplyEvent(ctx, &subscription.WebhookEvent{
			Type:              subscription.EventSubscriptionUpdated,
			OccurredAt:        t0.Add(time.Hour),
			SubscriptionID:    "sub_01",
			Status:            subscription.StatusActive,
			CancelAtPeriodEnd: true,
		}))
		cur, err := f.svc.Current(ctx, id)
		require.NoError(t, err)
		assert.True(t, cur.CancelAtPeriodEnd)
		assert.Equal(t, "plan_pro", cur.PlanID)
	})

	t.Run("updated event creates a missing subscription", func(t *testing.T) {
		t.Parallel()
		f := newLifecycleFixture(t)
		id := uuid.New()
		ev := created(id, "pri_starter")
		ev.Type = subscription.EventSubscriptionUpdated
		ev.Status = subscription.StatusTrialing

		require.NoError(t, f.svc.ApplyEvent(ctx, ev))
		cur, err := f.svc.Current(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusTrialing, cur.Status)
	})

	t.Run("unknown price", func(t *testing.T) {
		t.Parallel()
		f := newLifecycleFixture(t)
		err := f.svc.ApplyEvent(ctx, created(uuid.New(), "pri_unknown"))
		assert.ErrorIs(t, err, subscription.ErrUnknownPriceRef)
	})

	t.Run("missing subscriber id", func(t *testing.T) {
		t.Parallel()
		f := newLifecycleFixture(t)
		ev := created(uuid.New(), "pri_pro")
		ev.SubscriberID = "not-a-uuid"
		assert.ErrorIs(t, f.svc.ApplyEvent(ctx, ev), subscription.ErrInvalidSubscriberID)
	})

	t.Run("events for unknown subscriptions are ignored", func(t *testing.T) {
		t.Parallel()
		f := newLifecycleFixture(t)
		assert.NoError(t, f.svc.ApplyEvent(ctx, &subscription.WebhookEvent{
			Type:           subscription.EventPaymentFailed,
			SubscriptionID: "sub_missing",
		}))
		assert.NoError(t, f.svc.ApplyEvent(ctx, &subscription.WebhookEvent{Type: "customer.updated"}))
		assert.Empty(t, f.planChanges())
	})

	t.Run("nil event", func(t *testing.T) {
		t.Parallel()
		f := newLifecycleFixture(t)
		assert.ErrorIs(t, f.svc.ApplyEvent(ctx, nil), subscription.ErrInvalidWebhookPayload)
	})
}

func TestService_HandleWebhook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	catalog := testCatalog(t)
	id := uuid.New()

	provider := &mockProvider{}
	provider.On("ParseWebhook", mock.Anything, []byte("good"), "sig").Return(created(id, "pri_pro"), nil).Once()
	provider.On("ParseWebhook", mock.Anything, []byte("bad"), "sig").Return(nil, subscription.ErrWebhookVerificationFailed).Once()

	invalidator := &mockInvalidator{}
	invalidator.On("Invalidate", mock.Anything, id).Once()

	store := subscription.NewMemoryStore()
	svc := subscription.NewService(store, provider, catalogFunc(catalog), subscription.WithInvalidator(invalidator))

	require.NoError(t, svc.HandleWebhook(ctx, []byte("good"), "sig"))
	err := svc.HandleWebhook(ctx, []byte("bad"), "sig")
	assert.True(t, errors.Is(err, subscription.ErrWebhookVerificationFailed))

	cur, err := store.Current(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "plan_pro", cur.PlanID)
	provider.AssertExpectations(t)
	invalidator.AssertExpectations(t)
}

func TestService_CustomerPortalLink(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	id := uuid.New()
	sub := activeSub(id, "plan_pro")
	sub.ProviderSubID = "sub_01"

	provider := &mockProvider{}
	provider.On("GetCustomerPortalLink", mock.Anything, mock.MatchedBy(func(s *subscription.Subscription) bool {
		return s.ProviderSubID == "sub_01"
	})).Return(&subscription.PortalLink{URL: "https://portal.example"}, nil).Once()

	svc := subscription.NewService(subscription.NewMemoryStore(*sub), provider, catalogFunc(testCatalog(t)))
	link, err := svc.CustomerPortalLink(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example", link.URL)

	_, err = svc.CustomerPortalLink(ctx, uuid.New())
	assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
}
