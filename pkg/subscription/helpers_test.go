package subscription_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/planguard/pkg/entitlement"
	"github.com/dmitrymomot/planguard/pkg/subscription"
)

func testCatalog(t *testing.T) *entitlement.Catalog {
	t.Helper()
	c, err := entitlement.NewCatalog([]entitlement.Plan{
		{
			ID: "plan_free", Slug: entitlement.SlugFree, Name: "Free", Currency: "BRL", IsActive: true,
			Features: map[string]entitlement.Value{
				entitlement.FeatureWorkspaces:   entitlement.Quota(1),
				entitlement.FeatureQRAttendance: entitlement.Bool(false),
			},
		},
		{
			ID: "plan_starter", Slug: entitlement.SlugStarter, Name: "Starter", Currency: "BRL",
			PriceMinorUnits: 1990, PriceRef: "pri_starter", IsActive: true,
			Features: map[string]entitlement.Value{
				entitlement.FeatureWorkspaces:   entitlement.Quota(3),
				entitlement.FeatureQRAttendance: entitlement.Bool(false),
			},
		},
		{
			ID: "plan_pro", Slug: entitlement.SlugPro, Name: "Pro", Currency: "BRL",
			PriceMinorUnits: 4990, PriceRef: "pri_pro", IsActive: true,
			Features: map[string]entitlement.Value{
				entitlement.FeatureWorkspaces:   entitlement.Quota(entitlement.Unlimited),
				entitlement.FeatureQRAttendance: entitlement.Bool(true),
			},
		},
	})
	require.NoError(t, err)
	return c
}

func catalogFunc(c *entitlement.Catalog) func() *entitlement.Catalog {
	return func() *entitlement.Catalog { return c }
}

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Current(ctx context.Context, subscriberID uuid.UUID) (*subscription.Subscription, error) {
	args := m.Called(ctx, subscriberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) CreateCheckoutLink(ctx context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutLink, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.CheckoutLink), args.Error(1)
}

func (m *mockProvider) GetCustomerPortalLink(ctx context.Context, sub *subscription.Subscription) (*subscription.PortalLink, error) {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.PortalLink), args.Error(1)
}

func (m *mockProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*subscription.WebhookEvent, error) {
	args := m.Called(ctx, payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.WebhookEvent), args.Error(1)
}

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(ctx context.Context, subscriberID uuid.UUID) {
	m.Called(ctx, subscriberID)
}
