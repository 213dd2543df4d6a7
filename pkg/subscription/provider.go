package subscription

import (
	"context"
	"time"
)

// BillingProvider is the payment provider surface: hosted checkout, the
// customer portal and signed webhooks. Payment details never reach this
// service.
type BillingProvider interface {
	// CreateCheckoutLink creates a hosted checkout session for one price.
	CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error)

	// GetCustomerPortalLink returns a temporary link where the subscriber can
	// update payment methods or cancel.
	GetCustomerPortalLink(ctx context.Context, sub *Subscription) (*PortalLink, error)

	// ParseWebhook verifies the signature and normalizes the payload.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

// CheckoutRequest contains data needed to create a checkout session.
type CheckoutRequest struct {
	PriceRef     string
	SubscriberID string
	Email        string // optional, pre-fills the billing form
	SuccessURL   string
	CancelURL    string
}

// CheckoutLink is a hosted checkout session.
type CheckoutLink struct {
	URL       string    `json:"url"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PortalLink is a pre-authenticated customer portal session.
type PortalLink struct {
	URL              string    `json:"url"`
	CancelURL        string    `json:"cancel_url,omitempty"`
	UpdatePaymentURL string    `json:"update_payment_url,omitempty"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// WebhookEvent is a provider event normalized for the lifecycle service.
type WebhookEvent struct {
	ID                string
	Type              EventType
	ProviderEvent     string
	OccurredAt        time.Time
	SubscriptionID    string // provider subscription id
	CustomerID        string // provider customer id
	SubscriberID      string // our subscriber id, from custom data
	Status            Status // empty when the event carries no subscription status
	PriceRef          string
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	CancelAtPeriodEnd bool
}

// EventType is the normalized billing event type.
type EventType string

const (
	EventSubscriptionCreated  EventType = "subscription_created"
	EventSubscriptionUpdated  EventType = "subscription_updated"
	EventSubscriptionCanceled EventType = "subscription_canceled"
	EventSubscriptionResumed  EventType = "subscription_resumed"

	EventPaymentSucceeded EventType = "payment_succeeded"
	EventPaymentFailed    EventType = "payment_failed"
)
