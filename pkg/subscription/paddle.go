package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey        string        `env:"PADDLE_API_KEY"`
	WebhookSecret string        `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string        `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	CheckoutTTL   time.Duration `env:"PADDLE_CHECKOUT_TTL" envDefault:"24h"`
}

// Enabled reports whether credentials are configured.
func (c PaddleConfig) Enabled() bool {
	return c.APIKey != "" && c.WebhookSecret != ""
}

// WebhookVerifier checks the Paddle-Signature header of a webhook request.
// *paddle.WebhookVerifier satisfies it.
type WebhookVerifier interface {
	Verify(req *http.Request) (bool, error)
}

// PaddleProvider implements BillingProvider for Paddle Billing.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier WebhookVerifier
	config   PaddleConfig
	now      func() time.Time
}

type PaddleOption func(*PaddleProvider)

// WithWebhookVerifier replaces the SDK signature verifier.
func WithWebhookVerifier(v WebhookVerifier) PaddleOption {
	return func(p *PaddleProvider) {
		if v != nil {
			p.verifier = v
		}
	}
}

// NewPaddleProvider creates a Paddle billing provider.
func NewPaddleProvider(config PaddleConfig, opts ...PaddleOption) (*PaddleProvider, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(config.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(config.APIKey)
	case "production", "":
		client, err = paddle.New(config.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidProviderEnvironment, config.Environment)
	}
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}

	p := &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(config.WebhookSecret),
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// CreateCheckoutLink creates a Paddle transaction for the price and returns
// its hosted checkout URL. The subscriber id travels in custom data and
// comes back on every webhook.
func (p *PaddleProvider) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	if req.PriceRef == "" {
		return nil, ErrMissingPriceRef
	}
	if req.SubscriberID == "" {
		return nil, ErrInvalidSubscriberID
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceRef,
		Quantity: 1,
	})
	txReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			customDataSubscriberID: req.SubscriberID,
		},
	}
	if req.Email != "" {
		txReq.CustomData["email"] = req.Email
	}
	if req.SuccessURL != "" {
		txReq.Checkout = &paddle.TransactionCheckout{URL: paddle.PtrTo(req.SuccessURL)}
	}

	tx, err := p.client.TransactionsClient.CreateTransaction(ctx, txReq)
	if err != nil {
		return nil, errors.Join(ErrProviderError, fmt.Errorf("create paddle transaction: %w", err))
	}
	if tx.Checkout == nil || tx.Checkout.URL == nil || *tx.Checkout.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutLink{
		URL:       *tx.Checkout.URL,
		SessionID: tx.ID,
		ExpiresAt: p.now().Add(p.config.CheckoutTTL),
	}, nil
}

// GetCustomerPortalLink opens a Paddle customer portal session scoped to the
// subscription.
func (p *PaddleProvider) GetCustomerPortalLink(ctx context.Context, sub *Subscription) (*PortalLink, error) {
	if sub == nil || sub.ProviderSubID == "" {
		return nil, ErrSubscriptionNotFound
	}
	if sub.ProviderCustomerID == "" {
		return nil, ErrMissingProviderCustomerID
	}

	session, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, &paddle.CreateCustomerPortalSessionRequest{
		CustomerID:      sub.ProviderCustomerID,
		SubscriptionIDs: []string{sub.ProviderSubID},
	})
	if err != nil {
		return nil, errors.Join(ErrProviderError, fmt.Errorf("create paddle portal session: %w", err))
	}

	link := &PortalLink{
		URL:       session.URLs.General.Overview,
		ExpiresAt: p.now().Add(24 * time.Hour),
	}
	for _, s := range session.URLs.Subscriptions {
		if s.ID == sub.ProviderSubID {
			link.CancelURL = s.CancelSubscription
			link.UpdatePaymentURL = s.UpdateSubscriptionPaymentMethod
			break
		}
	}
	if link.URL == "" {
		return nil, ErrNoPortalURL
	}
	return link, nil
}

// ParseWebhook verifies the Paddle-Signature header and normalizes the event.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build verification request: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}
	if !valid {
		return nil, ErrWebhookVerificationFailed
	}
	return ParsePaddleEvent(payload)
}

const customDataSubscriberID = "subscriber_id"

type paddleEnvelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt string          `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

type paddleItem struct {
	PriceID string `json:"price_id"`
	Price   *struct {
		ID string `json:"id"`
	} `json:"price"`
}

type paddlePeriod struct {
	StartsAt string `json:"starts_at"`
	EndsAt   string `json:"ends_at"`
}

type paddleEventData struct {
	ID                   string         `json:"id"`
	Status               string         `json:"status"`
	SubscriptionID       string         `json:"subscription_id"`
	CustomerID           string         `json:"customer_id"`
	CustomData           map[string]any `json:"custom_data"`
	Items                []paddleItem   `json:"items"`
	CurrentBillingPeriod *paddlePeriod  `json:"current_billing_period"`
	ScheduledChange      *struct {
		Action string `json:"action"`
	} `json:"scheduled_change"`
}

// ParsePaddleEvent normalizes an already verified Paddle webhook body.
func ParsePaddleEvent(payload []byte) (*WebhookEvent, error) {
	var env paddleEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.Join(ErrInvalidWebhookPayload, err)
	}
	if env.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_type", ErrInvalidWebhookPayload)
	}

	var data paddleEventData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, errors.Join(ErrInvalidWebhookPayload, err)
		}
	}

	event := &WebhookEvent{
		ID:            env.EventID,
		Type:          mapPaddleEventType(env.EventType),
		ProviderEvent: env.EventType,
		OccurredAt:    parsePaddleTime(env.OccurredAt),
		CustomerID:    data.CustomerID,
	}
	if id, ok := data.CustomData[customDataSubscriberID].(string); ok {
		event.SubscriberID = id
	}
	if len(data.Items) > 0 {
		item := data.Items[0]
		event.PriceRef = item.PriceID
		if item.Price != nil && item.Price.ID != "" {
			event.PriceRef = item.Price.ID
		}
	}

	switch {
	case strings.HasPrefix(env.EventType, "subscription."):
		event.SubscriptionID = data.ID
		event.Status = mapPaddleStatus(data.Status)
		if data.CurrentBillingPeriod != nil {
			event.PeriodStart = parsePaddleTimePtr(data.CurrentBillingPeriod.StartsAt)
			event.PeriodEnd = parsePaddleTimePtr(data.CurrentBillingPeriod.EndsAt)
		}
		event.CancelAtPeriodEnd = data.ScheduledChange != nil && data.ScheduledChange.Action == "cancel"
	case strings.HasPrefix(env.EventType, "transaction."):
		event.SubscriptionID = data.SubscriptionID
	}

	return event, nil
}

func mapPaddleEventType(paddleEvent string) EventType {
	switch paddleEvent {
	case "transaction.completed", "subscription.created":
		return EventSubscriptionCreated
	case "subscription.updated":
		return EventSubscriptionUpdated
	case "subscription.canceled":
		return EventSubscriptionCanceled
	case "subscription.resumed":
		return EventSubscriptionResumed
	case "transaction.payment_succeeded":
		return EventPaymentSucceeded
	case "transaction.payment_failed":
		return EventPaymentFailed
	default:
		return EventType(paddleEvent)
	}
}

// mapPaddleStatus folds Paddle's statuses into ours. Paused subscriptions
// grant nothing but can resume, so they count as past due.
func mapPaddleStatus(paddleStatus string) Status {
	switch strings.ToLower(paddleStatus) {
	case "trialing":
		return StatusTrialing
	case "active":
		return StatusActive
	case "past_due", "paused":
		return StatusPastDue
	case "canceled", "cancelled", "expired":
		return StatusCanceled
	default:
		return ""
	}
}

func parsePaddleTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func parsePaddleTimePtr(s string) *time.Time {
	t := parsePaddleTime(s)
	if t.IsZero() {
		return nil
	}
	return &t
}
