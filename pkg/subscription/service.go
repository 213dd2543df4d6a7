package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/planguard/pkg/entitlement"
	"github.com/dmitrymomot/planguard/pkg/logger"
)

// CheckoutOptions contains options for creating a checkout session.
type CheckoutOptions struct {
	Email      string // Pre-fill billing email if known
	SuccessURL string // Redirect after successful payment
	CancelURL  string // Redirect if customer cancels
}

// PlanChange describes a change of the plan a subscriber is entitled to.
// An empty plan id means the subscriber has no current subscription.
type PlanChange struct {
	SubscriberID uuid.UUID
	FromPlanID   string
	ToPlanID     string
}

// Invalidator drops cached resolutions; *Resolver satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context, subscriberID uuid.UUID)
}

// Service runs the subscription lifecycle: checkout for an upgrade, provider
// webhooks, and keeping the resolver cache in step with the store.
type Service struct {
	store       Store
	provider    BillingProvider
	catalog     func() *entitlement.Catalog
	invalidator Invalidator
	onChange    []func(context.Context, PlanChange)
	logger      *slog.Logger
	now         func() time.Time
}

type ServiceOption func(*Service)

func WithInvalidator(inv Invalidator) ServiceOption {
	return func(s *Service) { s.invalidator = inv }
}

// WithPlanChangeHook registers fn to run after a webhook changed the
// subscriber's effective plan.
func WithPlanChangeHook(fn func(context.Context, PlanChange)) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.onChange = append(s.onChange, fn)
		}
	}
}

func WithServiceLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the lifecycle service. provider may be nil when billing
// is not configured; checkout and webhooks then fail with
// ErrProviderNotConfigured.
func NewService(store Store, provider BillingProvider, catalog func() *entitlement.Catalog, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		provider: provider,
		catalog:  catalog,
		logger:   logger.Discard(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the subscriber's current subscription.
func (s *Service) Current(ctx context.Context, subscriberID uuid.UUID) (*Subscription, error) {
	return s.store.Current(ctx, subscriberID)
}

// History lists every subscription of the subscriber, newest first.
func (s *Service) History(ctx context.Context, subscriberID uuid.UUID) ([]Subscription, error) {
	return s.store.History(ctx, subscriberID)
}

// CreateCheckoutLink starts a hosted checkout for planID. Only active paid
// plans with a price reference can be bought, and never the plan the
// subscriber already has.
func (s *Service) CreateCheckoutLink(ctx context.Context, subscriberID uuid.UUID, planID string, opts CheckoutOptions) (*CheckoutLink, error) {
	if s.provider == nil {
		return nil, ErrProviderNotConfigured
	}
	if subscriberID == uuid.Nil {
		return nil, ErrInvalidSubscriberID
	}

	plan, ok := s.catalog().PlanByID(planID)
	if !ok {
		return nil, entitlement.ErrPlanNotFound
	}
	if !plan.IsActive || !entitlement.IsPaidPlan(&plan) || plan.PriceRef == "" {
		return nil, ErrPlanNotPurchasable
	}

	current, err := s.store.Current(ctx, subscriberID)
	switch {
	case err == nil && current.PlanID == plan.ID:
		return nil, ErrAlreadyOnPlan
	case err != nil && !errors.Is(err, ErrSubscriptionNotFound):
		return nil, fmt.Errorf("load current subscription: %w", err)
	}

	link, err := s.provider.CreateCheckoutLink(ctx, CheckoutRequest{
		PriceRef:     plan.PriceRef,
		SubscriberID: subscriberID.String(),
		Email:        opts.Email,
		SuccessURL:   opts.SuccessURL,
		CancelURL:    opts.CancelURL,
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "checkout link created",
		logger.SubscriberID(subscriberID),
		logger.PlanID(plan.ID),
	)
	return link, nil
}

// CustomerPortalLink returns the provider portal for the current subscription.
func (s *Service) CustomerPortalLink(ctx context.Context, subscriberID uuid.UUID) (*PortalLink, error) {
	if s.provider == nil {
		return nil, ErrProviderNotConfigured
	}
	sub, err := s.store.Current(ctx, subscriberID)
	if err != nil {
		return nil, err
	}
	return s.provider.GetCustomerPortalLink(ctx, sub)
}

// HandleWebhook verifies and applies a provider webhook.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.provider == nil {
		return ErrProviderNotConfigured
	}
	event, err := s.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		return err
	}
	return s.ApplyEvent(ctx, event)
}

// ApplyEvent applies a normalized provider event. Events may arrive more than
// once and out of order: duplicates are absorbed, events older than the
// stored record and moves out of the terminal canceled state are skipped.
func (s *Service) ApplyEvent(ctx context.Context, event *WebhookEvent) error {
	if event == nil {
		return ErrInvalidWebhookPayload
	}
	log := s.logger.With(logger.EventType(event.ProviderEvent), logger.SubscriptionID(event.SubscriptionID))

	switch event.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionResumed:
		return s.upsert(ctx, log, event)
	case EventSubscriptionCanceled:
		return s.transition(ctx, log, event, EventCancel)
	case EventPaymentFailed:
		return s.transition(ctx, log, event, EventMarkPastDue)
	case EventPaymentSucceeded:
		return s.transition(ctx, log, event, EventActivate)
	default:
		log.DebugContext(ctx, "ignoring webhook event")
		return nil
	}
}

func (s *Service) upsert(ctx context.Context, log *slog.Logger, event *WebhookEvent) error {
	if event.SubscriptionID == "" {
		log.DebugContext(ctx, "event without subscription, ignoring")
		return nil
	}

	existing, err := s.store.GetByProviderID(ctx, event.SubscriptionID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		err = s.create(ctx, log, event)
		if !errors.Is(err, ErrSubscriptionAlreadyExists) {
			return err
		}
		// a concurrent delivery created it first
		existing, err = s.store.GetByProviderID(ctx, event.SubscriptionID)
	}
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}
	if s.stale(existing, event) {
		log.InfoContext(ctx, "skipping stale webhook event")
		return nil
	}

	updated := *existing
	if event.PriceRef != "" {
		plan, ok := s.catalog().PlanByPriceRef(event.PriceRef)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownPriceRef, event.PriceRef)
		}
		updated.PlanID = plan.ID
	}
	if ev, ok := EventFor(event.Status); ok {
		if err := s.advance(ctx, &updated, event, ev); err != nil {
			log.WarnContext(ctx, "ignoring status change", logger.Error(err))
			return nil
		}
	}
	if event.PeriodStart != nil {
		updated.CurrentPeriodStart = event.PeriodStart
	}
	if event.PeriodEnd != nil {
		updated.CurrentPeriodEnd = event.PeriodEnd
	}
	if event.CustomerID != "" {
		updated.ProviderCustomerID = event.CustomerID
	}
	if event.Type != EventSubscriptionCreated {
		updated.CancelAtPeriodEnd = event.CancelAtPeriodEnd
	}
	updated.UpdatedAt = s.eventTime(event)

	return s.save(ctx, log, existing, &updated)
}

func (s *Service) create(ctx context.Context, log *slog.Logger, event *WebhookEvent) error {
	subscriberID, err := uuid.Parse(event.SubscriberID)
	if err != nil {
		return errors.Join(ErrInvalidSubscriberID, err)
	}
	plan, ok := s.catalog().PlanByPriceRef(event.PriceRef)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPriceRef, event.PriceRef)
	}

	status := event.Status
	if status == "" {
		status = StatusActive
	}
	if status == StatusCanceled {
		log.InfoContext(ctx, "not recording subscription created as canceled")
		return nil
	}

	at := s.eventTime(event)
	sub := &Subscription{
		ID:                 uuid.New(),
		SubscriberID:       subscriberID,
		PlanID:             plan.ID,
		Status:             status,
		CurrentPeriodStart: event.PeriodStart,
		CurrentPeriodEnd:   event.PeriodEnd,
		CancelAtPeriodEnd:  event.CancelAtPeriodEnd,
		ProviderSubID:      event.SubscriptionID,
		ProviderCustomerID: event.CustomerID,
		CreatedAt:          at,
		UpdatedAt:          at,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return err
	}

	log.InfoContext(ctx, "subscription created",
		logger.SubscriberID(subscriberID),
		logger.PlanSlug(plan.Slug),
	)
	s.changed(ctx, subscriberID, "", sub)
	return nil
}

func (s *Service) transition(ctx context.Context, log *slog.Logger, event *WebhookEvent, ev LifecycleEvent) error {
	existing, err := s.store.GetByProviderID(ctx, event.SubscriptionID)
	if errors.Is(err, ErrSubscriptionNotFound) {
		log.DebugContext(ctx, "event for unknown subscription, ignoring")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load subscription: %w", err)
	}
	if s.stale(existing, event) {
		log.InfoContext(ctx, "skipping stale webhook event")
		return nil
	}

	updated := *existing
	if err := s.advance(ctx, &updated, event, ev); err != nil {
		log.WarnContext(ctx, "ignoring status change", logger.Error(err))
		return nil
	}
	updated.UpdatedAt = s.eventTime(event)
	return s.save(ctx, log, existing, &updated)
}

func (s *Service) advance(ctx context.Context, sub *Subscription, event *WebhookEvent, ev LifecycleEvent) error {
	to, err := Advance(ctx, sub.Status, ev)
	if err != nil {
		return err
	}
	if to == StatusCanceled && sub.CanceledAt == nil {
		at := s.eventTime(event)
		sub.CanceledAt = &at
		sub.CancelAtPeriodEnd = false
	}
	sub.Status = to
	return nil
}

func (s *Service) save(ctx context.Context, log *slog.Logger, before, after *Subscription) error {
	if err := s.store.Update(ctx, after); err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	log.InfoContext(ctx, "subscription updated",
		logger.SubscriberID(after.SubscriberID),
		slog.String("status", string(after.Status)),
		logger.PlanID(after.PlanID),
	)
	s.changed(ctx, after.SubscriberID, effectivePlan(before), after)
	return nil
}

func (s *Service) changed(ctx context.Context, subscriberID uuid.UUID, fromPlanID string, after *Subscription) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx, subscriberID)
	}
	to := effectivePlan(after)
	if to == fromPlanID {
		return
	}
	change := PlanChange{SubscriberID: subscriberID, FromPlanID: fromPlanID, ToPlanID: to}
	for _, fn := range s.onChange {
		fn(ctx, change)
	}
}

// stale reports whether event happened before the last change already stored.
func (s *Service) stale(existing *Subscription, event *WebhookEvent) bool {
	return !event.OccurredAt.IsZero() && event.OccurredAt.Before(existing.UpdatedAt)
}

func (s *Service) eventTime(event *WebhookEvent) time.Time {
	if !event.OccurredAt.IsZero() {
		return event.OccurredAt.UTC()
	}
	return s.now().UTC()
}

func effectivePlan(sub *Subscription) string {
	if !sub.IsCurrent() {
		return ""
	}
	return sub.PlanID
}
