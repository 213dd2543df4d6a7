package subscription

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status represents the provider-reported state of a subscription.
type Status string

const (
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTrialing, StatusActive, StatusPastDue, StatusCanceled:
		return true
	}
	return false
}

// Subscription binds a subscriber to a plan for a billing period.
// A subscriber may accumulate many records over time; only the newest
// active or trialing one counts.
type Subscription struct {
	ID                 uuid.UUID  `json:"id"`
	SubscriberID       uuid.UUID  `json:"subscriber_id"`
	PlanID             string     `json:"plan_id"`
	Status             Status     `json:"status"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	ProviderSubID      string     `json:"provider_subscription_id,omitempty"`
	ProviderCustomerID string     `json:"provider_customer_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	CanceledAt         *time.Time `json:"canceled_at,omitempty"`
}

// IsCurrent reports whether the subscription grants its plan right now.
// Past-due subscriptions do not.
func (s *Subscription) IsCurrent() bool {
	return s != nil && (s.Status == StatusActive || s.Status == StatusTrialing)
}

// IsCanceled reports whether the subscription reached its terminal state.
func (s *Subscription) IsCanceled() bool {
	return s != nil && s.Status == StatusCanceled
}

// CurrentOf picks the most recently created current subscription from subs.
// Returns nil when none qualifies.
func CurrentOf(subs []Subscription) *Subscription {
	var current *Subscription
	for i := range subs {
		s := &subs[i]
		if !s.IsCurrent() {
			continue
		}
		if current == nil || s.CreatedAt.After(current.CreatedAt) {
			current = s
		}
	}
	if current == nil {
		return nil
	}
	out := *current
	return &out
}

func sortNewestFirst(subs []Subscription) {
	slices.SortStableFunc(subs, func(a, b Subscription) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
