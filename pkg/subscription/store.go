package subscription

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Source answers the one question the resolver asks.
type Source interface {
	// Current returns the subscriber's newest active or trialing subscription,
	// or ErrSubscriptionNotFound.
	Current(ctx context.Context, subscriberID uuid.UUID) (*Subscription, error)
}

// Store persists subscriptions for the lifecycle service.
type Store interface {
	Source

	// GetByProviderID looks a subscription up by the billing provider's id.
	// Returns ErrSubscriptionNotFound if none exists.
	GetByProviderID(ctx context.Context, providerSubID string) (*Subscription, error)

	// Create inserts a new subscription. Returns ErrSubscriptionAlreadyExists
	// when the id or provider id is taken.
	Create(ctx context.Context, sub *Subscription) error

	// Update overwrites an existing subscription by id.
	Update(ctx context.Context, sub *Subscription) error

	// History lists every subscription of the subscriber, newest first.
	History(ctx context.Context, subscriberID uuid.UUID) ([]Subscription, error)
}

// MemoryStore is an in-process Store, used in tests and single-node setups
// without a database.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]Subscription
}

func NewMemoryStore(subs ...Subscription) *MemoryStore {
	s := &MemoryStore{subs: make(map[uuid.UUID]Subscription, len(subs))}
	for _, sub := range subs {
		s.subs[sub.ID] = sub
	}
	return s
}

func (s *MemoryStore) Current(_ context.Context, subscriberID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var owned []Subscription
	for _, sub := range s.subs {
		if sub.SubscriberID == subscriberID {
			owned = append(owned, sub)
		}
	}
	if cur := CurrentOf(owned); cur != nil {
		return cur, nil
	}
	return nil, ErrSubscriptionNotFound
}

func (s *MemoryStore) GetByProviderID(_ context.Context, providerSubID string) (*Subscription, error) {
	if providerSubID == "" {
		return nil, ErrSubscriptionNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if sub.ProviderSubID == providerSubID {
			return &sub, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

func (s *MemoryStore) Create(_ context.Context, sub *Subscription) error {
	if sub == nil || sub.ID == uuid.Nil {
		return ErrInvalidSubscription
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub.ID]; ok {
		return ErrSubscriptionAlreadyExists
	}
	if sub.ProviderSubID != "" {
		for _, existing := range s.subs {
			if existing.ProviderSubID == sub.ProviderSubID {
				return ErrSubscriptionAlreadyExists
			}
		}
	}
	s.subs[sub.ID] = *sub
	return nil
}

func (s *MemoryStore) Update(_ context.Context, sub *Subscription) error {
	if sub == nil {
		return ErrInvalidSubscription
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	s.subs[sub.ID] = *sub
	return nil
}

func (s *MemoryStore) History(_ context.Context, subscriberID uuid.UUID) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Subscription
	for _, sub := range s.subs {
		if sub.SubscriberID == subscriberID {
			out = append(out, sub)
		}
	}
	sortNewestFirst(out)
	return out, nil
}
