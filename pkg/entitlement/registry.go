package entitlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CounterFunc returns the subscriber's current usage of a quota feature.
// Keep it fast: count or aggregate at the repository level.
type CounterFunc func(ctx context.Context, subscriberID uuid.UUID) (int64, error)

// CounterRegistry maps a quota feature key to its counter.
// Not thread-safe: register all counters at startup.
type CounterRegistry map[string]CounterFunc

func NewRegistry() CounterRegistry {
	return make(CounterRegistry)
}

// Register sets or replaces the counter for feature. Panics if fn is nil.
func (r CounterRegistry) Register(feature string, fn CounterFunc) {
	if fn == nil {
		panic(fmt.Sprintf("entitlement: counter for feature %q cannot be nil", feature))
	}
	r[feature] = fn
}

// Count runs the counter registered for feature.
func (r CounterRegistry) Count(ctx context.Context, feature string, subscriberID uuid.UUID) (int64, error) {
	fn, ok := r[feature]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNoCounterRegistered, feature)
	}
	n, err := fn(ctx, subscriberID)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrFailedToCountFeatureUsage, feature, err)
	}
	return n, nil
}
