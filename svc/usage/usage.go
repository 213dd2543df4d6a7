// Package usage records how much of each quota feature a subscriber has
// consumed and exposes the numbers as entitlement counters.
//
// provas_mes is counted per calendar month in UTC. Every other quota is a
// running total that the host application moves up and down as resources
// are created and removed.
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/planguard/pkg/entitlement"
	"github.com/dmitrymomot/planguard/pkg/logger"
)

var (
	ErrUnknownFeature = errors.New("usage.errors.unknown_feature")
	ErrInvalidDelta   = errors.New("usage.errors.invalid_delta")
	ErrStoreFailed    = errors.New("usage.errors.store_failed")
)

// TotalPeriod is the window of quotas that never reset.
const TotalPeriod = "total"

// Store keeps counters keyed by subscriber, feature and period. Add never
// lets a counter drop below zero and returns the new value.
type Store interface {
	Get(ctx context.Context, subscriberID uuid.UUID, feature, period string) (int64, error)
	Add(ctx context.Context, subscriberID uuid.UUID, feature, period string, delta int64) (int64, error)
}

// Period returns the counting window of feature at now.
func Period(feature string, now time.Time) string {
	if feature == entitlement.FeatureExamsPerMonth {
		return now.UTC().Format("2006-01")
	}
	return TotalPeriod
}

type Tracker struct {
	store    Store
	now      func() time.Time
	logger   *slog.Logger
	features []string
}

type Option func(*Tracker)

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

func New(store Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:    store,
		now:      time.Now,
		logger:   logger.Discard(),
		features: entitlement.QuotaFeatures(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Count returns the current window's consumption of feature.
func (t *Tracker) Count(ctx context.Context, subscriberID uuid.UUID, feature string) (int64, error) {
	if !slices.Contains(t.features, feature) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
	n, err := t.store.Get(ctx, subscriberID, feature, Period(feature, t.now()))
	if err != nil {
		return 0, errors.Join(ErrStoreFailed, err)
	}
	return n, nil
}

// Record moves the counter of feature by delta and returns the new value.
func (t *Tracker) Record(ctx context.Context, subscriberID uuid.UUID, feature string, delta int64) (int64, error) {
	if !slices.Contains(t.features, feature) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
	if delta == 0 {
		return 0, ErrInvalidDelta
	}

	period := Period(feature, t.now())
	n, err := t.store.Add(ctx, subscriberID, feature, period, delta)
	if err != nil {
		return 0, errors.Join(ErrStoreFailed, err)
	}

	t.logger.DebugContext(ctx, "usage recorded",
		logger.SubscriberID(subscriberID),
		logger.Feature(feature),
		slog.String("period", period),
		slog.Int64("delta", delta),
		slog.Int64("used", n),
	)
	return n, nil
}

// Counters registers a counter for every quota feature.
func (t *Tracker) Counters() entitlement.CounterRegistry {
	r := entitlement.NewRegistry()
	for _, feature := range t.features {
		r.Register(feature, func(ctx context.Context, subscriberID uuid.UUID) (int64, error) {
			return t.Count(ctx, subscriberID, feature)
		})
	}
	return r
}
