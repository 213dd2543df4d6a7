package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/planguard/pkg/entitlement"
	"github.com/dmitrymomot/planguard/pkg/logger"
)

// sharedLookupTimeout bounds a shared lookup when no lookup timeout is set.
const sharedLookupTimeout = 10 * time.Second

// Snapshot is the resolved state of one subscriber at one point in time.
type Snapshot struct {
	Plan         entitlement.Plan `json:"plan"`
	Subscription *Subscription    `json:"subscription,omitempty"`
	// FailClosed is set when the catalog behind Plan never loaded.
	FailClosed bool `json:"fail_closed,omitempty"`
}

// Resolver maps a subscriber to exactly one plan. It never fails: every
// lookup problem degrades to the catalog's free plan.
type Resolver struct {
	catalog       func() *entitlement.Catalog
	source        Source
	cache         Cache
	logger        *slog.Logger
	lookupTimeout time.Duration
	group         singleflight.Group
}

type ResolverOption func(*Resolver)

func WithCache(c Cache) ResolverOption {
	return func(r *Resolver) {
		if c != nil {
			r.cache = c
		}
	}
}

func WithResolverLogger(log *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.logger = log
		}
	}
}

// WithLookupTimeout bounds each subscription lookup. Zero falls back to
// sharedLookupTimeout.
func WithLookupTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) { r.lookupTimeout = d }
}

// NewResolver builds a resolver. catalog is called on every resolution so
// catalog refreshes take effect immediately; (*entitlement.Loader).Catalog fits.
func NewResolver(catalog func() *entitlement.Catalog, src Source, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		catalog: catalog,
		source:  src,
		cache:   NoOpCache{},
		logger:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveCurrentPlan returns the plan in effect for the subscriber.
func (r *Resolver) ResolveCurrentPlan(ctx context.Context, subscriberID uuid.UUID) entitlement.Plan {
	return r.Resolve(ctx, subscriberID).Plan
}

// Resolve returns the plan and the subscription granting it.
// With no current subscription, a failed lookup or a plan id the catalog
// does not know, the plan is free.
func (r *Resolver) Resolve(ctx context.Context, subscriberID uuid.UUID) Snapshot {
	c := r.currentCatalog()
	snap := Snapshot{Plan: c.Free(), FailClosed: c.FailClosed()}

	sub := r.lookup(ctx, subscriberID)
	if sub == nil {
		return snap
	}
	snap.Subscription = sub

	plan, ok := c.PlanByID(sub.PlanID)
	if !ok {
		r.logger.WarnContext(ctx, "subscription references unknown plan, using free",
			logger.SubscriberID(subscriberID),
			logger.SubscriptionID(sub.ID),
			logger.PlanID(sub.PlanID),
		)
		return snap
	}
	snap.Plan = plan
	return snap
}

// Invalidate drops the cached entry of a subscriber.
func (r *Resolver) Invalidate(ctx context.Context, subscriberID uuid.UUID) {
	r.cache.Delete(ctx, subscriberID)
}

func (r *Resolver) currentCatalog() *entitlement.Catalog {
	if r.catalog != nil {
		if c := r.catalog(); c != nil {
			return c
		}
	}
	return entitlement.FailClosedCatalog(entitlement.DefaultFreePlan())
}

func (r *Resolver) lookup(ctx context.Context, subscriberID uuid.UUID) *Subscription {
	if subscriberID == uuid.Nil || r.source == nil {
		return nil
	}
	if e, ok := r.cache.Get(ctx, subscriberID); ok {
		return e.Subscription
	}

	// Concurrent callers share one fetch. It runs detached from the caller
	// that started it, so one cancelled request cannot fail the others.
	ch := r.group.DoChan(subscriberID.String(), func() (any, error) {
		return r.fetch(context.WithoutCancel(ctx), subscriberID), nil
	})

	var sub *Subscription
	select {
	case res := <-ch:
		sub, _ = res.Val.(*Subscription)
	case <-ctx.Done():
		return nil
	}
	if sub == nil {
		return nil
	}
	out := *sub
	return &out
}

func (r *Resolver) fetch(ctx context.Context, subscriberID uuid.UUID) *Subscription {
	timeout := r.lookupTimeout
	if timeout <= 0 {
		timeout = sharedLookupTimeout
	}
	lookupCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sub, err := r.source.Current(lookupCtx, subscriberID)
	switch {
	case errors.Is(err, ErrSubscriptionNotFound):
		r.cache.Set(ctx, subscriberID, Entry{})
		return nil
	case err != nil:
		r.logger.ErrorContext(ctx, "subscription lookup failed, using free plan",
			logger.SubscriberID(subscriberID),
			logger.Error(err),
		)
		return nil
	case !sub.IsCurrent():
		r.cache.Set(ctx, subscriberID, Entry{})
		return nil
	}

	r.cache.Set(ctx, subscriberID, Entry{Subscription: sub})
	return sub
}
