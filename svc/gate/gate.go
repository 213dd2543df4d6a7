// Package gate answers "may this subscriber do this?" end to end: it
// resolves the subscriber's plan, asks the usage counters, and lets the
// entitlement engine decide. Callers never judge allow or deny themselves.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/planguard/pkg/entitlement"
	"github.com/dmitrymomot/planguard/pkg/logger"
	"github.com/dmitrymomot/planguard/pkg/subscription"
)

// PlanResolver is satisfied by *subscription.Resolver.
type PlanResolver interface {
	Resolve(ctx context.Context, subscriberID uuid.UUID) subscription.Snapshot
}

// Result is the outcome of one check. Upgrades is filled only on denial and
// lists the plans above the current one that grant the feature.
type Result struct {
	Decision entitlement.Decision `json:"decision"`
	Plan     entitlement.Slug     `json:"plan"`
	Label    string               `json:"label"`
	Used     *int64               `json:"used,omitempty"`
	Upgrades []entitlement.Plan   `json:"upgrades,omitempty"`
}

// Usage is one row of the usage overview.
type Usage struct {
	Feature   string            `json:"feature"`
	Label     string            `json:"label"`
	Used      *int64            `json:"used,omitempty"`
	Limit     entitlement.Value `json:"limit"`
	Unlimited bool              `json:"is_unlimited"`
	Allowed   bool              `json:"allowed"`
}

// Overview is the subscriber's plan with every feature decided.
type Overview struct {
	Plan         entitlement.Plan           `json:"plan"`
	Subscription *subscription.Subscription `json:"subscription,omitempty"`
	Features     []Usage                    `json:"features"`
	Upgrades     []entitlement.Plan         `json:"upgrades"`
}

type Service struct {
	resolver PlanResolver
	catalog  func() *entitlement.Catalog
	counters entitlement.CounterRegistry
	logger   *slog.Logger
	parallel int
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithCounters sets the usage counters for quota features. Quota features
// without a counter are decided as probes: allowed while the quota is positive.
func WithCounters(r entitlement.CounterRegistry) Option {
	return func(s *Service) { s.counters = r }
}

// WithParallelism caps concurrent counter calls in Overview.
func WithParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.parallel = n
		}
	}
}

func New(resolver PlanResolver, catalog func() *entitlement.Catalog, opts ...Option) *Service {
	s := &Service{
		resolver: resolver,
		catalog:  catalog,
		counters: entitlement.NewRegistry(),
		logger:   logger.Discard(),
		parallel: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check decides feature for the subscriber. The only error is a failing
// usage counter; the plan itself always resolves.
func (s *Service) Check(ctx context.Context, subscriberID uuid.UUID, feature string) (Result, error) {
	snap := s.resolver.Resolve(ctx, subscriberID)

	used, err := s.count(ctx, subscriberID, &snap.Plan, feature)
	if err != nil {
		s.logger.ErrorContext(ctx, "usage count failed",
			logger.SubscriberID(subscriberID),
			logger.Feature(feature),
			logger.Error(err),
		)
		return Result{}, err
	}

	res := Result{
		Decision: s.decide(&snap.Plan, feature, used),
		Plan:     snap.Plan.Slug,
		Label:    entitlement.Label(feature),
		Used:     used,
	}
	if !res.Decision.Allowed {
		res.Upgrades = entitlement.UpgradesFor(s.catalog(), &snap.Plan, feature)
		s.logger.DebugContext(ctx, "feature denied",
			logger.SubscriberID(subscriberID),
			logger.PlanSlug(snap.Plan.Slug),
			logger.Feature(feature),
		)
	}
	return res, nil
}

// Upgrades lists the plans the subscriber can move up to. With a feature,
// only plans granting it are returned.
func (s *Service) Upgrades(ctx context.Context, subscriberID uuid.UUID, feature string) []entitlement.Plan {
	plan := s.resolver.Resolve(ctx, subscriberID).Plan
	return entitlement.UpgradesFor(s.catalog(), &plan, feature)
}

// Overview decides every known feature, and any extra keys the plan
// carries, against a single plan snapshot. Counters run concurrently.
func (s *Service) Overview(ctx context.Context, subscriberID uuid.UUID) (Overview, error) {
	snap := s.resolver.Resolve(ctx, subscriberID)
	keys := featureKeys(&snap.Plan)
	rows := make([]Usage, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for i, key := range keys {
		g.Go(func() error {
			used, err := s.count(gctx, subscriberID, &snap.Plan, key)
			if err != nil {
				return err
			}
			d := s.decide(&snap.Plan, key, used)
			rows[i] = Usage{
				Feature:   key,
				Label:     entitlement.Label(key),
				Used:      used,
				Limit:     d.Limit,
				Unlimited: d.Unlimited,
				Allowed:   d.Allowed,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "usage overview failed",
			logger.SubscriberID(subscriberID),
			logger.Error(err),
		)
		return Overview{}, err
	}

	return Overview{
		Plan:         snap.Plan,
		Subscription: snap.Subscription,
		Features:     rows,
		Upgrades:     entitlement.UpgradesFor(s.catalog(), &snap.Plan, ""),
	}, nil
}

// count returns nil when the feature is not a quota on this plan or no
// counter is registered for it.
func (s *Service) count(ctx context.Context, subscriberID uuid.UUID, plan *entitlement.Plan, feature string) (*int64, error) {
	v := entitlement.GetLimit(plan, feature)
	if n, ok := v.AsQuota(); !ok || n == entitlement.Unlimited {
		return nil, nil
	}
	n, err := s.counters.Count(ctx, feature, subscriberID)
	if errors.Is(err, entitlement.ErrNoCounterRegistered) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *Service) decide(plan *entitlement.Plan, feature string, used *int64) entitlement.Decision {
	if used == nil {
		return entitlement.Decide(plan, feature)
	}
	return entitlement.DecideUsage(plan, feature, *used)
}

func featureKeys(plan *entitlement.Plan) []string {
	keys := entitlement.Features()
	var extra []string
	for k := range plan.Features {
		if !slices.Contains(keys, k) {
			extra = append(extra, k)
		}
	}
	slices.Sort(extra)
	return append(keys, extra...)
}
