// Package subscription resolves which plan a subscriber is on and keeps
// subscription records in step with the billing provider.
//
// # Resolution
//
// Resolver maps a subscriber id to exactly one entitlement.Plan. It asks a
// Source for the newest active or trialing subscription and joins its plan
// id against the live catalog. A missing subscription, a failed lookup or a
// plan id the catalog does not know all resolve to the free plan; Resolve
// never returns an error.
//
//	loader := entitlement.NewLoader(subscription.NewPGPlanSource(pool))
//	resolver := subscription.NewResolver(loader.Catalog, subscription.NewPGStore(pool),
//		subscription.WithCache(subscription.NewLRUCache(10_000, time.Minute)),
//		subscription.WithResolverLogger(log),
//	)
//
//	plan := resolver.ResolveCurrentPlan(ctx, subscriberID)
//	d := entitlement.Decide(&plan, entitlement.FeatureQRAttendance)
//
// Lookup results, including "no subscription", are cached through Cache:
// NewLRUCache for a single process, NewKVCache over a shared Redis store, or
// NoOpCache. Errors are never cached. Concurrent misses for one subscriber
// share a single lookup.
//
// # Lifecycle
//
// Service creates hosted checkout links for paid plans and applies provider
// webhooks. Statuses move through a fixed table (see Advance):
//
//	trialing -> active | past_due | canceled
//	active   -> past_due | canceled
//	past_due -> active | canceled
//
// canceled is terminal. Every applied change invalidates the resolver cache
// for the subscriber, and plan changes are reported to WithPlanChangeHook
// callbacks.
//
// # Paddle
//
// PaddleProvider implements BillingProvider on the Paddle Billing SDK.
// The subscriber id is sent as custom data on checkout and read back from
// every webhook:
//
//	provider, err := subscription.NewPaddleProvider(subscription.PaddleConfig{
//		APIKey:        os.Getenv("PADDLE_API_KEY"),
//		WebhookSecret: os.Getenv("PADDLE_WEBHOOK_SECRET"),
//		Environment:   "sandbox",
//	})
//
// # Storage
//
// PGStore and PGPlanSource run on any pg.DBTX (pool, connection or
// transaction). MemoryStore serves tests and setups without a database.
package subscription
