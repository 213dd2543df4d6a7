// Package billing exposes plans, entitlement checks, usage and the
// subscription lifecycle over HTTP.
//
//	r := chi.NewRouter()
//	r.Mount("/billing", billing.Router(billing.RouterOptions{
//		Catalog:       loader.Catalog,
//		Gate:          gateSvc,
//		Subscriptions: subSvc,
//		Identify:      subscriber.NewHeaderResolver(subscriber.DefaultHeader),
//	}))
//
// Routes:
//
//	GET  /plans                   active plans, public
//	POST /webhooks/paddle         provider webhooks, public, signature checked
//	GET  /entitlements/{feature}  decide one feature
//	GET  /usage                   every feature with usage and limits
//	GET  /upgrades?feature=       plans above the current one
//	GET  /subscriptions           subscription history
//	POST /checkout                hosted checkout link for a plan
//	GET  /portal                  customer portal link
//	POST /usage/{feature}         record consumption of a quota, 402 past the limit
//	POST /attendance/qr           QR code for a class session, needs qr_chamada
package billing

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/planguard/pkg/entitlement"
	"github.com/dmitrymomot/planguard/pkg/logger"
	"github.com/dmitrymomot/planguard/pkg/subscription"
	"github.com/dmitrymomot/planguard/svc/gate"
	"github.com/dmitrymomot/planguard/svc/subscriber"
)

// Gate is satisfied by *gate.Service.
type Gate interface {
	Check(ctx context.Context, subscriberID uuid.UUID, feature string) (gate.Result, error)
	Upgrades(ctx context.Context, subscriberID uuid.UUID, feature string) []entitlement.Plan
	Overview(ctx context.Context, subscriberID uuid.UUID) (gate.Overview, error)
	RequireFeature(feature string, opts ...gate.MiddlewareOption) func(http.Handler) http.Handler
}

// Subscriptions is satisfied by *subscription.Service.
type Subscriptions interface {
	History(ctx context.Context, subscriberID uuid.UUID) ([]subscription.Subscription, error)
	CreateCheckoutLink(ctx context.Context, subscriberID uuid.UUID, planID string, opts subscription.CheckoutOptions) (*subscription.CheckoutLink, error)
	CustomerPortalLink(ctx context.Context, subscriberID uuid.UUID) (*subscription.PortalLink, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

// Usage is satisfied by *usage.Tracker.
type Usage interface {
	Record(ctx context.Context, subscriberID uuid.UUID, feature string, delta int64) (int64, error)
}

// RouterOptions configures the billing module. Catalog, Gate and
// Subscriptions are required.
type RouterOptions struct {
	Catalog       func() *entitlement.Catalog
	Gate          Gate
	Subscriptions Subscriptions

	// Usage enables POST /usage/{feature}. Optional.
	Usage Usage

	// Identify extracts the subscriber id. Defaults to the X-Subscriber-ID header.
	Identify subscriber.Resolver

	// AttendanceBaseURL is encoded, with the session id appended, into
	// attendance QR codes.
	AttendanceBaseURL string

	// Throttle runs after identification on every subscriber route, so it
	// can key on the subscriber id. Optional.
	Throttle func(http.Handler) http.Handler

	// MaxWebhookBytes caps webhook bodies. Defaults to 1 MiB.
	MaxWebhookBytes int64

	Logger *slog.Logger
}

type module struct {
	RouterOptions
	log *slog.Logger
}

// Router creates the billing router.
func Router(opts RouterOptions) chi.Router {
	if opts.Identify == nil {
		opts.Identify = subscriber.NewHeaderResolver(subscriber.DefaultHeader)
	}
	if opts.MaxWebhookBytes <= 0 {
		opts.MaxWebhookBytes = 1 << 20
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	m := &module{RouterOptions: opts, log: opts.Logger.With(logger.Component("billing"))}

	r := chi.NewRouter()
	r.Get("/plans", m.listPlans())
	r.Post("/webhooks/paddle", m.paddleWebhook())

	r.Group(func(r chi.Router) {
		r.Use(subscriber.Middleware(opts.Identify, subscriber.WithErrorHandler(m.identifyFailed)))
		if opts.Throttle != nil {
			r.Use(opts.Throttle)
		}

		r.Get("/entitlements/{feature}", m.checkFeature())
		r.Get("/usage", m.usage())
		r.Get("/upgrades", m.upgrades())
		r.Get("/subscriptions", m.history())
		r.Post("/checkout", m.checkout())
		r.Get("/portal", m.portal())
		if opts.Usage != nil {
			r.Post("/usage/{feature}", m.recordUsage())
		}

		r.With(opts.Gate.RequireFeature(entitlement.FeatureQRAttendance)).
			Post("/attendance/qr", m.attendanceQR())
	})

	return r
}
