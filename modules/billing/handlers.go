package billing

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/planguard/handler"
	"github.com/dmitrymomot/planguard/pkg/binder"
	"github.com/dmitrymomot/planguard/pkg/entitlement"
	"github.com/dmitrymomot/planguard/pkg/logger"
	"github.com/dmitrymomot/planguard/pkg/qrcode"
	"github.com/dmitrymomot/planguard/pkg/subscription"
	"github.com/dmitrymomot/planguard/pkg/validator"
	"github.com/dmitrymomot/planguard/svc/gate"
	"github.com/dmitrymomot/planguard/svc/subscriber"
)

// PaddleSignatureHeader carries the Paddle webhook signature.
const PaddleSignatureHeader = "Paddle-Signature"

type (
	noRequest struct{}

	featureRequest struct {
		Feature string `path:"feature"`
	}

	upgradesRequest struct {
		Feature string `query:"feature"`
	}

	checkoutRequest struct {
		PlanID     string `json:"plan_id"`
		Email      string `json:"email"`
		SuccessURL string `json:"success_url"`
		CancelURL  string `json:"cancel_url"`
	}

	recordRequest struct {
		Feature string `path:"feature" json:"-"`
		Delta   int    `json:"delta"`
	}

	attendanceRequest struct {
		SessionID string `json:"session_id"`
		Size      int    `json:"size"`
	}
)

type recordResponse struct {
	Feature string `json:"feature"`
	Used    int64  `json:"used"`
}

type plansResponse struct {
	Plans      []entitlement.Plan `json:"plans"`
	FailClosed bool               `json:"fail_closed,omitempty"`
}

// fail logs server-side failures with the original error and renders the
// mapped one.
func (m *module) fail(ctx handler.Context, err error) handler.Response {
	mapped := httpError(err)
	if handler.StatusCode(mapped) >= http.StatusInternalServerError {
		log := m.log.ErrorContext
		if errors.Is(mapped, errBillingDisabled) {
			log = m.log.WarnContext
		}
		log(ctx, "billing request failed",
			slog.String("path", ctx.Request().URL.Path),
			logger.Error(err),
		)
	}
	return handler.JSONError(mapped)
}

func (m *module) identifyFailed(w http.ResponseWriter, r *http.Request, err error) {
	_ = handler.JSONError(httpError(err)).Render(w, r)
}

func (m *module) listPlans() http.HandlerFunc {
	return handler.Wrap(handler.HandlerFunc[noRequest](func(handler.Context, noRequest) handler.Response {
		c := m.Catalog()
		if c == nil {
			c = entitlement.FailClosedCatalog(entitlement.DefaultFreePlan())
		}
		return handler.JSON(plansResponse{Plans: c.ListActivePlans(), FailClosed: c.FailClosed()})
	}))
}

func (m *module) checkFeature() http.HandlerFunc {
	return handler.Wrap(handler.HandlerFunc[featureRequest](func(ctx handler.Context, req featureRequest) handler.Response {
		res, err := m.Gate.Check(ctx, subscriber.MustIDFromContext(ctx), req.Feature)
		if err != nil {
			return m.fail(ctx, err)
		}
		return handler.JSON(res)
	}), handler.WithBinders[featureRequest](binder.Path(chi.URLParam)))
}

func (m *module) usage() http.HandlerFunc {
	return handler.Wrap(handler.HandlerFunc[noRequest](func(ctx handler.Context, _ noRequest) handler.Response {
		ov, err := m.Gate.Overview(ctx, subscriber.MustIDFromContext(ctx))
		if err != nil {
			return m.fail(ctx, err)
		}
		return handler.JSON(ov)
	}))
}

func (m *module) upgrades() http.HandlerFunc {
	return handler.Wrap(handler.HandlerFunc[upgradesRequest](func(ctx handler.Context, req upgradesRequest) handler.Response {
		plans := m.Gate.Upgrades(ctx, subscriber.MustIDFromContext(ctx), req.Feature)
		if plans == nil {
			plans = []entitlement.Plan{}
		}
		return handler.JSON(plansResponse{Plans: plans})
	}), handler.WithBinders[upgradesRequest](binder.BindQuery()))
}

func (m *module) history() http.HandlerFunc {
	return handler.Wrap(handler.HandlerFunc[noRequest](func(ctx handler.Context, _ noRequest) handler.Response {
		subs, err := m.Subscriptions.History(ctx, subscriber.MustIDFromContext(ctx))
		if err != nil {
			return m.fail(ctx, err)
		}
		if subs == nil {
			subs = []subscription.Subscription{}
		}
		return handler.JSON(subs)
	}))
}

func (m *module) checkout() http.HandlerFunc {
	return handler.Wrap(handler.HandlerFunc[checkoutRequest](func(ctx handler.Context, req checkoutRequest) handler.Response {
		if err := validator.Apply(
			validator.RequiredString("plan_id", req.PlanID),
			validator.When(req.Email != "", validator.ValidEmail("email", req.Email)),
			validator.When(req.SuccessURL != "", validator.ValidURL("success_url", req.SuccessURL)),
			validator.When(req.CancelURL != "", validator.ValidURL("cancel_url", req.CancelURL)),
		); err != nil {
			return handler.JSONError(err)
		}

		link, err := m.Subscriptions.CreateCheckoutLink(ctx, subscriber.MustIDFromContext(ctx), req.PlanID, subscription.CheckoutOptions{
			Email:      req.Email,
			SuccessURL: req.SuccessURL,
			CancelURL:  req.CancelURL,
		})
		if err != nil {
			return m.fail(ctx, err)
		}
		return handler.JSON(link, handler.WithJSONStatus(http.StatusCreated))
	}),
		handler.WithBinders[checkoutRequest](binder.BindJSON()),
		handler.WithErrorHandler[checkoutRequest](handler.LoggingErrorHandler(m.log)),
	)
}

func (m *module) portal() http.HandlerFunc {
	return handler.Wrap(handler.HandlerFunc[noRequest](func(ctx handler.Context, _ noRequest) handler.Response {
		link, err := m.Subscriptions.CustomerPortalLink(ctx, subscriber.MustIDFromContext(ctx))
		if err != nil {
			return m.fail(ctx, err)
		}
		return handler.JSON(link)
	}))
}

// paddleWebhook answers 200 once the event is applied or deliberately
// ignored, so the provider stops retrying.
func (m *module) paddleWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := handler.NewContext(w, r)

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, m.MaxWebhookBytes))
		if err != nil {
			_ = handler.JSONError(errors.Join(binder.ErrBodyTooLarge, err)).Render(w, r)
			return
		}

		if err := m.Subscriptions.HandleWebhook(r.Context(), payload, r.Header.Get(PaddleSignatureHeader)); err != nil {
			_ = m.fail(ctx, err).Render(w, r)
			return
		}
		_ = handler.JSON(map[string]bool{"received": true}).Render(w, r)
	}
}

// recordUsage checks increments against the plan before storing them.
// Decrements always pass.
func (m *module) recordUsage() http.HandlerFunc {
	return handler.Wrap(handler.HandlerFunc[recordRequest](func(ctx handler.Context, req recordRequest) handler.Response {
		if err := validator.Apply(
			validator.OneOfString("feature", req.Feature, entitlement.QuotaFeatures()),
			validator.NonZeroInt("delta", req.Delta),
		); err != nil {
			return handler.JSONError(err)
		}

		id := subscriber.MustIDFromContext(ctx)
		delta := int64(req.Delta)
		if delta > 0 {
			res, err := m.Gate.Check(ctx, id, req.Feature)
			if err != nil {
				return m.fail(ctx, err)
			}
			if !fits(res, delta) {
				return handler.JSONError(gate.ErrFeatureNotAvailable, handler.WithJSONMeta(map[string]any{
					"check": res,
				}))
			}
		}

		used, err := m.Usage.Record(ctx, id, req.Feature, delta)
		if err != nil {
			return m.fail(ctx, err)
		}
		return handler.JSON(recordResponse{Feature: req.Feature, Used: used})
	}),
		handler.WithBinders[recordRequest](binder.BindJSON(), binder.Path(chi.URLParam)),
		handler.WithErrorHandler[recordRequest](handler.LoggingErrorHandler(m.log)),
	)
}

// fits reports whether delta more units stay within the decided quota.
func fits(res gate.Result, delta int64) bool {
	if !res.Decision.Allowed {
		return false
	}
	if res.Decision.Unlimited || res.Used == nil {
		return true
	}
	limit, ok := res.Decision.Limit.AsQuota()
	return !ok || *res.Used+delta <= limit
}

func (m *module) attendanceQR() http.HandlerFunc {
	return handler.Wrap(handler.HandlerFunc[attendanceRequest](func(ctx handler.Context, req attendanceRequest) handler.Response {
		if err := validator.Apply(
			validator.RequiredString("session_id", req.SessionID),
			validator.MaxLenString("session_id", req.SessionID, 128),
			validator.When(req.Size != 0, validator.BetweenInt("size", req.Size, qrcode.MinSize, qrcode.MaxSize)),
		); err != nil {
			return handler.JSONError(err)
		}
		if m.AttendanceBaseURL == "" {
			return m.fail(ctx, handler.ErrNotImplemented)
		}

		target, err := url.JoinPath(m.AttendanceBaseURL, "attendance", req.SessionID)
		if err != nil {
			return m.fail(ctx, err)
		}

		opts := []qrcode.Option{qrcode.WithRecoveryLevel(qrcode.RecoveryHigh)}
		if req.Size > 0 {
			opts = append(opts, qrcode.WithSize(req.Size))
		}
		png, err := qrcode.Generate(target, opts...)
		if err != nil {
			return m.fail(ctx, err)
		}
		return handler.PNG(png)
	}), handler.WithBinders[attendanceRequest](binder.BindJSON()))
}
