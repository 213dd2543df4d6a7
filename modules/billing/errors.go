package billing

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/planguard/handler"
	"github.com/dmitrymomot/planguard/pkg/entitlement"
	"github.com/dmitrymomot/planguard/pkg/qrcode"
	"github.com/dmitrymomot/planguard/pkg/subscription"
	"github.com/dmitrymomot/planguard/svc/subscriber"
	"github.com/dmitrymomot/planguard/svc/usage"
)

var (
	errPlanNotFound         = handler.NewHTTPError(http.StatusNotFound, "plan_not_found", "Plan not found")
	errPlanNotPurchasable   = handler.NewHTTPError(http.StatusUnprocessableEntity, "plan_not_purchasable", "This plan cannot be purchased")
	errAlreadyOnPlan        = handler.NewHTTPError(http.StatusConflict, "already_on_plan", "You are already on this plan")
	errNoSubscription       = handler.NewHTTPError(http.StatusNotFound, "subscription_not_found", "No active subscription")
	errBillingDisabled      = handler.NewHTTPError(http.StatusNotImplemented, "billing_not_configured", "Billing is not configured")
	errProviderFailed       = handler.NewHTTPError(http.StatusBadGateway, "billing_provider_error", "Billing provider is unavailable")
	errInvalidSignature     = handler.NewHTTPError(http.StatusUnauthorized, "invalid_signature", "Webhook signature verification failed")
	errInvalidPayload       = handler.NewHTTPError(http.StatusBadRequest, "invalid_payload", "Webhook payload is invalid")
	errUnknownPrice         = handler.NewHTTPError(http.StatusUnprocessableEntity, "unknown_price", "Webhook references an unknown price")
	errMissingSubscriber    = handler.NewHTTPError(http.StatusUnauthorized, "subscriber_required", "Subscriber not identified")
	errInvalidSubscriber    = handler.NewHTTPError(http.StatusBadRequest, "invalid_subscriber", "Invalid subscriber id")
	errUnknownQuota         = handler.NewHTTPError(http.StatusUnprocessableEntity, "unknown_quota_feature", "Feature has no usage quota")
	errQRContentUnencodable = handler.NewHTTPError(http.StatusUnprocessableEntity, "qr_unencodable", "Session cannot be encoded as a QR code")
)

// httpError translates domain errors into their HTTP form. Unknown errors
// pass through and render as 500.
func httpError(err error) error {
	switch {
	case errors.Is(err, entitlement.ErrPlanNotFound):
		return errPlanNotFound
	case errors.Is(err, subscription.ErrPlanNotPurchasable):
		return errPlanNotPurchasable
	case errors.Is(err, subscription.ErrAlreadyOnPlan):
		return errAlreadyOnPlan
	case errors.Is(err, subscription.ErrSubscriptionNotFound),
		errors.Is(err, subscription.ErrMissingProviderCustomerID):
		return errNoSubscription
	case errors.Is(err, subscription.ErrProviderNotConfigured):
		return errBillingDisabled
	case errors.Is(err, subscription.ErrWebhookVerificationFailed):
		return errInvalidSignature
	case errors.Is(err, subscription.ErrInvalidWebhookPayload),
		errors.Is(err, subscription.ErrInvalidSubscriberID):
		return errInvalidPayload
	case errors.Is(err, subscription.ErrUnknownPriceRef):
		return errUnknownPrice
	case errors.Is(err, subscription.ErrProviderError),
		errors.Is(err, subscription.ErrNoCheckoutURL),
		errors.Is(err, subscription.ErrNoPortalURL):
		return errProviderFailed
	case errors.Is(err, subscriber.ErrMissingID):
		return errMissingSubscriber
	case errors.Is(err, subscriber.ErrInvalidID):
		return errInvalidSubscriber
	case errors.Is(err, usage.ErrUnknownFeature):
		return errUnknownQuota
	case errors.Is(err, qrcode.ErrFailedToEncode):
		return errQRContentUnencodable
	default:
		return err
	}
}
