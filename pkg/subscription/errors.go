package subscription

import "errors"

var (
	ErrSubscriptionNotFound      = errors.New("subscription.errors.not_found")
	ErrSubscriptionAlreadyExists = errors.New("subscription.errors.already_exists")
	ErrInvalidSubscription       = errors.New("subscription.errors.invalid")
	ErrInvalidTransition         = errors.New("subscription.errors.invalid_status_transition")
	ErrPlanNotPurchasable        = errors.New("subscription.errors.plan_not_purchasable")
	ErrAlreadyOnPlan             = errors.New("subscription.errors.already_on_plan")
	ErrUnknownPriceRef           = errors.New("subscription.errors.unknown_price_ref")
	ErrInvalidSubscriberID       = errors.New("subscription.errors.invalid_subscriber_id")
	ErrProviderError             = errors.New("subscription.errors.provider")
	ErrProviderNotConfigured     = errors.New("subscription.errors.provider_not_configured")

	// Provider-specific errors
	ErrMissingAPIKey              = errors.New("subscription.errors.missing_api_key")
	ErrMissingWebhookSecret       = errors.New("subscription.errors.missing_webhook_secret")
	ErrInvalidProviderEnvironment = errors.New("subscription.errors.invalid_provider_environment")
	ErrWebhookVerificationFailed  = errors.New("subscription.errors.webhook_verification_failed")
	ErrInvalidWebhookPayload      = errors.New("subscription.errors.invalid_webhook_payload")
	ErrNoCheckoutURL              = errors.New("subscription.errors.no_checkout_url")
	ErrNoPortalURL                = errors.New("subscription.errors.no_portal_url")
	ErrMissingProviderCustomerID  = errors.New("subscription.errors.missing_provider_customer_id")
	ErrMissingPriceRef            = errors.New("subscription.errors.missing_price_ref")
)
