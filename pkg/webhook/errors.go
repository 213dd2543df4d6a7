package webhook

import "errors"

var (
	ErrDeliveryFailed       = errors.New("webhook.errors.delivery_failed")
	ErrPermanentFailure     = errors.New("webhook.errors.permanent_failure")
	ErrTemporaryFailure     = errors.New("webhook.errors.temporary_failure")
	ErrCircuitOpen          = errors.New("webhook.errors.circuit_open")
	ErrInvalidURL           = errors.New("webhook.errors.invalid_url")
	ErrInvalidPayload       = errors.New("webhook.errors.invalid_payload")
	ErrMissingSecret        = errors.New("webhook.errors.missing_secret")
	ErrInvalidSignature     = errors.New("webhook.errors.invalid_signature")
	ErrSignatureExpired     = errors.New("webhook.errors.signature_expired")
	ErrMalformedSignature   = errors.New("webhook.errors.malformed_signature")
	ErrSignatureFromFuture  = errors.New("webhook.errors.signature_from_future")
	ErrMissingSignatureData = errors.New("webhook.errors.missing_signature_data")
)
