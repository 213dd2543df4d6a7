// Package webhook delivers signed JSON notifications to an HTTP endpoint.
//
// A Sender is bound to one endpoint and secret. Every delivery carries three
// headers: X-Planguard-Signature ("sha256=" + hex HMAC-SHA256 over
// "<unix timestamp>.<body>"), X-Planguard-Timestamp and X-Planguard-Delivery,
// a UUID shared by all retries of the same payload. Receivers check them
// with Verify.
//
//	s, err := webhook.NewSender(cfg.URL, cfg.Secret,
//		webhook.WithMaxRetries(3),
//		webhook.WithBreaker(5, time.Minute),
//	)
//	err = s.Send(ctx, event)
//
// Temporary failures (network errors, 5xx, 408, 425, 429) are retried with
// exponential backoff. Other 4xx answers fail immediately with
// ErrPermanentFailure. Consecutive failed attempts open a
// sony/gobreaker circuit, after which Send fails fast with ErrCircuitOpen.
package webhook
