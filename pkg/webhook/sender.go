package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/dmitrymomot/planguard/pkg/logger"
)

// Sender delivers signed JSON payloads to one endpoint, retrying temporary
// failures and tripping a circuit breaker when the endpoint keeps failing.
type Sender struct {
	endpoint   string
	secret     string
	client     *http.Client
	backoff    BackoffStrategy
	maxRetries int
	timeout    time.Duration
	userAgent  string
	breaker    *gobreaker.CircuitBreaker[int]
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Sender)

func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) {
		if c != nil {
			s.client = c
		}
	}
}

func WithBackoff(b BackoffStrategy) Option {
	return func(s *Sender) {
		if b != nil {
			s.backoff = b
		}
	}
}

// WithMaxRetries sets retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(s *Sender) {
		s.maxRetries = max(n, 0)
	}
}

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBreaker trips the circuit after maxFailures consecutive failed
// attempts and keeps it open for openTimeout.
func WithBreaker(maxFailures uint32, openTimeout time.Duration) Option {
	return func(s *Sender) {
		s.breaker = newBreaker(s.endpoint, maxFailures, openTimeout)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sender) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(s *Sender) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// NewSender validates the endpoint and returns a Sender for it.
func NewSender(endpoint, secret string, opts ...Option) (*Sender, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Join(ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, endpoint)
	}
	if secret == "" {
		return nil, ErrMissingSecret
	}

	s := &Sender{
		endpoint:   endpoint,
		secret:     secret,
		client:     &http.Client{},
		backoff:    DefaultBackoff(),
		maxRetries: 3,
		timeout:    10 * time.Second,
		userAgent:  "planguard-webhook/1.0",
		logger:     logger.Discard(),
		now:        time.Now,
	}
	s.breaker = newBreaker(endpoint, 5, time.Minute)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func newBreaker(name string, maxFailures uint32, openTimeout time.Duration) *gobreaker.CircuitBreaker[int] {
	if maxFailures == 0 {
		maxFailures = 5
	}
	return gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:    name,
		Timeout: openTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		// Rejections by the receiver prove it is reachable.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPermanentFailure) || errors.Is(err, context.Canceled)
		},
	})
}

// Send marshals data and POSTs it, retrying per the backoff strategy.
// 4xx answers other than 408, 425 and 429 are permanent and not retried.
func (s *Sender) Send(ctx context.Context, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Join(ErrInvalidPayload, err)
	}
	deliveryID := uuid.NewString()
	log := s.logger.With(slog.String("delivery_id", deliveryID))

	var lastErr error
	for attempt := range s.maxRetries + 1 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.backoff.NextInterval(attempt)):
			}
		}

		status, err := s.breaker.Execute(func() (int, error) {
			return s.deliver(ctx, deliveryID, payload)
		})
		if err == nil {
			log.DebugContext(ctx, "webhook delivered", slog.Int("status", status), slog.Int("attempt", attempt+1))
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return errors.Join(ErrCircuitOpen, err)
		}
		if errors.Is(err, ErrPermanentFailure) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		lastErr = err
		log.WarnContext(ctx, "webhook attempt failed", slog.Int("attempt", attempt+1), logger.Error(err))
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrDeliveryFailed, s.maxRetries+1, lastErr)
}

func (s *Sender) deliver(ctx context.Context, deliveryID string, payload []byte) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ts := s.now()
	sig, err := Sign(s.secret, payload, ts)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set(SignatureHeader, sig)
	req.Header.Set(TimestampHeader, strconv.FormatInt(ts.Unix(), 10))
	req.Header.Set(DeliveryHeader, deliveryID)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, errors.Join(ErrTemporaryFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return resp.StatusCode, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	detail := strings.Join(strings.Fields(string(body)), " ")
	statusErr := fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, detail)
	if permanent(resp.StatusCode) {
		return resp.StatusCode, errors.Join(ErrPermanentFailure, statusErr)
	}
	return resp.StatusCode, errors.Join(ErrTemporaryFailure, statusErr)
}

func permanent(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return status >= 400 && status < 500
}
