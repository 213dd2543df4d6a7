// Package notify tells the host application when a subscriber's plan changes.
//
// A Notifier is registered as a subscription plan-change hook. Changes are
// queued without blocking webhook processing and delivered by Run through a
// Sender, normally a *webhook.Sender.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/planguard/pkg/logger"
	"github.com/dmitrymomot/planguard/pkg/subscription"
)

const EventPlanChanged = "subscription.plan_changed"

var ErrQueueFull = errors.New("notify.errors.queue_full")

// Config is read from the environment.
type Config struct {
	URL        string        `env:"NOTIFY_WEBHOOK_URL"`
	Secret     string        `env:"NOTIFY_WEBHOOK_SECRET"`
	QueueSize  int           `env:"NOTIFY_QUEUE_SIZE" envDefault:"256"`
	MaxRetries int           `env:"NOTIFY_MAX_RETRIES" envDefault:"3"`
	Timeout    time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`
}

func (c Config) Enabled() bool { return c.URL != "" }

// Sender delivers one event.
type Sender interface {
	Send(ctx context.Context, data any) error
}

// Event is the JSON body sent for each plan change. An empty plan id means
// the subscriber fell back to the free plan.
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       Change    `json:"data"`
}

type Change struct {
	SubscriberID uuid.UUID `json:"subscriber_id"`
	FromPlanID   string    `json:"from_plan_id"`
	ToPlanID     string    `json:"to_plan_id"`
}

type Notifier struct {
	sender Sender
	queue  chan Event
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Notifier)

func WithQueueSize(n int) Option {
	return func(nt *Notifier) {
		if n > 0 {
			nt.queue = make(chan Event, n)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(nt *Notifier) {
		if l != nil {
			nt.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(nt *Notifier) {
		if now != nil {
			nt.now = now
		}
	}
}

func New(sender Sender, opts ...Option) *Notifier {
	n := &Notifier{
		sender: sender,
		queue:  make(chan Event, 256),
		logger: logger.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// PlanChanged queues a notification. It never blocks; when the queue is full
// the change is dropped and logged.
func (n *Notifier) PlanChanged(ctx context.Context, change subscription.PlanChange) {
	if err := n.Enqueue(change); err != nil {
		n.logger.WarnContext(ctx, "plan change notification dropped",
			logger.SubscriberID(change.SubscriberID),
			logger.Error(err),
		)
	}
}

// Enqueue queues a notification or returns ErrQueueFull.
func (n *Notifier) Enqueue(change subscription.PlanChange) error {
	ev := Event{
		ID:         uuid.New(),
		Type:       EventPlanChanged,
		OccurredAt: n.now().UTC(),
		Data: Change{
			SubscriberID: change.SubscriberID,
			FromPlanID:   change.FromPlanID,
			ToPlanID:     change.ToPlanID,
		},
	}
	select {
	case n.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run delivers queued events until ctx is done. Failed deliveries are logged
// and not requeued; the sender already retried them.
func (n *Notifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-n.queue:
			n.deliver(ctx, ev)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, ev Event) {
	start := time.Now()
	err := n.sender.Send(ctx, ev)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		n.logger.ErrorContext(ctx, "plan change notification failed",
			logger.SubscriberID(ev.Data.SubscriberID),
			logger.EventType(ev.Type),
			slog.String("event_id", ev.ID.String()),
			logger.Error(err),
		)
		return
	}
	n.logger.InfoContext(ctx, "plan change notified",
		logger.SubscriberID(ev.Data.SubscriberID),
		logger.EventType(ev.Type),
		logger.Duration(time.Since(start)),
	)
}
