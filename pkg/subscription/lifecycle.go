package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrymomot/planguard/pkg/statemachine"
)

// LifecycleEvent moves a subscription between statuses.
type LifecycleEvent string

const (
	EventTrial       LifecycleEvent = "trial"
	EventActivate    LifecycleEvent = "activate"
	EventMarkPastDue LifecycleEvent = "mark_past_due"
	EventCancel      LifecycleEvent = "cancel"
)

// Canceled is terminal. Repeating cancel on a canceled subscription is a
// no-op so provider retries stay idempotent.
var lifecycle = []statemachine.Transition[Status, LifecycleEvent]{
	{From: StatusTrialing, To: StatusTrialing, Event: EventTrial},
	{From: StatusTrialing, To: StatusActive, Event: EventActivate},
	{From: StatusTrialing, To: StatusPastDue, Event: EventMarkPastDue},
	{From: StatusTrialing, To: StatusCanceled, Event: EventCancel},

	{From: StatusActive, To: StatusActive, Event: EventActivate},
	{From: StatusActive, To: StatusPastDue, Event: EventMarkPastDue},
	{From: StatusActive, To: StatusCanceled, Event: EventCancel},

	{From: StatusPastDue, To: StatusActive, Event: EventActivate},
	{From: StatusPastDue, To: StatusPastDue, Event: EventMarkPastDue},
	{From: StatusPastDue, To: StatusCanceled, Event: EventCancel},

	{From: StatusCanceled, To: StatusCanceled, Event: EventCancel},
}

// Advance returns the status a subscription in from reaches on ev.
// Disallowed moves return ErrInvalidTransition.
func Advance(ctx context.Context, from Status, ev LifecycleEvent) (Status, error) {
	if !from.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, from)
	}

	m, err := statemachine.New(from, statemachine.WithTransitions(lifecycle))
	if err != nil {
		return "", err
	}

	to, err := m.Target(ctx, ev, nil)
	if err != nil {
		return "", errors.Join(ErrInvalidTransition, err)
	}
	return to, nil
}

// EventFor maps a provider-reported status to the event that reaches it.
func EventFor(target Status) (LifecycleEvent, bool) {
	switch target {
	case StatusTrialing:
		return EventTrial, true
	case StatusActive:
		return EventActivate, true
	case StatusPastDue:
		return EventMarkPastDue, true
	case StatusCanceled:
		return EventCancel, true
	}
	return "", false
}
