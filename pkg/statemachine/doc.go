// Package statemachine is a small typed finite-state machine used to drive
// lifecycle rules such as subscription status changes and the upgrade prompt.
//
// States and events are any string-based types, so call sites keep their own
// domain constants:
//
//	type Status string
//	type Event string
//
//	m := statemachine.MustNew[Status, Event]("active",
//	    statemachine.WithTransition[Status, Event]("active", "past_due", "payment_failed"),
//	    statemachine.WithTransition[Status, Event]("past_due", "active", "payment_succeeded"),
//	)
//	err := m.Fire(ctx, "payment_failed", nil)
//
// Guards veto a transition based on runtime data and Actions run after all guards
// pass but before the state changes; an Action error aborts the transition.
// Several transitions may share a from/event pair: the first whose guards pass wins.
//
// Fire returns a *TransitionError wrapping ErrNoTransitionAvailable when nothing
// is defined for the pair, or ErrTransitionRejected when guards rejected every
// candidate.
//
// A Machine is safe for concurrent use.
package statemachine
