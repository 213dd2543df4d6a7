package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("statemachine.errors.invalid_transition")
	ErrInvalidEvent      = errors.New("statemachine.errors.invalid_event")
	ErrInvalidState      = errors.New("statemachine.errors.invalid_state")

	ErrNoTransitionAvailable = errors.New("statemachine.errors.no_transition_available")
	ErrTransitionRejected    = errors.New("statemachine.errors.transition_rejected")
)

// TransitionError carries the state and event a Fire call failed on.
// Unwrap yields ErrNoTransitionAvailable or ErrTransitionRejected.
type TransitionError struct {
	State string
	Event string
	Err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%v: state=%s event=%s", e.Err, e.State, e.Event)
}

func (e *TransitionError) Unwrap() error { return e.Err }

func transitionError(kind error, state, event string) error {
	return &TransitionError{State: state, Event: event, Err: kind}
}

func IsNoTransitionAvailableError(err error) bool {
	return errors.Is(err, ErrNoTransitionAvailable)
}

func IsTransitionRejectedError(err error) bool {
	return errors.Is(err, ErrTransitionRejected)
}
