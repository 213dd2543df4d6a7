package statemachine

import (
	"context"
)

// Guard evaluates whether a transition should be allowed based on runtime conditions.
type Guard[S, E ~string] func(ctx context.Context, from S, event E, data any) bool

// Action executes side effects during a transition. Returning an error prevents it.
type Action[S, E ~string] func(ctx context.Context, from, to S, event E, data any) error

// Transition defines a state change triggered by an event, with optional guards and actions.
type Transition[S, E ~string] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S, E]  // all must pass
	Actions []Action[S, E] // executed in order before the state changes
}
