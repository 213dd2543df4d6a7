package statemachine

import (
	"fmt"
)

// Option configures a machine during construction.
type Option[S, E ~string] func(*Machine[S, E]) error

// TransitionOption configures a single transition with guards and actions.
type TransitionOption[S, E ~string] func(*transitionConfig[S, E])

type transitionConfig[S, E ~string] struct {
	guards  []Guard[S, E]
	actions []Action[S, E]
}

// New creates a machine in initialState.
func New[S, E ~string](initialState S, opts ...Option[S, E]) (*Machine[S, E], error) {
	if initialState == "" {
		return nil, ErrInvalidState
	}

	m := &Machine[S, E]{
		initialState: initialState,
		currentState: initialState,
		transitions:  make(map[S]map[E][]Transition[S, E]),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New that panics on error. Transition tables are static, so a
// failure here is a programming error.
func MustNew[S, E ~string](initialState S, opts ...Option[S, E]) *Machine[S, E] {
	m, err := New(initialState, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create state machine: %v", err))
	}
	return m
}

func WithTransition[S, E ~string](from, to S, event E, opts ...TransitionOption[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		cfg := &transitionConfig[S, E]{}
		for _, opt := range opts {
			opt(cfg)
		}
		if err := m.AddTransition(from, to, event, cfg.guards, cfg.actions); err != nil {
			return fmt.Errorf("add transition %s->%s on %s: %w", from, to, event, err)
		}
		return nil
	}
}

// WithTransitions adds a whole table at once.
func WithTransitions[S, E ~string](transitions []Transition[S, E]) Option[S, E] {
	return func(m *Machine[S, E]) error {
		for i, t := range transitions {
			if err := m.AddTransition(t.From, t.To, t.Event, t.Guards, t.Actions); err != nil {
				return fmt.Errorf("add transition[%d] %s->%s on %s: %w", i, t.From, t.To, t.Event, err)
			}
		}
		return nil
	}
}

func WithGuard[S, E ~string](guard Guard[S, E]) TransitionOption[S, E] {
	return func(cfg *transitionConfig[S, E]) {
		if guard != nil {
			cfg.guards = append(cfg.guards, guard)
		}
	}
}

func WithAction[S, E ~string](action Action[S, E]) TransitionOption[S, E] {
	return func(cfg *transitionConfig[S, E]) {
		if action != nil {
			cfg.actions = append(cfg.actions, action)
		}
	}
}
