package statemachine

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// Machine is an in-memory state machine. Transitions are indexed as
// [from][event][]Transition.
type Machine[S, E ~string] struct {
	mu           sync.RWMutex
	initialState S
	currentState S
	transitions  map[S]map[E][]Transition[S, E]
}

func (m *Machine[S, E]) Current() S {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentState
}

func (m *Machine[S, E]) AddTransition(from, to S, event E, guards []Guard[S, E], actions []Action[S, E]) error {
	if from == "" || to == "" || event == "" {
		return ErrInvalidTransition
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transitions[from]; !ok {
		m.transitions[from] = make(map[E][]Transition[S, E])
	}
	m.transitions[from][event] = append(m.transitions[from][event], Transition[S, E]{
		From:    from,
		To:      to,
		Event:   event,
		Guards:  slices.DeleteFunc(slices.Clone(guards), func(g Guard[S, E]) bool { return g == nil }),
		Actions: slices.DeleteFunc(slices.Clone(actions), func(a Action[S, E]) bool { return a == nil }),
	})
	return nil
}

// Fire applies event to the current state.
func (m *Machine[S, E]) Fire(ctx context.Context, event E, data any) error {
	if event == "" {
		return ErrInvalidEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.match(ctx, event, data)
	if err != nil {
		return err
	}

	for _, action := range t.Actions {
		if err := action(ctx, m.currentState, t.To, event, data); err != nil {
			return fmt.Errorf("action failed: %w", err)
		}
	}

	m.currentState = t.To
	return nil
}

// CanFire reports whether Fire would find a transition whose guards pass.
// Actions are not run.
func (m *Machine[S, E]) CanFire(ctx context.Context, event E, data any) bool {
	if event == "" {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, err := m.match(ctx, event, data)
	return err == nil
}

// Target returns the state Fire would move to, without moving.
func (m *Machine[S, E]) Target(ctx context.Context, event E, data any) (S, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, err := m.match(ctx, event, data)
	if err != nil {
		return "", err
	}
	return t.To, nil
}

// Reset returns the machine to its initial state.
func (m *Machine[S, E]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentState = m.initialState
}

// Restore sets the current state without a transition, e.g. when rehydrating
// from storage.
func (m *Machine[S, E]) Restore(state S) error {
	if state == "" {
		return ErrInvalidState
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentState = state
	return nil
}

// match must be called with the lock held. The first transition whose guards
// all pass wins.
func (m *Machine[S, E]) match(ctx context.Context, event E, data any) (*Transition[S, E], error) {
	candidates := m.transitions[m.currentState][event]
	if len(candidates) == 0 {
		return nil, transitionError(ErrNoTransitionAvailable, string(m.currentState), string(event))
	}

	for i := range candidates {
		t := &candidates[i]
		passed := true
		for _, guard := range t.Guards {
			if !guard(ctx, m.currentState, event, data) {
				passed = false
				break
			}
		}
		if passed {
			return t, nil
		}
	}
	return nil, transitionError(ErrTransitionRejected, string(m.currentState), string(event))
}
