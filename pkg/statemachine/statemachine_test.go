package statemachine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/planguard/pkg/statemachine"
)

type state string
type event string

const (
	draft     state = "draft"
	inReview  state = "in_review"
	approved  state = "approved"
	rejected  state = "rejected"
	submit    event = "submit"
	approve   event = "approve"
	reject    event = "reject"
	unrelated event = "unrelated"
)

func newReviewMachine(t *testing.T, opts ...statemachine.Option[state, event]) *statemachine.Machine[state, event] {
	t.Helper()
	base := []statemachine.Option[state, event]{
		statemachine.WithTransition[state, event](draft, inReview, submit),
		statemachine.WithTransition[state, event](inReview, approved, approve),
		statemachine.WithTransition[state, event](inReview, rejected, reject),
	}
	m, err := statemachine.New(draft, append(base, opts...)...)
	require.NoError(t, err)
	return m
}

func TestMachine_Fire(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("follows defined transitions", func(t *testing.T) {
		t.Parallel()
		m := newReviewMachine(t)

		assert.Equal(t, draft, m.Current())
		assert.True(t, m.CanFire(ctx, submit, nil))
		require.NoError(t, m.Fire(ctx, submit, nil))
		assert.Equal(t, inReview, m.Current())
		require.NoError(t, m.Fire(ctx, approve, nil))
		assert.Equal(t, approved, m.Current())

		m.Reset()
		assert.Equal(t, draft, m.Current())
	})

	t.Run("undefined pair", func(t *testing.T) {
		t.Parallel()
		m := newReviewMachine(t)

		assert.False(t, m.CanFire(ctx, approve, nil))
		err := m.Fire(ctx, approve, nil)
		require.Error(t, err)
		assert.True(t, statemachine.IsNoTransitionAvailableError(err))
		assert.Equal(t, draft, m.Current())
	})

	t.Run("empty event", func(t *testing.T) {
		t.Parallel()
		m := newReviewMachine(t)

		assert.ErrorIs(t, m.Fire(ctx, "", nil), statemachine.ErrInvalidEvent)
		assert.False(t, m.CanFire(ctx, "", nil))
	})
}

func TestMachine_Guards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	isOwner := func(_ context.Context, _ state, _ event, data any) bool {
		role, _ := data.(string)
		return role == "owner"
	}

	m := statemachine.MustNew(draft,
		statemachine.WithTransition(draft, approved, submit, statemachine.WithGuard[state, event](isOwner)),
		statemachine.WithTransition[state, event](draft, inReview, submit),
	)

	target, err := m.Target(ctx, submit, "owner")
	require.NoError(t, err)
	assert.Equal(t, approved, target)
	assert.Equal(t, draft, m.Current(), "Target must not move the machine")

	require.NoError(t, m.Fire(ctx, submit, "member"))
	assert.Equal(t, inReview, m.Current(), "first passing transition wins")

	t.Run("all guards reject", func(t *testing.T) {
		t.Parallel()
		m := statemachine.MustNew(draft,
			statemachine.WithTransition(draft, approved, submit, statemachine.WithGuard[state, event](isOwner)),
		)
		err := m.Fire(ctx, submit, "member")
		require.Error(t, err)
		assert.True(t, statemachine.IsTransitionRejectedError(err))
		assert.False(t, statemachine.IsNoTransitionAvailableError(err))
	})
}

func TestMachine_Actions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("action runs with from and to", func(t *testing.T) {
		t.Parallel()
		var gotFrom, gotTo state
		record := func(_ context.Context, from, to state, _ event, _ any) error {
			gotFrom, gotTo = from, to
			return nil
		}
		m := statemachine.MustNew(draft,
			statemachine.WithTransition(draft, inReview, submit, statemachine.WithAction[state, event](record)),
		)

		require.NoError(t, m.Fire(ctx, submit, nil))
		assert.Equal(t, draft, gotFrom)
		assert.Equal(t, inReview, gotTo)
	})

	t.Run("failing action aborts", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		fail := func(context.Context, state, state, event, any) error { return boom }
		m := statemachine.MustNew(draft,
			statemachine.WithTransition(draft, inReview, submit, statemachine.WithAction[state, event](fail)),
		)

		err := m.Fire(ctx, submit, nil)
		require.ErrorIs(t, err, boom)
		assert.Equal(t, draft, m.Current())
	})
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := statemachine.New[state, event]("")
	assert.ErrorIs(t, err, statemachine.ErrInvalidState)

	_, err = statemachine.New(draft, statemachine.WithTransition[state, event](draft, "", submit))
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	_, err = statemachine.New(draft, statemachine.WithTransitions([]statemachine.Transition[state, event]{
		{From: draft, To: inReview, Event: submit},
		{From: inReview, To: approved},
	}))
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	assert.Panics(t, func() {
		statemachine.MustNew[state, event]("")
	})
}

func TestMachine_Restore(t *testing.T) {
	t.Parallel()
	m := newReviewMachine(t)

	require.NoError(t, m.Restore(inReview))
	require.NoError(t, m.Fire(context.Background(), reject, nil))
	assert.Equal(t, rejected, m.Current())
	assert.ErrorIs(t, m.Restore(""), statemachine.ErrInvalidState)
}

func TestMachine_Concurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := statemachine.MustNew(draft,
		statemachine.WithTransition[state, event](draft, inReview, submit),
		statemachine.WithTransition[state, event](inReview, draft, unrelated),
	)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.Fire(ctx, submit, nil)
		}()
		go func() {
			defer wg.Done()
			_ = m.CanFire(ctx, unrelated, nil)
			_ = m.Current()
		}()
	}
	wg.Wait()

	assert.Contains(t, []state{draft, inReview}, m.Current())
}
