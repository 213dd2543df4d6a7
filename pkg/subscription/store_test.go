package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/planguard/pkg/subscription"
)

func TestCurrentOf(t *testing.T) {
	t.Parallel()
	now := time.Now()

	subs := []subscription.Subscription{
		{PlanID: "old", Status: subscription.StatusActive, CreatedAt: now.Add(-48 * time.Hour)},
		{PlanID: "canceled", Status: subscription.StatusCanceled, CreatedAt: now},
		{PlanID: "trial", Status: subscription.StatusTrialing, CreatedAt: now.Add(-time.Hour)},
		{PlanID: "late", Status: subscription.StatusPastDue, CreatedAt: now.Add(-time.Minute)},
	}
	cur := subscription.CurrentOf(subs)
	require.NotNil(t, cur)
	assert.Equal(t, "trial", cur.PlanID)

	cur.PlanID = "changed"
	assert.Equal(t, "trial", subs[2].PlanID)

	assert.Nil(t, subscription.CurrentOf(subs[1:2]))
	assert.Nil(t, subscription.CurrentOf(nil))
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	owner := uuid.New()
	now := time.Now()

	older := subscription.Subscription{
		ID: uuid.New(), SubscriberID: owner, PlanID: "plan_starter",
		Status: subscription.StatusActive, ProviderSubID: "sub_1", CreatedAt: now.Add(-time.Hour),
	}
	newer := subscription.Subscription{
		ID: uuid.New(), SubscriberID: owner, PlanID: "plan_pro",
		Status: subscription.StatusActive, ProviderSubID: "sub_2", CreatedAt: now,
	}
	store := subscription.NewMemoryStore(older)
	require.NoError(t, store.Create(ctx, &newer))

	cur, err := store.Current(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, "plan_pro", cur.PlanID)

	_, err = store.Current(ctx, uuid.New())
	assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)

	got, err := store.GetByProviderID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, older.ID, got.ID)
	_, err = store.GetByProviderID(ctx, "")
	assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)

	t.Run("create rejects duplicates", func(t *testing.T) {
		dup := newer
		assert.ErrorIs(t, store.Create(ctx, &dup), subscription.ErrSubscriptionAlreadyExists)

		dup.ID = uuid.New()
		assert.ErrorIs(t, store.Create(ctx, &dup), subscription.ErrSubscriptionAlreadyExists, "provider id is unique")
		assert.ErrorIs(t, store.Create(ctx, &subscription.Subscription{}), subscription.ErrInvalidSubscription)
	})

	t.Run("update", func(t *testing.T) {
		canceled := newer
		canceled.Status = subscription.StatusCanceled
		require.NoError(t, store.Update(ctx, &canceled))

		cur, err := store.Current(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, "plan_starter", cur.PlanID, "falls back to the older active subscription")

		missing := subscription.Subscription{ID: uuid.New()}
		assert.ErrorIs(t, store.Update(ctx, &missing), subscription.ErrSubscriptionNotFound)
	})

	t.Run("history is newest first", func(t *testing.T) {
		history, err := store.History(ctx, owner)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, newer.ID, history[0].ID)
		assert.Equal(t, older.ID, history[1].ID)
	})
}

func TestDecodeFeatures(t *testing.T) {
	t.Parallel()

	features, err := subscription.DecodeFeatures([]byte(`{"workspaces": 3, "qr_chamada": true, "suporte": "email"}`))
	require.NoError(t, err)
	assert.Len(t, features, 3)

	for _, raw := range [][]byte{nil, []byte("null")} {
		features, err = subscription.DecodeFeatures(raw)
		require.NoError(t, err)
		assert.NotNil(t, features)
		assert.Empty(t, features)
	}

	_, err = subscription.DecodeFeatures([]byte(`[1, 2]`))
	assert.Error(t, err)
}
