package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synera-br/splennet-backend/internal/db"
	"github.com/synera-br/splennet-backend/internal/models"
)

func TestEntitlements(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()
	ents := repos.Entitlements

	_, err := ents.GetByID(ctx, "u1")
	assert.ErrorIs(t, err, db.ErrNotFound)

	require.NoError(t, ents.Create(ctx, &models.UserEntitlement{UserID: "u1", Email: "a@example.com", PlanTier: models.PlanFree}))
	assert.ErrorIs(t, ents.Create(ctx, &models.UserEntitlement{UserID: "u1"}), db.ErrAlreadyExists)

	require.NoError(t, ents.IncrementCounter(ctx, "u1", models.CounterEssays))
	require.NoError(t, ents.IncrementCounter(ctx, "u1", models.CounterHumanReviews))
	assert.ErrorIs(t, ents.IncrementCounter(ctx, "ghost", models.CounterEssays), db.ErrNotFound)

	ent, err := ents.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, ent.EssaysGenerated)
	assert.Equal(t, 1, ent.HumanReviewsUsed)

	require.NoError(t, ents.SetStripeCustomerID(ctx, "u1", "cus_1"))
	byCustomer, err := ents.GetByStripeCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "u1", byCustomer.UserID)

	require.NoError(t, ents.SetPlan(ctx, "u1", models.PlanMonthly, nil))
	ent, err = ents.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanMonthly, ent.PlanTier)
	assert.Zero(t, ent.EssaysGenerated)
	assert.Zero(t, ent.HumanReviewsUsed)
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	ctx := context.Background()
	ents := New().Repositories().Entitlements
	require.NoError(t, ents.Create(ctx, &models.UserEntitlement{UserID: "u1"}))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ents.IncrementCounter(ctx, "u1", models.CounterEssays))
		}()
	}
	wg.Wait()

	ent, err := ents.GetByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 50, ent.EssaysGenerated)
}

func TestListSubscriptionsEndingBetween(t *testing.T) {
	ctx := context.Background()
	ents := New().Repositories().Entitlements
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	soon, later := now.Add(48*time.Hour), now.Add(10*24*time.Hour)

	require.NoError(t, ents.Create(ctx, &models.UserEntitlement{UserID: "soon", PlanTier: models.PlanMonthly, SubscriptionEndsAt: &soon}))
	require.NoError(t, ents.Create(ctx, &models.UserEntitlement{UserID: "later", PlanTier: models.PlanYearly, SubscriptionEndsAt: &later}))
	require.NoError(t, ents.Create(ctx, &models.UserEntitlement{UserID: "free", PlanTier: models.PlanFree, SubscriptionEndsAt: &soon}))

	out, err := ents.ListSubscriptionsEndingBetween(ctx, now, now.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "soon", out[0].UserID)
}

func TestEssaysAndReviews(t *testing.T) {
	ctx := context.Background()
	repos := New().Repositories()

	essay := &models.Essay{UserID: "u1", School: "MIT", Responses: map[string]string{"q": "a"}, ReviewStatus: models.ReviewNone, CreatedAt: time.Now()}
	id, err := repos.Essays.Create(ctx, essay)
	require.NoError(t, err)
	assert.Equal(t, id, essay.ID)

	// Stored copies are isolated from the caller.
	essay.Responses["q"] = "changed"
	got, err := repos.Essays.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "a", got.Responses["q"])

	require.NoError(t, repos.Essays.UpdateReviewStatus(ctx, id, models.ReviewPending, ""))
	got, err = repos.Essays.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewPending, got.ReviewStatus)
	assert.NotNil(t, got.ReviewRequestedAt)

	require.NoError(t, repos.Essays.UpdateReviewStatus(ctx, id, models.ReviewCompleted, "great work"))
	got, err = repos.Essays.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "great work", got.HumanReview)

	rid, err := repos.Reviews.Create(ctx, &models.ReviewRequest{EssayID: id, UserID: "u1", Status: models.ReviewPending})
	require.NoError(t, err)
	pending, err := repos.Reviews.ListByStatus(ctx, models.ReviewPending, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rid, pending[0].ID)

	claimed := *pending[0]
	claimed.Status = models.ReviewInProgress
	claimed.ReviewerID = "r1"
	require.NoError(t, repos.Reviews.Update(ctx, &claimed, models.ReviewPending))
	claimed.ReviewerID = "r2"
	assert.ErrorIs(t, repos.Reviews.Update(ctx, &claimed, models.ReviewPending), db.ErrConflict)
	got2, err := repos.Reviews.GetByID(ctx, rid)
	require.NoError(t, err)
	assert.Equal(t, "r1", got2.ReviewerID)

	assert.ErrorIs(t, repos.Reviews.Update(ctx, &models.ReviewRequest{ID: "missing"}, models.ReviewPending), db.ErrNotFound)
	assert.Nil(t, repos.Submitter)
}

func TestUsageListNewestFirst(t *testing.T) {
	ctx := context.Background()
	usage := New().Repositories().Usage
	for _, action := range []string{"a", "b", "c"} {
		require.NoError(t, usage.Create(ctx, models.UsageEvent{UserID: "u1", Action: action}))
	}
	require.NoError(t, usage.Create(ctx, models.UsageEvent{UserID: "u2", Action: "x"}))

	events, err := usage.ListByUser(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "c", events[0].Action)
	assert.Equal(t, "b", events[1].Action)
}

func TestWebhookEventsClaimOnce(t *testing.T) {
	ctx := context.Background()
	webhooks := New().Repositories().Webhooks

	first, err := webhooks.Claim(ctx, "evt_1", "invoice.paid")
	require.NoError(t, err)
	assert.True(t, first)
	first, err = webhooks.Claim(ctx, "evt_1", "invoice.paid")
	require.NoError(t, err)
	assert.False(t, first)

	require.NoError(t, webhooks.Release(ctx, "evt_1"))
	first, err = webhooks.Claim(ctx, "evt_1", "invoice.paid")
	require.NoError(t, err)
	assert.True(t, first)
}
