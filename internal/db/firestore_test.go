package db

import (
	"context"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synera-br/splennet-backend/internal/models"
)

// newEmulatorStore connects to the Firestore emulator, or skips the test when none is running.
func newEmulatorStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set; skipping firestore integration test")
	}
	client, err := firestore.NewClient(context.Background(), "splennet-test")
	require.NoError(t, err)
	store := NewFirestoreStore(client)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestFirestoreSubmitReview(t *testing.T) {
	store := newEmulatorStore(t)
	ctx := context.Background()
	userID := "user-" + uuid.NewString()

	require.NoError(t, store.Entitlements.Create(ctx, &models.UserEntitlement{UserID: userID, PlanTier: models.PlanMonthly}))
	assert.ErrorIs(t, store.Entitlements.Create(ctx, &models.UserEntitlement{UserID: userID}), ErrAlreadyExists)

	essayID, err := store.Essays.Create(ctx, &models.Essay{UserID: userID, School: "MIT", ReviewStatus: models.ReviewNone, CreatedAt: time.Now()})
	require.NoError(t, err)

	sub := ReviewSubmission{
		Review:           &models.ReviewRequest{EssayID: essayID, UserID: userID, Instructions: "tone", Status: models.ReviewPending},
		HumanReviewLimit: 1,
	}
	reviewID, err := store.Submitter.SubmitReview(ctx, sub)
	require.NoError(t, err)
	assert.NotEmpty(t, reviewID)

	essay, err := store.Essays.GetByID(ctx, essayID)
	require.NoError(t, err)
	assert.Equal(t, models.ReviewPending, essay.ReviewStatus)

	ent, err := store.Entitlements.GetByID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, ent.HumanReviewsUsed)

	// The essay is now pending, so a second submission conflicts before the quota is checked.
	sub.Review = &models.ReviewRequest{EssayID: essayID, UserID: userID, Instructions: "again", Status: models.ReviewPending}
	_, err = store.Submitter.SubmitReview(ctx, sub)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestFirestoreIncrementCounterMissingUser(t *testing.T) {
	store := newEmulatorStore(t)
	err := store.Entitlements.IncrementCounter(context.Background(), "missing-"+uuid.NewString(), models.CounterEssays)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFirestoreReviewUpdateChecksStatus(t *testing.T) {
	store := newEmulatorStore(t)
	ctx := context.Background()

	reviewID, err := store.Reviews.Create(ctx, &models.ReviewRequest{EssayID: "e1", UserID: "u1", Status: models.ReviewPending, CreatedAt: time.Now()})
	require.NoError(t, err)

	claim := &models.ReviewRequest{ID: reviewID, Status: models.ReviewInProgress, ReviewerID: "rev-1"}
	require.NoError(t, store.Reviews.Update(ctx, claim, models.ReviewPending))
	claim.ReviewerID = "rev-2"
	assert.ErrorIs(t, store.Reviews.Update(ctx, claim, models.ReviewPending), ErrConflict)

	stored, err := store.Reviews.GetByID(ctx, reviewID)
	require.NoError(t, err)
	assert.Equal(t, "rev-1", stored.ReviewerID)
}

func TestFirestoreWebhookEventsClaimOnce(t *testing.T) {
	store := newEmulatorStore(t)
	ctx := context.Background()
	eventID := "evt_" + uuid.NewString()

	first, err := store.Webhooks.Claim(ctx, eventID, "invoice.paid")
	require.NoError(t, err)
	assert.True(t, first)
	first, err = store.Webhooks.Claim(ctx, eventID, "invoice.paid")
	require.NoError(t, err)
	assert.False(t, first)
	require.NoError(t, store.Webhooks.Release(ctx, eventID))
}
