package db

import (
	"context"
	"time"

	"github.com/synera-br/splennet-backend/internal/models"
)

// EntitlementRepository stores user profiles and their usage counters.
type EntitlementRepository interface {
	GetByID(ctx context.Context, userID string) (*models.UserEntitlement, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*models.UserEntitlement, error)
	Create(ctx context.Context, ent *models.UserEntitlement) error
	// IncrementCounter atomically adds one to the named counter.
	IncrementCounter(ctx context.Context, userID string, counter models.Counter) error
	// SetPlan changes the tier, starts a new billing period and resets both counters.
	SetPlan(ctx context.Context, userID string, tier models.PlanTier, subscriptionEndsAt *time.Time) error
	SetSubscriptionEnd(ctx context.Context, userID string, endsAt *time.Time) error
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
	// ResetUsage zeroes both counters and starts a new billing period.
	ResetUsage(ctx context.Context, userID string) error
	// ListSubscriptionsEndingBetween returns paid users whose subscription ends in [from, to).
	ListSubscriptionsEndingBetween(ctx context.Context, from, to time.Time) ([]*models.UserEntitlement, error)
}

// EssayRepository stores generated essays.
type EssayRepository interface {
	Create(ctx context.Context, essay *models.Essay) (string, error)
	GetByID(ctx context.Context, essayID string) (*models.Essay, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.Essay, error)
	UpdateText(ctx context.Context, essayID, text string) error
	// UpdateReviewStatus sets the review status, and the reviewer feedback when feedback is non-empty.
	UpdateReviewStatus(ctx context.Context, essayID string, status models.ReviewStatus, feedback string) error
}

// ReviewRepository stores human review requests.
type ReviewRepository interface {
	Create(ctx context.Context, review *models.ReviewRequest) (string, error)
	GetByID(ctx context.Context, reviewID string) (*models.ReviewRequest, error)
	ListByUser(ctx context.Context, userID string) ([]*models.ReviewRequest, error)
	ListByStatus(ctx context.Context, status models.ReviewStatus, limit int) ([]*models.ReviewRequest, error)
	// Update writes the review only while the stored status is still from. Otherwise it
	// returns ErrConflict, so two reviewers cannot both claim one request.
	Update(ctx context.Context, review *models.ReviewRequest, from models.ReviewStatus) error
}

// UsageRepository appends to the usage ledger.
type UsageRepository interface {
	Create(ctx context.Context, event models.UsageEvent) error
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.UsageEvent, error)
}

// WebhookEventRepository remembers which payment provider events were handled.
type WebhookEventRepository interface {
	// Claim records the event and reports false when it was already recorded.
	Claim(ctx context.Context, eventID, eventType string) (bool, error)
	// Release forgets an event whose handling failed so a redelivery is processed.
	Release(ctx context.Context, eventID string) error
}

// ReviewSubmission is the input of a transactional review submission.
type ReviewSubmission struct {
	Review *models.ReviewRequest
	// HumanReviewLimit is re-checked inside the transaction. models.Unlimited disables the check.
	HumanReviewLimit int
}

// ReviewSubmitter is implemented by stores that can create the review request, mark the
// essay pending and increment the review counter in a single transaction.
type ReviewSubmitter interface {
	SubmitReview(ctx context.Context, sub ReviewSubmission) (string, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Entitlements EntitlementRepository
	Essays       EssayRepository
	Reviews      ReviewRepository
	Usage        UsageRepository
	Webhooks     WebhookEventRepository
	// Submitter is nil when the backend has no transactions.
	Submitter ReviewSubmitter
	Close     func() error
}
