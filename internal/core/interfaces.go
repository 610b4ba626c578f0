package core

import (
	"context"

	"github.com/stripe/stripe-go/v79"

	"github.com/synera-br/splennet-backend/internal/models"
)

// UserService manages user profiles and their entitlements.
type UserService interface {
	// GetOrCreate returns the entitlement of the identity, creating a free one on first use.
	// The boolean reports whether the record was created.
	GetOrCreate(ctx context.Context, identity *models.Identity) (*models.UserEntitlement, bool, error)
	// Entitlement is GetOrCreate for callers that only need the record.
	Entitlement(ctx context.Context, identity *models.Identity) (*models.UserEntitlement, error)
	CurrentUser(ctx context.Context, identity *models.Identity) (*models.CurrentUser, error)
	Usage(ctx context.Context, identity *models.Identity) (map[models.ActionType]UsageDecision, error)
	SignUp(ctx context.Context, req models.SignUpRequest) (*models.UserEntitlement, error)
	SignOut(ctx context.Context, userID string) error
}

// EssayService generates and edits essays.
type EssayService interface {
	Generate(ctx context.Context, identity *models.Identity, req models.GenerateEssayRequest) (*GenerateResult, error)
	Get(ctx context.Context, userID, essayID string) (*models.Essay, error)
	List(ctx context.Context, userID string) ([]*models.Essay, error)
	UpdateText(ctx context.Context, userID, essayID, text string) (*models.Essay, error)
	Improve(ctx context.Context, userID, essayID, feedback string) (*ImproveResult, error)
}

// ReviewService runs the human review workflow for users and reviewers.
type ReviewService interface {
	Submit(ctx context.Context, identity *models.Identity, req models.SubmitReviewRequest) (*SubmitResult, error)
	ListOwn(ctx context.Context, userID string) ([]*models.ReviewRequest, error)
	ListQueue(ctx context.Context, reviewer *models.Identity, status models.ReviewStatus) ([]*models.ReviewRequest, error)
	Claim(ctx context.Context, reviewer *models.Identity, reviewID string) (*models.ReviewRequest, error)
	Complete(ctx context.Context, reviewer *models.Identity, reviewID, feedback string) (*models.ReviewRequest, error)
}

// UsageService writes the usage ledger.
type UsageService interface {
	Record(ctx context.Context, event models.UsageEvent) error
	History(ctx context.Context, userID string, limit int) ([]*models.UsageEvent, error)
}

// BillingService connects plans to the payment provider.
type BillingService interface {
	CreateCheckoutSession(ctx context.Context, userID string, tier models.PlanTier) (string, error)
	CreatePortalSession(ctx context.Context, userID string) (string, error)
	HandleStripeWebhook(ctx context.Context, signature string, payload []byte) error
}

// Notifier delivers a notification, directly or through a queue.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// IdentityProvider manages accounts at the identity provider.
type IdentityProvider interface {
	CreateUser(ctx context.Context, email, password, displayName string) (string, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// CheckoutParams describes a subscription checkout.
type CheckoutParams struct {
	CustomerID string
	PriceID    string
	UserID     string
	Tier       models.PlanTier
	SuccessURL string
	CancelURL  string
}

// PaymentGateway is the subset of the payment provider used by BillingService.
type PaymentGateway interface {
	CreateCustomer(ctx context.Context, userID, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}
