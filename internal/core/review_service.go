package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/synera-br/splennet-backend/internal/db"
	"github.com/synera-br/splennet-backend/internal/metrics"
	"github.com/synera-br/splennet-backend/internal/models"
)

// SubmitResult is a created review request and the usage after it was counted.
// Warnings holds ErrStatusUpdateFailed when the essay could not be marked pending.
type SubmitResult struct {
	Review   *models.ReviewRequest
	Usage    UsageDecision
	Warnings []error
}

// reviewService implements the ReviewService interface.
type reviewService struct {
	reviews      db.ReviewRepository
	essays       db.EssayRepository
	entitlements db.EntitlementRepository
	// submitter is nil when the store cannot run the submission as one transaction.
	submitter db.ReviewSubmitter
	users     UserService
	usage     UsageService
	notifier  Notifier
	logger    *zap.Logger
}

// NewReviewService creates a new ReviewService instance.
func NewReviewService(
	store *db.Store,
	users UserService,
	usage UsageService,
	notifier Notifier,
	logger *zap.Logger,
) ReviewService {
	return &reviewService{
		reviews:      store.Reviews,
		essays:       store.Essays,
		entitlements: store.Entitlements,
		submitter:    store.Submitter,
		users:        users,
		usage:        usage,
		notifier:     notifier,
		logger:       logger,
	}
}

// Submit requests a human review of one of the caller's essays.
// With a transactional store the request, the essay status and the counter are written
// together. Otherwise the request is created first and is the authoritative record; the
// essay status and the counter follow as best-effort writes.
func (s *reviewService) Submit(ctx context.Context, identity *models.Identity, req models.SubmitReviewRequest) (*SubmitResult, error) {
	if identity == nil || identity.UID == "" {
		return nil, ErrAuthRequired
	}
	userID := identity.UID

	ent, err := s.users.Entitlement(ctx, identity)
	if err != nil {
		return nil, err
	}
	decision, err := CheckUsage(ent, models.ActionHumanReview)
	if err != nil {
		return nil, err
	}
	metrics.RecordGateDecision(string(models.ActionHumanReview), decision.CanProceed)
	if !decision.CanProceed {
		return nil, &LimitReachedError{Action: models.ActionHumanReview, Tier: ent.PlanTier, Decision: decision}
	}

	essayID := strings.TrimSpace(req.EssayID)
	instructions := strings.TrimSpace(req.Instructions)
	if essayID == "" {
		return nil, validationErr("essay id is required")
	}
	if instructions == "" {
		return nil, validationErr("review instructions are required")
	}
	if utf8.RuneCountInString(instructions) > maxFieldLength {
		return nil, validationErr("review instructions are too long")
	}

	essay, err := s.essays.GetByID(ctx, essayID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: essay '%s'", ErrEssayNotFound, essayID)
		}
		return nil, fmt.Errorf("failed to get essay '%s': %w", essayID, err)
	}
	if essay.UserID != userID {
		return nil, fmt.Errorf("%w: essay '%s'", ErrForbidden, essayID)
	}
	if !essay.ReviewStatus.CanTransitionTo(models.ReviewPending) {
		return nil, fmt.Errorf("%w: essay '%s' already has a review %s", ErrInvalidTransition, essayID, essay.ReviewStatus)
	}

	now := time.Now().UTC()
	review := &models.ReviewRequest{
		EssayID:      essayID,
		UserID:       userID,
		Instructions: instructions,
		Status:       models.ReviewPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	result := &SubmitResult{Review: review}

	if s.submitter != nil {
		reviewID, err := s.submitter.SubmitReview(ctx, db.ReviewSubmission{Review: review, HumanReviewLimit: decision.Limit})
		if err != nil {
			switch {
			case errors.Is(err, db.ErrQuotaExceeded):
				denied := UsageDecision{CanProceed: false, Remaining: 0, Used: decision.Limit, Limit: decision.Limit}
				return nil, &LimitReachedError{Action: models.ActionHumanReview, Tier: ent.PlanTier, Decision: denied}
			case errors.Is(err, db.ErrConflict):
				return nil, fmt.Errorf("%w: essay '%s' already has a review in progress", ErrInvalidTransition, essayID)
			case errors.Is(err, db.ErrNotFound):
				return nil, fmt.Errorf("%w: essay '%s'", ErrEssayNotFound, essayID)
			}
			return nil, fmt.Errorf("failed to submit review for essay '%s': %w", essayID, err)
		}
		review.ID = reviewID
		result.Usage = countOne(decision)
	} else {
		reviewID, err := s.reviews.Create(ctx, review)
		if err != nil {
			return nil, fmt.Errorf("failed to create review request for essay '%s': %w", essayID, err)
		}
		review.ID = reviewID

		writeCtx := context.WithoutCancel(ctx)
		if err := s.essays.UpdateReviewStatus(writeCtx, essayID, models.ReviewPending, ""); err != nil {
			result.Warnings = append(result.Warnings, fmt.Errorf("%w: %v", ErrStatusUpdateFailed, err))
			secondaryWriteFailed(writeCtx, s.usage, s.logger, "essay_review_status", models.EventReviewStatusFailed, userID, essayID, err)
		}
		if err := s.entitlements.IncrementCounter(writeCtx, userID, models.CounterHumanReviews); err != nil {
			secondaryWriteFailed(writeCtx, s.usage, s.logger, "usage_increment", models.EventUsageIncrementFailed, userID, review.ID, err)
			result.Usage = decision
		} else {
			result.Usage = countOne(decision)
		}
	}

	recordEvent(context.WithoutCancel(ctx), s.usage, s.logger, models.UsageEvent{
		UserID:   userID,
		Action:   models.EventHumanReviewRequested,
		TargetID: review.ID,
		Details:  map[string]interface{}{"essayId": essayID},
	})
	if result.Usage.Limit != models.Unlimited && result.Usage.Remaining == 0 {
		notify(context.WithoutCancel(ctx), s.notifier, s.logger, limitNotification(ent, models.ActionHumanReview, result.Usage))
	}
	return result, nil
}

// ListOwn returns the review requests of the user.
func (s *reviewService) ListOwn(ctx context.Context, userID string) ([]*models.ReviewRequest, error) {
	if userID == "" {
		return nil, ErrAuthRequired
	}
	reviews, err := s.reviews.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews for user '%s': %w", userID, err)
	}
	return reviews, nil
}

// ListQueue returns review requests in the given status for a reviewer. Status defaults to pending.
func (s *reviewService) ListQueue(ctx context.Context, reviewer *models.Identity, status models.ReviewStatus) ([]*models.ReviewRequest, error) {
	if err := requireReviewer(reviewer); err != nil {
		return nil, err
	}
	if status == "" {
		status = models.ReviewPending
	}
	switch status {
	case models.ReviewPending, models.ReviewInProgress, models.ReviewCompleted:
	default:
		return nil, validationErr("unknown review status '%s'", status)
	}
	reviews, err := s.reviews.ListByStatus(ctx, status, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s reviews: %w", status, err)
	}
	return reviews, nil
}

// Claim assigns a pending review to the reviewer and moves it to in_review.
func (s *reviewService) Claim(ctx context.Context, reviewer *models.Identity, reviewID string) (*models.ReviewRequest, error) {
	if err := requireReviewer(reviewer); err != nil {
		return nil, err
	}
	review, err := s.getReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if !review.Status.CanTransitionTo(models.ReviewInProgress) {
		return nil, fmt.Errorf("%w: review '%s' is %s", ErrInvalidTransition, reviewID, review.Status)
	}

	from := review.Status
	review.Status = models.ReviewInProgress
	review.ReviewerID = reviewer.UID
	review.UpdatedAt = time.Now().UTC()
	if err := s.reviews.Update(ctx, review, from); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, fmt.Errorf("%w: review '%s' was claimed by another reviewer", ErrInvalidTransition, reviewID)
		}
		return nil, fmt.Errorf("failed to claim review '%s': %w", reviewID, err)
	}

	writeCtx := context.WithoutCancel(ctx)
	if err := s.essays.UpdateReviewStatus(writeCtx, review.EssayID, models.ReviewInProgress, ""); err != nil {
		secondaryWriteFailed(writeCtx, s.usage, s.logger, "essay_review_status", models.EventReviewStatusFailed, review.UserID, review.EssayID, err)
	}
	return review, nil
}

// Complete stores the reviewer's feedback, completes the review and its essay, and notifies
// the essay owner. Only the reviewer who claimed the review may complete it.
func (s *reviewService) Complete(ctx context.Context, reviewer *models.Identity, reviewID, feedback string) (*models.ReviewRequest, error) {
	if err := requireReviewer(reviewer); err != nil {
		return nil, err
	}
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, validationErr("feedback is required")
	}
	review, err := s.getReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if !review.Status.CanTransitionTo(models.ReviewCompleted) {
		return nil, fmt.Errorf("%w: review '%s' is %s", ErrInvalidTransition, reviewID, review.Status)
	}
	if review.ReviewerID != reviewer.UID {
		return nil, fmt.Errorf("%w: review '%s' is assigned to another reviewer", ErrForbidden, reviewID)
	}

	now := time.Now().UTC()
	from := review.Status
	review.Status = models.ReviewCompleted
	review.Feedback = feedback
	review.UpdatedAt = now
	review.CompletedAt = &now
	if err := s.reviews.Update(ctx, review, from); err != nil {
		if errors.Is(err, db.ErrConflict) {
			return nil, fmt.Errorf("%w: review '%s' changed while it was being completed", ErrInvalidTransition, reviewID)
		}
		return nil, fmt.Errorf("failed to complete review '%s': %w", reviewID, err)
	}

	writeCtx := context.WithoutCancel(ctx)
	if err := s.essays.UpdateReviewStatus(writeCtx, review.EssayID, models.ReviewCompleted, feedback); err != nil {
		secondaryWriteFailed(writeCtx, s.usage, s.logger, "essay_review_status", models.EventReviewStatusFailed, review.UserID, review.EssayID, err)
	}
	recordEvent(writeCtx, s.usage, s.logger, models.UsageEvent{
		UserID:   review.UserID,
		Action:   models.EventReviewCompleted,
		TargetID: review.ID,
		Details:  map[string]interface{}{"reviewerId": reviewer.UID, "essayId": review.EssayID},
	})

	owner, err := s.entitlements.GetByID(writeCtx, review.UserID)
	if err != nil {
		s.logger.Warn("cannot notify review owner", zap.String("userID", review.UserID), zap.Error(err))
		return review, nil
	}
	notify(writeCtx, s.notifier, s.logger, models.Notification{
		Type:     models.NotifyReviewCompleted,
		UserID:   owner.UserID,
		Email:    owner.Email,
		Name:     displayName(owner.FullName, owner.Email),
		PlanTier: owner.PlanTier,
		Data:     map[string]string{"essayId": review.EssayID, "reviewId": review.ID},
	})
	return review, nil
}

func (s *reviewService) getReview(ctx context.Context, reviewID string) (*models.ReviewRequest, error) {
	if strings.TrimSpace(reviewID) == "" {
		return nil, validationErr("review id is required")
	}
	review, err := s.reviews.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: review '%s'", ErrReviewNotFound, reviewID)
		}
		return nil, fmt.Errorf("failed to get review '%s': %w", reviewID, err)
	}
	return review, nil
}

func requireReviewer(identity *models.Identity) error {
	if identity == nil || identity.UID == "" {
		return ErrAuthRequired
	}
	if !identity.Reviewer {
		return fmt.Errorf("%w: reviewer role required", ErrForbidden)
	}
	return nil
}
