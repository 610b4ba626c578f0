package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/synera-br/splennet-backend/internal/db"
	"github.com/synera-br/splennet-backend/internal/models"
)

const reviewColumns = `id, essay_id, user_id, instructions, status, reviewer_id, feedback, created_at, updated_at, completed_at`

const insertReview = `INSERT INTO human_reviews (` + reviewColumns + `) VALUES (
	:id, :essay_id, :user_id, :instructions, :status, :reviewer_id, :feedback, :created_at, :updated_at, :completed_at)`

type reviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a ReviewRepository on the human_reviews table.
func NewReviewRepository(conn *sqlx.DB) db.ReviewRepository {
	return &reviewRepository{db: conn}
}

// NewReviewSubmitter returns a ReviewSubmitter that locks the essay and user rows in one transaction.
func NewReviewSubmitter(conn *sqlx.DB) db.ReviewSubmitter {
	return &reviewRepository{db: conn}
}

func (r *reviewRepository) Create(ctx context.Context, review *models.ReviewRequest) (string, error) {
	prepareReview(review)
	if _, err := r.db.NamedExecContext(ctx, insertReview, review); err != nil {
		review.ID = ""
		return "", fmt.Errorf("failed to create review request: %w", err)
	}
	return review.ID, nil
}

func (r *reviewRepository) GetByID(ctx context.Context, reviewID string) (*models.ReviewRequest, error) {
	var review models.ReviewRequest
	err := r.db.GetContext(ctx, &review, `SELECT `+reviewColumns+` FROM human_reviews WHERE id = $1`, reviewID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("review with ID '%s' not found: %w", reviewID, db.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get review with ID '%s': %w", reviewID, err)
	}
	return &review, nil
}

func (r *reviewRepository) ListByUser(ctx context.Context, userID string) ([]*models.ReviewRequest, error) {
	var reviews []*models.ReviewRequest
	err := r.db.SelectContext(ctx, &reviews, `SELECT `+reviewColumns+` FROM human_reviews
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews for user '%s': %w", userID, err)
	}
	return reviews, nil
}

func (r *reviewRepository) ListByStatus(ctx context.Context, status models.ReviewStatus, limit int) ([]*models.ReviewRequest, error) {
	var reviews []*models.ReviewRequest
	err := r.db.SelectContext(ctx, &reviews, `SELECT `+reviewColumns+` FROM human_reviews
		WHERE status = $1 ORDER BY created_at ASC LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s reviews: %w", status, err)
	}
	return reviews, nil
}

func (r *reviewRepository) Update(ctx context.Context, review *models.ReviewRequest, from models.ReviewStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE human_reviews SET status = $2, reviewer_id = $3, feedback = $4,
		completed_at = $5, updated_at = now() WHERE id = $1 AND status = $6`,
		review.ID, string(review.Status), review.ReviewerID, review.Feedback, review.CompletedAt, string(from))
	if err != nil {
		return fmt.Errorf("failed to update review with ID '%s': %w", review.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for review '%s': %w", review.ID, err)
	}
	if n > 0 {
		return nil
	}
	var current models.ReviewStatus
	if err := r.db.GetContext(ctx, &current, `SELECT status FROM human_reviews WHERE id = $1`, review.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("review with ID '%s' not found: %w", review.ID, db.ErrNotFound)
		}
		return fmt.Errorf("failed to get review with ID '%s': %w", review.ID, err)
	}
	return fmt.Errorf("review '%s' is %s, expected %s: %w", review.ID, current, from, db.ErrConflict)
}

// SubmitReview locks the essay and the user rows, re-checks the essay status and the
// limit, then writes the request, the essay status and the counter together.
func (r *reviewRepository) SubmitReview(ctx context.Context, sub db.ReviewSubmission) (string, error) {
	review := sub.Review
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin review transaction: %w", err)
	}
	defer tx.Rollback()

	var essay struct {
		UserID       string              `db:"user_id"`
		ReviewStatus models.ReviewStatus `db:"review_status"`
	}
	if err := tx.GetContext(ctx, &essay, `SELECT user_id, review_status FROM essays WHERE id = $1 FOR UPDATE`, review.EssayID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("essay with ID '%s' not found: %w", review.EssayID, db.ErrNotFound)
		}
		return "", fmt.Errorf("failed to lock essay '%s': %w", review.EssayID, err)
	}
	if essay.UserID != review.UserID || !essay.ReviewStatus.CanTransitionTo(models.ReviewPending) {
		return "", fmt.Errorf("essay '%s' cannot take a review request: %w", review.EssayID, db.ErrConflict)
	}

	var used int
	if err := tx.GetContext(ctx, &used, `SELECT human_reviews_used FROM users WHERE user_id = $1 FOR UPDATE`, review.UserID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("user with ID '%s' not found: %w", review.UserID, db.ErrNotFound)
		}
		return "", fmt.Errorf("failed to lock user '%s': %w", review.UserID, err)
	}
	if sub.HumanReviewLimit != models.Unlimited && used >= sub.HumanReviewLimit {
		return "", fmt.Errorf("user '%s' used %d of %d human reviews: %w", review.UserID, used, sub.HumanReviewLimit, db.ErrQuotaExceeded)
	}

	prepareReview(review)
	if _, err := tx.NamedExecContext(ctx, insertReview, review); err != nil {
		return "", fmt.Errorf("failed to create review request: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE essays SET review_status = $2, review_requested_at = $3, updated_at = $3 WHERE id = $1`,
		review.EssayID, string(models.ReviewPending), review.CreatedAt); err != nil {
		return "", fmt.Errorf("failed to mark essay '%s' pending: %w", review.EssayID, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET human_reviews_used = human_reviews_used + 1, updated_at = now() WHERE user_id = $1`,
		review.UserID); err != nil {
		return "", fmt.Errorf("failed to count review of user '%s': %w", review.UserID, err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit review transaction: %w", err)
	}
	return review.ID, nil
}

func prepareReview(review *models.ReviewRequest) {
	review.ID = uuid.NewString()
	now := time.Now().UTC()
	if review.CreatedAt.IsZero() {
		review.CreatedAt = now
	}
	review.UpdatedAt = now
	if review.Status == "" {
		review.Status = models.ReviewPending
	}
}
