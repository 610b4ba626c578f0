package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/synera-br/splennet-backend/internal/db"
	"github.com/synera-br/splennet-backend/internal/models"
)

const userColumns = `user_id, email, full_name, photo_url, plan_tier, essays_generated, human_reviews_used,
	stripe_customer_id, subscription_ends_at, period_start, created_at, updated_at`

type entitlementRepository struct {
	db *sqlx.DB
}

// NewEntitlementRepository creates an EntitlementRepository on the users table.
func NewEntitlementRepository(conn *sqlx.DB) db.EntitlementRepository {
	return &entitlementRepository{db: conn}
}

func (r *entitlementRepository) GetByID(ctx context.Context, userID string) (*models.UserEntitlement, error) {
	return r.getOne(ctx, "user_id", userID)
}

func (r *entitlementRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*models.UserEntitlement, error) {
	if customerID == "" {
		return nil, errors.New("customerID cannot be empty")
	}
	return r.getOne(ctx, "stripe_customer_id", customerID)
}

func (r *entitlementRepository) getOne(ctx context.Context, column, value string) (*models.UserEntitlement, error) {
	var ent models.UserEntitlement
	err := r.db.GetContext(ctx, &ent, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user with %s '%s' not found: %w", column, value, db.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user with %s '%s': %w", column, value, err)
	}
	return &ent, nil
}

func (r *entitlementRepository) Create(ctx context.Context, ent *models.UserEntitlement) error {
	if ent.UserID == "" {
		return errors.New("user ID cannot be empty for Create operation")
	}
	now := time.Now().UTC()
	if ent.PeriodStart.IsZero() {
		ent.PeriodStart = now
	}
	if ent.CreatedAt.IsZero() {
		ent.CreatedAt = now
	}
	ent.UpdatedAt = now
	_, err := r.db.NamedExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (
		:user_id, :email, :full_name, :photo_url, :plan_tier, :essays_generated, :human_reviews_used,
		:stripe_customer_id, :subscription_ends_at, :period_start, :created_at, :updated_at)`, ent)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user with ID '%s' already exists: %w", ent.UserID, db.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create user with ID '%s': %w", ent.UserID, err)
	}
	return nil
}

func (r *entitlementRepository) IncrementCounter(ctx context.Context, userID string, counter models.Counter) error {
	column, err := counterColumn(counter)
	if err != nil {
		return err
	}
	return r.exec(ctx, userID, `UPDATE users SET `+column+` = `+column+` + 1, updated_at = now() WHERE user_id = $1`, userID)
}

func (r *entitlementRepository) SetPlan(ctx context.Context, userID string, tier models.PlanTier, subscriptionEndsAt *time.Time) error {
	return r.exec(ctx, userID, `UPDATE users SET plan_tier = $2, subscription_ends_at = $3,
		essays_generated = 0, human_reviews_used = 0, period_start = now(), updated_at = now()
		WHERE user_id = $1`, userID, string(tier), subscriptionEndsAt)
}

func (r *entitlementRepository) SetSubscriptionEnd(ctx context.Context, userID string, endsAt *time.Time) error {
	return r.exec(ctx, userID, `UPDATE users SET subscription_ends_at = $2, updated_at = now() WHERE user_id = $1`, userID, endsAt)
}

func (r *entitlementRepository) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	return r.exec(ctx, userID, `UPDATE users SET stripe_customer_id = $2, updated_at = now() WHERE user_id = $1`, userID, customerID)
}

func (r *entitlementRepository) ResetUsage(ctx context.Context, userID string) error {
	return r.exec(ctx, userID, `UPDATE users SET essays_generated = 0, human_reviews_used = 0,
		period_start = now(), updated_at = now() WHERE user_id = $1`, userID)
}

func (r *entitlementRepository) ListSubscriptionsEndingBetween(ctx context.Context, from, to time.Time) ([]*models.UserEntitlement, error) {
	var ents []*models.UserEntitlement
	err := r.db.SelectContext(ctx, &ents, `SELECT `+userColumns+` FROM users
		WHERE subscription_ends_at >= $1 AND subscription_ends_at < $2 AND plan_tier <> 'free'
		ORDER BY subscription_ends_at`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list users with ending subscriptions: %w", err)
	}
	return ents, nil
}

func (r *entitlementRepository) exec(ctx context.Context, userID, query string, args ...interface{}) error {
	if userID == "" {
		return errors.New("userID cannot be empty for update operation")
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update user with ID '%s': %w", userID, err)
	}
	return expectRow(res, "user", userID)
}

func counterColumn(counter models.Counter) (string, error) {
	switch counter {
	case models.CounterEssays:
		return "essays_generated", nil
	case models.CounterHumanReviews:
		return "human_reviews_used", nil
	}
	return "", fmt.Errorf("unknown usage counter '%s'", counter)
}
