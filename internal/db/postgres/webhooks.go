package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/synera-br/splennet-backend/internal/db"
)

type webhookEventRepository struct {
	db *sqlx.DB
}

// NewWebhookEventRepository creates a WebhookEventRepository on the stripe_events table.
func NewWebhookEventRepository(conn *sqlx.DB) db.WebhookEventRepository {
	return &webhookEventRepository{db: conn}
}

func (r *webhookEventRepository) Claim(ctx context.Context, eventID, eventType string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO stripe_events (id, type) VALUES ($1, $2) ON CONFLICT (id) DO NOTHING`,
		eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("failed to record webhook event '%s': %w", eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows for webhook event '%s': %w", eventID, err)
	}
	return n == 1, nil
}

func (r *webhookEventRepository) Release(ctx context.Context, eventID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM stripe_events WHERE id = $1`, eventID); err != nil {
		return fmt.Errorf("failed to release webhook event '%s': %w", eventID, err)
	}
	return nil
}
