package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/synera-br/splennet-backend/internal/db"
	"github.com/synera-br/splennet-backend/internal/models"
)

type usageRow struct {
	models.UsageEvent
	DetailsJSON []byte `db:"details"`
}

type usageRepository struct {
	db *sqlx.DB
}

// NewUsageRepository creates a UsageRepository on the usage_events table.
func NewUsageRepository(conn *sqlx.DB) db.UsageRepository {
	return &usageRepository{db: conn}
}

func (r *usageRepository) Create(ctx context.Context, event models.UsageEvent) error {
	if event.UserID == "" {
		return errors.New("usage event needs a user ID")
	}
	details, err := jsonColumn(event.Details)
	if err != nil {
		return fmt.Errorf("failed to encode usage event details: %w", err)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO usage_events (id, user_id, action, target_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.NewString(), event.UserID, event.Action, event.TargetID, details, event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to create usage event '%s': %w", event.Action, err)
	}
	return nil
}

func (r *usageRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.UsageEvent, error) {
	var rows []usageRow
	err := r.db.SelectContext(ctx, &rows, `SELECT id, user_id, action, target_id, details, created_at
		FROM usage_events WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage events for user '%s': %w", userID, err)
	}
	events := make([]*models.UsageEvent, 0, len(rows))
	for i := range rows {
		event := rows[i].UsageEvent
		if len(rows[i].DetailsJSON) > 0 {
			if err := json.Unmarshal(rows[i].DetailsJSON, &event.Details); err != nil {
				return nil, fmt.Errorf("failed to decode details of usage event '%s': %w", event.ID, err)
			}
		}
		events = append(events, &event)
	}
	return events, nil
}
