package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/synera-br/splennet-backend/internal/db"
	"github.com/synera-br/splennet-backend/internal/models"
)

const essayColumns = `id, user_id, school, prompt, responses, word_limit, generated_text, review_status,
	human_review, review_requested_at, created_at, updated_at`

// essayRow carries the JSONB responses column next to the mapped essay fields.
type essayRow struct {
	models.Essay
	ResponsesJSON []byte `db:"responses"`
}

func (row *essayRow) toModel() (*models.Essay, error) {
	essay := row.Essay
	if len(row.ResponsesJSON) > 0 {
		if err := json.Unmarshal(row.ResponsesJSON, &essay.Responses); err != nil {
			return nil, fmt.Errorf("failed to decode responses of essay '%s': %w", essay.ID, err)
		}
	}
	return &essay, nil
}

type essayRepository struct {
	db *sqlx.DB
}

// NewEssayRepository creates an EssayRepository on the essays table.
func NewEssayRepository(conn *sqlx.DB) db.EssayRepository {
	return &essayRepository{db: conn}
}

func (r *essayRepository) Create(ctx context.Context, essay *models.Essay) (string, error) {
	responses, err := jsonColumn(essay.Responses)
	if err != nil {
		return "", fmt.Errorf("failed to encode essay responses: %w", err)
	}
	id := uuid.NewString()
	now := time.Now().UTC()
	if essay.CreatedAt.IsZero() {
		essay.CreatedAt = now
	}
	essay.UpdatedAt = now
	if essay.ReviewStatus == "" {
		essay.ReviewStatus = models.ReviewNone
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO essays (`+essayColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		id, essay.UserID, essay.School, essay.PromptText, responses, essay.WordLimit, essay.GeneratedText,
		string(essay.ReviewStatus), essay.HumanReview, essay.ReviewRequestedAt, essay.CreatedAt, essay.UpdatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to create essay: %w", err)
	}
	essay.ID = id
	return id, nil
}

func (r *essayRepository) GetByID(ctx context.Context, essayID string) (*models.Essay, error) {
	var row essayRow
	err := r.db.GetContext(ctx, &row, `SELECT `+essayColumns+` FROM essays WHERE id = $1`, essayID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("essay with ID '%s' not found: %w", essayID, db.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get essay with ID '%s': %w", essayID, err)
	}
	return row.toModel()
}

func (r *essayRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Essay, error) {
	var rows []essayRow
	err := r.db.SelectContext(ctx, &rows, `SELECT `+essayColumns+` FROM essays
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list essays for user '%s': %w", userID, err)
	}
	essays := make([]*models.Essay, 0, len(rows))
	for i := range rows {
		essay, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		essays = append(essays, essay)
	}
	return essays, nil
}

func (r *essayRepository) UpdateText(ctx context.Context, essayID, text string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE essays SET generated_text = $2, updated_at = now() WHERE id = $1`, essayID, text)
	if err != nil {
		return fmt.Errorf("failed to update essay with ID '%s': %w", essayID, err)
	}
	return expectRow(res, "essay", essayID)
}

func (r *essayRepository) UpdateReviewStatus(ctx context.Context, essayID string, status models.ReviewStatus, feedback string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE essays SET
		review_status = $2,
		human_review = CASE WHEN $3 = '' THEN human_review ELSE $3 END,
		review_requested_at = CASE WHEN $2 = 'pending' THEN now() ELSE review_requested_at END,
		updated_at = now()
		WHERE id = $1`, essayID, string(status), feedback)
	if err != nil {
		return fmt.Errorf("failed to update review status of essay '%s': %w", essayID, err)
	}
	return expectRow(res, "essay", essayID)
}
