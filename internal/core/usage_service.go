package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/synera-br/splennet-backend/internal/db"
	"github.com/synera-br/splennet-backend/internal/metrics"
	"github.com/synera-br/splennet-backend/internal/models"
)

// usageService implements the UsageService interface.
type usageService struct {
	usageRepo db.UsageRepository
}

// NewUsageService creates a new UsageService instance.
func NewUsageService(usageRepo db.UsageRepository) UsageService {
	return &usageService{usageRepo: usageRepo}
}

// Record appends an event to the usage ledger.
func (s *usageService) Record(ctx context.Context, event models.UsageEvent) error {
	if s.usageRepo == nil {
		return errors.New("UsageRepository not initialized in UsageService")
	}
	if event.UserID == "" || event.Action == "" {
		return fmt.Errorf("%w: usage event needs a user and an action", ErrValidationFailed)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := s.usageRepo.Create(ctx, event); err != nil {
		return fmt.Errorf("failed to create usage event via repository: %w", err)
	}
	return nil
}

// History limits.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// History returns the most recent events of a user. A non-positive limit means
// DefaultHistoryLimit and larger limits are capped at MaxHistoryLimit.
func (s *usageService) History(ctx context.Context, userID string, limit int) ([]*models.UsageEvent, error) {
	if s.usageRepo == nil {
		return nil, errors.New("UsageRepository not initialized in UsageService")
	}
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}
	events, err := s.usageRepo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage events for user '%s': %w", userID, err)
	}
	return events, nil
}

// recordEvent writes a usage event without failing the caller.
func recordEvent(ctx context.Context, usage UsageService, logger *zap.Logger, event models.UsageEvent) {
	if usage == nil {
		return
	}
	if err := usage.Record(ctx, event); err != nil {
		logger.Warn("failed to record usage event",
			zap.String("action", event.Action),
			zap.String("userID", event.UserID),
			zap.Error(err))
	}
}

// secondaryWriteFailed logs and records a best-effort write that failed after the primary
// action succeeded, so the counters can be reconciled later.
func secondaryWriteFailed(ctx context.Context, usage UsageService, logger *zap.Logger, write, action, userID, targetID string, err error) {
	metrics.RecordSecondaryWriteFailure(write)
	logger.Error("best-effort write failed",
		zap.String("write", write),
		zap.String("userID", userID),
		zap.String("targetID", targetID),
		zap.Error(err))
	recordEvent(ctx, usage, logger, models.UsageEvent{
		UserID:   userID,
		Action:   action,
		TargetID: targetID,
		Details:  map[string]interface{}{"error": err.Error()},
	})
}

// notify sends a notification without failing the caller.
func notify(ctx context.Context, notifier Notifier, logger *zap.Logger, n models.Notification) {
	if notifier == nil {
		return
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	err := notifier.Notify(ctx, n)
	metrics.RecordNotification(string(n.Type), err)
	if err != nil {
		logger.Warn("failed to send notification",
			zap.String("type", string(n.Type)),
			zap.String("userID", n.UserID),
			zap.Error(err))
	}
}
