// Package scheduler runs periodic background jobs.
package scheduler

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/synera-br/splennet-backend/internal/core"
	"github.com/synera-br/splennet-backend/internal/db"
	"github.com/synera-br/splennet-backend/internal/models"
)

const (
	// DefaultReminderSchedule runs the subscription sweep every day at 09:00 UTC.
	DefaultReminderSchedule = "0 9 * * *"
	// ReminderWindow is how far ahead the sweep looks for ending subscriptions.
	ReminderWindow = 72 * time.Hour
)

// SubscriptionReminder notifies paid users whose subscription is about to end.
type SubscriptionReminder struct {
	entitlements db.EntitlementRepository
	notifier     core.Notifier
	logger       *zap.Logger
	now          func() time.Time
}

// NewSubscriptionReminder creates the reminder job.
func NewSubscriptionReminder(entitlements db.EntitlementRepository, notifier core.Notifier, logger *zap.Logger) *SubscriptionReminder {
	return &SubscriptionReminder{
		entitlements: entitlements,
		notifier:     notifier,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Run sends one subscription_ending notification per subscription ending within ReminderWindow.
// It returns the number of notifications sent.
func (r *SubscriptionReminder) Run(ctx context.Context) (int, error) {
	now := r.now()
	ending, err := r.entitlements.ListSubscriptionsEndingBetween(ctx, now, now.Add(ReminderWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to list ending subscriptions: %w", err)
	}

	sent := 0
	for _, ent := range ending {
		if ent.SubscriptionEndsAt == nil {
			continue
		}
		daysLeft := int(math.Ceil(ent.SubscriptionEndsAt.Sub(now).Hours() / 24))
		err := r.notifier.Notify(ctx, models.Notification{
			Type:     models.NotifySubscriptionEnding,
			UserID:   ent.UserID,
			Email:    ent.Email,
			Name:     ent.FullName,
			PlanTier: ent.PlanTier,
			Data: map[string]string{
				"daysLeft": strconv.Itoa(daysLeft),
				"endsAt":   ent.SubscriptionEndsAt.Format("January 2, 2006"),
			},
			CreatedAt: now,
		})
		if err != nil {
			r.logger.Error("Failed to send subscription reminder", zap.String("userID", ent.UserID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

// Scheduler wraps a cron runner with the application jobs.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New creates a scheduler running in UTC.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		logger: logger,
	}
}

// AddSubscriptionReminder schedules the reminder job with a standard five-field cron spec.
func (s *Scheduler) AddSubscriptionReminder(spec string, job *SubscriptionReminder) error {
	if spec == "" {
		spec = DefaultReminderSchedule
	}
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		s.logger.Info("Starting subscription reminder sweep")
		sent, err := job.Run(ctx)
		if err != nil {
			s.logger.Error("Subscription reminder sweep failed", zap.Error(err))
			return
		}
		s.logger.Info("Subscription reminder sweep completed", zap.Int("sent", sent))
	})
	if err != nil {
		return fmt.Errorf("invalid reminder schedule '%s': %w", spec, err)
	}
	return nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("Scheduler stopped before running jobs finished")
	}
}
