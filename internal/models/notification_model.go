package models

import "time"

// NotificationType selects the email template for a notification.
type NotificationType string

const (
	NotifyWelcome            NotificationType = "welcome"
	NotifyUsageLimitReached  NotificationType = "usage_limit_reached"
	NotifyReviewCompleted    NotificationType = "review_completed"
	NotifySubscriptionEnding NotificationType = "subscription_ending"
	NotifyPaymentFailed      NotificationType = "payment_failed"
)

// Notification is the message published for the notifier worker.
type Notification struct {
	Type      NotificationType  `json:"type"`
	UserID    string            `json:"userId"`
	Email     string            `json:"email"`
	Name      string            `json:"name"`
	PlanTier  PlanTier          `json:"planTier,omitempty"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
