package models

import "time"

// Usage event actions.
const (
	EventAccountCreated       = "account_created"
	EventEssayGenerated       = "essay_generated"
	EventEssayImproved        = "essay_improved"
	EventEssaySaveFailed      = "essay_save_failed"
	EventHumanReviewRequested = "human_review_requested"
	EventReviewStatusFailed   = "review_status_update_failed"
	EventUsageIncrementFailed = "usage_increment_failed"
	EventReviewCompleted      = "human_review_completed"
	EventPlanChanged          = "plan_changed"
	EventUsageReset           = "usage_reset"
)

// UsageEvent is an append-only ledger entry describing something a user did or
// a secondary write that failed and needs reconciliation.
type UsageEvent struct {
	ID        string                 `json:"id" firestore:"-" db:"id"`
	Timestamp time.Time              `json:"timestamp" firestore:"timestamp,serverTimestamp" db:"created_at"`
	UserID    string                 `json:"userId" firestore:"userId" db:"user_id"`
	Action    string                 `json:"action" firestore:"action" db:"action"`
	TargetID  string                 `json:"targetId,omitempty" firestore:"targetId,omitempty" db:"target_id"`
	Details   map[string]interface{} `json:"details,omitempty" firestore:"details,omitempty" db:"-"`
}
