package models

import "time"

// ReviewStatus tracks where an essay is in the human-review workflow.
type ReviewStatus string

const (
	ReviewNone       ReviewStatus = "none"
	ReviewPending    ReviewStatus = "pending"
	ReviewInProgress ReviewStatus = "in_review"
	ReviewCompleted  ReviewStatus = "completed"
)

// CanTransitionTo reports whether moving from s to next is allowed.
// Status only moves forward, except that a completed essay may be sent back to
// pending by a new review request.
func (s ReviewStatus) CanTransitionTo(next ReviewStatus) bool {
	switch s {
	case ReviewNone, "":
		return next == ReviewPending
	case ReviewPending:
		return next == ReviewInProgress
	case ReviewInProgress:
		return next == ReviewCompleted
	case ReviewCompleted:
		return next == ReviewPending
	}
	return false
}

// InFlight reports whether a review has been requested and not yet completed.
func (s ReviewStatus) InFlight() bool {
	return s == ReviewPending || s == ReviewInProgress
}

// Essay is a generated college-application essay owned by a single user.
type Essay struct {
	ID                string            `json:"id" firestore:"-" db:"id"`
	UserID            string            `json:"userId" firestore:"userId" db:"user_id"`
	School            string            `json:"school" firestore:"school" db:"school"`
	PromptText        string            `json:"prompt" firestore:"prompt" db:"prompt"`
	Responses         map[string]string `json:"responses" firestore:"responses" db:"-"`
	WordLimit         int               `json:"wordLimit" firestore:"wordLimit" db:"word_limit"`
	GeneratedText     string            `json:"generatedText" firestore:"generatedText" db:"generated_text"`
	ReviewStatus      ReviewStatus      `json:"reviewStatus" firestore:"reviewStatus" db:"review_status"`
	HumanReview       string            `json:"humanReview,omitempty" firestore:"humanReview" db:"human_review"`
	ReviewRequestedAt *time.Time        `json:"reviewRequestedAt,omitempty" firestore:"reviewRequestedAt" db:"review_requested_at"`
	CreatedAt         time.Time         `json:"createdAt" firestore:"createdAt,serverTimestamp" db:"created_at"`
	UpdatedAt         time.Time         `json:"updatedAt" firestore:"updatedAt,serverTimestamp" db:"updated_at"`
}
