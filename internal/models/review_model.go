package models

import "time"

// ReviewRequest is a user's request for a human reviewer to read one of their essays.
type ReviewRequest struct {
	ID           string       `json:"id" firestore:"-" db:"id"`
	EssayID      string       `json:"essayId" firestore:"essayId" db:"essay_id"`
	UserID       string       `json:"userId" firestore:"userId" db:"user_id"`
	Instructions string       `json:"instructions" firestore:"instructions" db:"instructions"`
	Status       ReviewStatus `json:"status" firestore:"status" db:"status"`
	ReviewerID   string       `json:"reviewerId,omitempty" firestore:"reviewerId" db:"reviewer_id"`
	Feedback     string       `json:"feedback,omitempty" firestore:"feedback" db:"feedback"`
	CreatedAt    time.Time    `json:"createdAt" firestore:"createdAt,serverTimestamp" db:"created_at"`
	UpdatedAt    time.Time    `json:"updatedAt" firestore:"updatedAt,serverTimestamp" db:"updated_at"`
	CompletedAt  *time.Time   `json:"completedAt,omitempty" firestore:"completedAt" db:"completed_at"`
}
