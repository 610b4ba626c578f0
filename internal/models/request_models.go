package models

// GenerateEssayRequest is the payload for POST /essays.
type GenerateEssayRequest struct {
	School    string            `json:"school"`
	Prompt    string            `json:"prompt"`
	Responses map[string]string `json:"responses"`
	WordLimit int               `json:"wordLimit,omitempty"`
}

// UpdateEssayRequest is the payload for PUT /essays/:essayId.
type UpdateEssayRequest struct {
	GeneratedText string `json:"generatedText" binding:"required"`
}

// ImproveEssayRequest is the payload for POST /essays/:essayId/improve.
type ImproveEssayRequest struct {
	Feedback string `json:"feedback" binding:"required"`
}

// SubmitReviewRequest is the payload for POST /reviews.
type SubmitReviewRequest struct {
	EssayID      string `json:"essayId" binding:"required"`
	Instructions string `json:"instructions" binding:"required"`
}

// CompleteReviewRequest is the payload for POST /reviewer/reviews/:reviewId/complete.
type CompleteReviewRequest struct {
	Feedback string `json:"feedback" binding:"required"`
}

// SignUpRequest is the payload for POST /auth/signup.
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"fullName"`
}
