package api

import (
	"github.com/synera-br/splennet-backend/internal/core"
	"github.com/synera-br/splennet-backend/internal/models"
)

// ErrorResponse is a generic structure for returning errors via API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// LimitReachedResponse is returned with 402 when the usage gate denies an action.
type LimitReachedResponse struct {
	Error   string             `json:"error"`
	Usage   core.UsageDecision `json:"usage"`
	Upgrade core.UpgradePrompt `json:"upgrade"`
}

// EssayResponse carries a generated essay with the usage after it was counted.
// Warnings lists writes that failed after generation succeeded.
type EssayResponse struct {
	Essay    *models.Essay      `json:"essay"`
	Usage    core.UsageDecision `json:"usage"`
	Warnings []string           `json:"warnings,omitempty"`
}

// ImproveResponse carries a revised essay. Warnings is set when the revision was not saved.
type ImproveResponse struct {
	Essay    *models.Essay `json:"essay"`
	Warnings []string      `json:"warnings,omitempty"`
}

// ReviewResponse carries a submitted review request.
type ReviewResponse struct {
	Review   *models.ReviewRequest `json:"review"`
	Usage    core.UsageDecision    `json:"usage"`
	Warnings []string              `json:"warnings,omitempty"`
}

// InitializeUserResponse is returned by POST /users/initialize.
type InitializeUserResponse struct {
	User    *models.CurrentUser `json:"user"`
	Created bool                `json:"created"`
}

// CreateCheckoutSessionRequest selects the plan to subscribe to.
type CreateCheckoutSessionRequest struct {
	Plan models.PlanTier `json:"plan" binding:"required"`
}

// URLResponse returns a redirect URL of the payment provider.
type URLResponse struct {
	URL string `json:"url"`
}

func warningMessages(warnings []error) []string {
	if len(warnings) == 0 {
		return nil
	}
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.Error())
	}
	return out
}
