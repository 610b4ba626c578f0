package models

// Identity is what the identity provider asserts about the caller of a request.
type Identity struct {
	UID      string
	Email    string
	Name     string
	PhotoURL string
	Reviewer bool
}

// CurrentUser is the reconciled view of a user returned to clients.
// Identity fields come from the identity provider, plan and usage come from the
// stored entitlement.
type CurrentUser struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	FullName        string     `json:"fullName"`
	PhotoURL        string     `json:"photoURL,omitempty"`
	Reviewer        bool       `json:"reviewer"`
	PlanTier        PlanTier   `json:"planTier"`
	PlanLimits      PlanLimits `json:"planLimits"`
	Usage           UsageView  `json:"usage"`
	SubscribedUntil string     `json:"subscribedUntil,omitempty"`
}

// UsageView summarises the remaining allowance for each gated action.
type UsageView struct {
	EssaysGenerated       int `json:"essaysGenerated"`
	EssaysRemaining       int `json:"essaysRemaining"`
	HumanReviewsUsed      int `json:"humanReviewsUsed"`
	HumanReviewsRemaining int `json:"humanReviewsRemaining"`
}
