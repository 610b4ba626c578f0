package models

import "time"

// PlanTier is the subscription level that determines a user's limits.
type PlanTier string

const (
	PlanFree    PlanTier = "free"
	PlanMonthly PlanTier = "monthly"
	PlanYearly  PlanTier = "yearly"
)

// Valid reports whether t is one of the known tiers.
func (t PlanTier) Valid() bool {
	switch t {
	case PlanFree, PlanMonthly, PlanYearly:
		return true
	}
	return false
}

// Paid reports whether t is a subscription tier.
func (t PlanTier) Paid() bool {
	return t == PlanMonthly || t == PlanYearly
}

// Unlimited is the sentinel limit value meaning "no limit".
const Unlimited = -1

// PlanLimits holds the per-period allowance of a tier. A value of Unlimited disables the check.
type PlanLimits struct {
	Essays       int `json:"essays" yaml:"essays"`
	HumanReviews int `json:"humanReviews" yaml:"humanReviews"`
}

// Counter names a usage counter on the entitlement record.
type Counter string

const (
	CounterEssays       Counter = "essaysGenerated"
	CounterHumanReviews Counter = "humanReviewsUsed"
)

// UserEntitlement is the persisted profile of a user together with the usage counters
// that are checked against the limits of their plan.
// The document ID (Firestore) or primary key (Postgres) is the identity provider UID.
type UserEntitlement struct {
	UserID             string     `json:"userId" firestore:"-" db:"user_id"`
	Email              string     `json:"email" firestore:"email" db:"email"`
	FullName           string     `json:"fullName,omitempty" firestore:"fullName" db:"full_name"`
	PhotoURL           string     `json:"photoURL,omitempty" firestore:"photoURL" db:"photo_url"`
	PlanTier           PlanTier   `json:"planTier" firestore:"planTier" db:"plan_tier"`
	EssaysGenerated    int        `json:"essaysGenerated" firestore:"essaysGenerated" db:"essays_generated"`
	HumanReviewsUsed   int        `json:"humanReviewsUsed" firestore:"humanReviewsUsed" db:"human_reviews_used"`
	StripeCustomerID   string     `json:"stripeCustomerId,omitempty" firestore:"stripeCustomerId" db:"stripe_customer_id"`
	SubscriptionEndsAt *time.Time `json:"subscriptionEndsAt,omitempty" firestore:"subscriptionEndsAt" db:"subscription_ends_at"`
	PeriodStart        time.Time  `json:"periodStart" firestore:"periodStart" db:"period_start"`
	CreatedAt          time.Time  `json:"createdAt" firestore:"createdAt,serverTimestamp" db:"created_at"`
	UpdatedAt          time.Time  `json:"updatedAt" firestore:"updatedAt,serverTimestamp" db:"updated_at"`

	// PlanLimits is derived from PlanTier through the plan catalog and never stored.
	PlanLimits PlanLimits `json:"planLimits" firestore:"-" db:"-"`
}

// Used returns the counter value for c.
func (e *UserEntitlement) Used(c Counter) int {
	switch c {
	case CounterEssays:
		return e.EssaysGenerated
	case CounterHumanReviews:
		return e.HumanReviewsUsed
	}
	return 0
}

// ActionType names a gated action.
type ActionType string

const (
	ActionEssay       ActionType = "essay"
	ActionHumanReview ActionType = "human_review"
)

// Counter returns the usage counter consumed by the action.
func (a ActionType) Counter() (Counter, bool) {
	switch a {
	case ActionEssay:
		return CounterEssays, true
	case ActionHumanReview:
		return CounterHumanReviews, true
	}
	return "", false
}

// Limit returns the limit that applies to the action.
func (l PlanLimits) Limit(a ActionType) int {
	if a == ActionHumanReview {
		return l.HumanReviews
	}
	return l.Essays
}
