package core

import (
	"fmt"

	"github.com/synera-br/splennet-backend/internal/models"
)

// UsageDecision is the answer of the usage gate for one action.
// Remaining is models.Unlimited when the plan has no limit for the action.
type UsageDecision struct {
	CanProceed bool `json:"canProceed"`
	Remaining  int  `json:"remaining"`
	Used       int  `json:"used"`
	Limit      int  `json:"limit"`
}

// CheckUsage decides whether the entitlement allows one more action of the given type.
// It has no side effects. A nil entitlement yields ErrEntitlementUnavailable so callers
// can tell a missing record apart from a reached limit.
func CheckUsage(ent *models.UserEntitlement, action models.ActionType) (UsageDecision, error) {
	if ent == nil {
		return UsageDecision{}, ErrEntitlementUnavailable
	}
	counter, ok := action.Counter()
	if !ok {
		return UsageDecision{}, fmt.Errorf("%w: %w %q", ErrValidationFailed, ErrUnknownAction, action)
	}

	used := ent.Used(counter)
	limit := ent.PlanLimits.Limit(action)
	if limit == models.Unlimited {
		return UsageDecision{CanProceed: true, Remaining: models.Unlimited, Used: used, Limit: limit}, nil
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return UsageDecision{
		CanProceed: used < limit,
		Remaining:  remaining,
		Used:       used,
		Limit:      limit,
	}, nil
}
