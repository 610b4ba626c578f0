package core

import (
	"fmt"

	"github.com/synera-br/splennet-backend/internal/models"
)

// UpgradeOffer is one paid plan presented to a user who hit a limit.
type UpgradeOffer struct {
	Tier        models.PlanTier   `json:"tier"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Price       string            `json:"price"`
	Interval    string            `json:"interval"`
	Limits      models.PlanLimits `json:"limits"`
}

// UpgradePrompt is the copy and plan list shown instead of a gated action.
type UpgradePrompt struct {
	Action    models.ActionType `json:"action"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Remaining int               `json:"remaining"`
	// Blocking is true when the user cannot continue without upgrading.
	Blocking bool           `json:"blocking"`
	Offers   []UpgradeOffer `json:"offers"`
}

// BuildUpgradePrompt selects the copy for an action and the remaining allowance on the
// given tier, and lists the paid plans. Paid plans the user is already on are left out.
func BuildUpgradePrompt(catalog *PlanCatalog, current models.PlanTier, action models.ActionType, remaining int) UpgradePrompt {
	noun := "essay"
	if action == models.ActionHumanReview {
		noun = "human review"
	}
	planName := string(models.PlanFree)
	if current.Valid() {
		planName = string(current)
	}

	p := UpgradePrompt{Action: action, Remaining: remaining, Blocking: remaining == 0}
	if remaining == 0 {
		if action == models.ActionHumanReview {
			p.Title = "Human Review Limit Reached"
			p.Message = fmt.Sprintf("You've used all your %s plan human reviews. Upgrade to get professional feedback.", planName)
		} else {
			p.Title = "Essay Limit Reached"
			p.Message = fmt.Sprintf("You've used all your %s plan essays. Upgrade to continue creating essays.", planName)
		}
	} else {
		p.Title = "Upgrade to Continue"
		plural := "s"
		if remaining == 1 {
			plural = ""
		}
		p.Message = fmt.Sprintf("You have %d %s%s remaining on your %s plan.", remaining, noun, plural, planName)
	}

	for _, plan := range catalog.Paid() {
		if plan.Tier == current {
			continue
		}
		p.Offers = append(p.Offers, UpgradeOffer{
			Tier:        plan.Tier,
			Name:        plan.Name,
			Description: plan.Description,
			Price:       plan.Price,
			Interval:    plan.Interval,
			Limits:      plan.Limits,
		})
	}
	return p
}
