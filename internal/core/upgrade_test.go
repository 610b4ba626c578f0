package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synera-br/splennet-backend/internal/models"
)

func TestBuildUpgradePrompt(t *testing.T) {
	catalog, err := LoadPlanCatalog("")
	require.NoError(t, err)

	tests := []struct {
		name     string
		tier     models.PlanTier
		action   models.ActionType
		left     int
		title    string
		message  string
		blocking bool
		offers   []models.PlanTier
	}{
		{
			name: "free essays exhausted", tier: models.PlanFree, action: models.ActionEssay, left: 0,
			title:    "Essay Limit Reached",
			message:  "You've used all your free plan essays. Upgrade to continue creating essays.",
			blocking: true, offers: []models.PlanTier{models.PlanMonthly, models.PlanYearly},
		},
		{
			name: "monthly reviews exhausted", tier: models.PlanMonthly, action: models.ActionHumanReview, left: 0,
			title:    "Human Review Limit Reached",
			message:  "You've used all your monthly plan human reviews. Upgrade to get professional feedback.",
			blocking: true, offers: []models.PlanTier{models.PlanYearly},
		},
		{
			name: "one essay left", tier: models.PlanFree, action: models.ActionEssay, left: 1,
			title:   "Upgrade to Continue",
			message: "You have 1 essay remaining on your free plan.",
			offers:  []models.PlanTier{models.PlanMonthly, models.PlanYearly},
		},
		{
			name: "several reviews left", tier: models.PlanYearly, action: models.ActionHumanReview, left: 3,
			title:   "Upgrade to Continue",
			message: "You have 3 human reviews remaining on your yearly plan.",
			offers:  []models.PlanTier{models.PlanMonthly},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := BuildUpgradePrompt(catalog, tt.tier, tt.action, tt.left)
			assert.Equal(t, tt.title, p.Title)
			assert.Equal(t, tt.message, p.Message)
			assert.Equal(t, tt.blocking, p.Blocking)
			var tiers []models.PlanTier
			for _, o := range p.Offers {
				tiers = append(tiers, o.Tier)
			}
			assert.Equal(t, tt.offers, tiers)
		})
	}
}
