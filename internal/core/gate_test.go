package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synera-br/splennet-backend/internal/models"
)

func TestCheckUsage(t *testing.T) {
	tests := []struct {
		name   string
		limits models.PlanLimits
		essays int
		action models.ActionType
		want   UsageDecision
	}{
		{"free unused", models.PlanLimits{Essays: 1}, 0, models.ActionEssay, UsageDecision{CanProceed: true, Remaining: 1, Used: 0, Limit: 1}},
		{"free used", models.PlanLimits{Essays: 1}, 1, models.ActionEssay, UsageDecision{CanProceed: false, Remaining: 0, Used: 1, Limit: 1}},
		{"over limit clamps remaining", models.PlanLimits{Essays: 1}, 3, models.ActionEssay, UsageDecision{CanProceed: false, Remaining: 0, Used: 3, Limit: 1}},
		{"zero reviews", models.PlanLimits{Essays: 1, HumanReviews: 0}, 0, models.ActionHumanReview, UsageDecision{CanProceed: false, Remaining: 0, Used: 0, Limit: 0}},
		{"unlimited", models.PlanLimits{Essays: models.Unlimited}, 1000, models.ActionEssay, UsageDecision{CanProceed: true, Remaining: models.Unlimited, Used: 1000, Limit: models.Unlimited}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ent := &models.UserEntitlement{PlanLimits: tt.limits, EssaysGenerated: tt.essays}
			got, err := CheckUsage(ent, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckUsage_Invariants(t *testing.T) {
	for limit := models.Unlimited; limit <= 6; limit++ {
		for used := 0; used <= 8; used++ {
			ent := &models.UserEntitlement{PlanLimits: models.PlanLimits{Essays: limit}, EssaysGenerated: used}
			d, err := CheckUsage(ent, models.ActionEssay)
			require.NoError(t, err)
			if limit == models.Unlimited {
				assert.True(t, d.CanProceed)
				assert.Equal(t, models.Unlimited, d.Remaining)
				continue
			}
			assert.GreaterOrEqual(t, d.Remaining, 0)
			assert.Equal(t, d.Remaining > 0, d.CanProceed, "limit=%d used=%d", limit, used)
		}
	}
}

func TestCheckUsage_Unlimited1000Times(t *testing.T) {
	ent := &models.UserEntitlement{PlanTier: models.PlanMonthly, PlanLimits: models.PlanLimits{Essays: models.Unlimited, HumanReviews: 5}}
	for i := 0; i < 1000; i++ {
		d, err := CheckUsage(ent, models.ActionEssay)
		require.NoError(t, err)
		require.True(t, d.CanProceed)
		require.Equal(t, models.Unlimited, d.Remaining)
		ent.EssaysGenerated++
	}
}

func TestCheckUsage_Errors(t *testing.T) {
	_, err := CheckUsage(nil, models.ActionEssay)
	assert.ErrorIs(t, err, ErrEntitlementUnavailable)

	_, err = CheckUsage(&models.UserEntitlement{}, models.ActionType("video"))
	assert.ErrorIs(t, err, ErrValidationFailed)
	assert.ErrorIs(t, err, ErrUnknownAction)
}
