package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReviewStatusTransitions(t *testing.T) {
	tests := []struct {
		from ReviewStatus
		to   ReviewStatus
		want bool
	}{
		{ReviewNone, ReviewPending, true},
		{"", ReviewPending, true},
		{ReviewPending, ReviewInProgress, true},
		{ReviewInProgress, ReviewCompleted, true},
		{ReviewCompleted, ReviewPending, true},
		{ReviewNone, ReviewCompleted, false},
		{ReviewPending, ReviewNone, false},
		{ReviewPending, ReviewPending, false},
		{ReviewInProgress, ReviewPending, false},
		{ReviewCompleted, ReviewInProgress, false},
		{ReviewCompleted, ReviewNone, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestPlanTier(t *testing.T) {
	assert.True(t, PlanFree.Valid())
	assert.False(t, PlanFree.Paid())
	assert.True(t, PlanMonthly.Paid())
	assert.True(t, PlanYearly.Paid())
	assert.False(t, PlanTier("enterprise").Valid())
}

func TestEntitlementUsed(t *testing.T) {
	e := &UserEntitlement{EssaysGenerated: 3, HumanReviewsUsed: 1}
	assert.Equal(t, 3, e.Used(CounterEssays))
	assert.Equal(t, 1, e.Used(CounterHumanReviews))
	assert.Equal(t, 0, e.Used(Counter("other")))
}
