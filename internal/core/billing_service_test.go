package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/synera-br/splennet-backend/internal/db"
	"github.com/synera-br/splennet-backend/internal/models"
)

func stripeEvent(t *testing.T, eventType string, object map[string]interface{}) stripe.Event {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	return stripe.Event{ID: "evt_" + uuid.NewString(), Type: stripe.EventType(eventType), Data: &stripe.EventData{Raw: raw}}
}

func (h *harness) billing(gateway *fakeGateway) BillingService {
	return NewBillingService(h.store, h.catalog, gateway, h.usage, h.notifier, "https://app.example.com/", h.logger)
}

func TestCreateCheckoutSession(t *testing.T) {
	h := newHarness(t)
	gateway := &fakeGateway{customerID: "cus_new"}
	svc := h.billing(gateway)
	ctx := context.Background()
	h.seedUser(t, "u1", models.PlanFree, 1, 0)

	url, err := svc.CreateCheckoutSession(ctx, "u1", models.PlanMonthly)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/price_monthly_pro_20", url)
	require.Len(t, gateway.checkout, 1)
	params := gateway.checkout[0]
	assert.Equal(t, "cus_new", params.CustomerID)
	assert.Equal(t, "u1", params.UserID)
	assert.Equal(t, models.PlanMonthly, params.Tier)
	assert.Equal(t, "https://app.example.com/dashboard?checkout=success", params.SuccessURL)
	assert.Equal(t, "cus_new", h.entitlement(t, "u1").StripeCustomerID)

	_, err = svc.CreateCheckoutSession(ctx, "u1", models.PlanFree)
	assert.ErrorIs(t, err, ErrPlanNotFound)
	_, err = svc.CreateCheckoutSession(ctx, "ghost", models.PlanYearly)
	assert.ErrorIs(t, err, ErrUserNotFound)

	gateway.err = errors.New("card_declined")
	_, err = svc.CreateCheckoutSession(ctx, "u1", models.PlanYearly)
	assert.ErrorIs(t, err, ErrStripeClient)
}

func TestCreateCheckoutSession_AlreadySubscribed(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "u1", models.PlanYearly, 0, 0)
	_, err := h.billing(&fakeGateway{}).CreateCheckoutSession(context.Background(), "u1", models.PlanYearly)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestCreatePortalSession(t *testing.T) {
	h := newHarness(t)
	gateway := &fakeGateway{}
	svc := h.billing(gateway)
	ctx := context.Background()
	h.seedUser(t, "u1", models.PlanMonthly, 0, 0)

	_, err := svc.CreatePortalSession(ctx, "u1")
	assert.ErrorIs(t, err, ErrUserStripeNotLinked)

	require.NoError(t, h.store.Entitlements.SetStripeCustomerID(ctx, "u1", "cus_1"))
	url, err := svc.CreatePortalSession(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://app.example.com/subscription?portal=cus_1", url)
}

func TestWebhook_SignatureFailure(t *testing.T) {
	h := newHarness(t)
	svc := h.billing(&fakeGateway{eventErr: errors.New("no signatures found")})
	err := svc.HandleStripeWebhook(context.Background(), "bad", []byte(`{}`))
	assert.ErrorIs(t, err, ErrWebhookSignature)
}

func TestWebhook_CheckoutCompletedUpgrades(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "u1", models.PlanFree, 1, 0)
	gateway := &fakeGateway{event: stripeEvent(t, "checkout.session.completed", map[string]interface{}{
		"id":       "cs_1",
		"object":   "checkout.session",
		"mode":     "subscription",
		"customer": "cus_9",
		"metadata": map[string]string{"user_id": "u1", "plan_tier": "monthly"},
	})}

	require.NoError(t, h.billing(gateway).HandleStripeWebhook(context.Background(), "sig", []byte("payload")))

	ent := h.entitlement(t, "u1")
	assert.Equal(t, models.PlanMonthly, ent.PlanTier)
	assert.Equal(t, "cus_9", ent.StripeCustomerID)
	assert.Zero(t, ent.EssaysGenerated)
	assert.Equal(t, models.Unlimited, ent.PlanLimits.Essays)
	assert.Contains(t, h.events(t, "u1"), models.EventPlanChanged)
}

func TestWebhook_CheckoutWithoutTierIsRejected(t *testing.T) {
	h := newHarness(t)
	h.seedUser(t, "u1", models.PlanFree, 0, 0)
	gateway := &fakeGateway{event: stripeEvent(t, "checkout.session.completed", map[string]interface{}{
		"id":       "cs_1",
		"mode":     "subscription",
		"metadata": map[string]string{"user_id": "u1"},
	})}

	err := h.billing(gateway).HandleStripeWebhook(context.Background(), "sig", nil)
	assert.ErrorIs(t, err, ErrWebhookProcessing)
	assert.Equal(t, models.PlanFree, h.entitlement(t, "u1").PlanTier)
}

func TestWebhook_SubscriptionLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedUser(t, "u1", models.PlanMonthly, 4, 2)
	require.NoError(t, h.store.Entitlements.SetStripeCustomerID(ctx, "u1", "cus_1"))
	gateway := &fakeGateway{}
	svc := h.billing(gateway)

	periodEnd := time.Date(2026, 11, 16, 0, 0, 0, 0, time.UTC)
	gateway.event = stripeEvent(t, "customer.subscription.updated", map[string]interface{}{
		"id":                   "sub_1",
		"customer":             "cus_1",
		"cancel_at_period_end": true,
		"current_period_end":   periodEnd.Unix(),
		"items": map[string]interface{}{
			"data": []map[string]interface{}{{"id": "si_1", "price": map[string]interface{}{"id": "price_monthly_pro_20"}}},
		},
	})
	require.NoError(t, svc.HandleStripeWebhook(ctx, "sig", nil))
	ent := h.entitlement(t, "u1")
	require.NotNil(t, ent.SubscriptionEndsAt)
	assert.True(t, periodEnd.Equal(*ent.SubscriptionEndsAt))
	assert.Equal(t, 4, ent.EssaysGenerated)

	gateway.event = stripeEvent(t, "invoice.paid", map[string]interface{}{
		"id":             "in_1",
		"customer":       "cus_1",
		"billing_reason": "subscription_cycle",
	})
	require.NoError(t, svc.HandleStripeWebhook(ctx, "sig", nil))
	ent = h.entitlement(t, "u1")
	assert.Zero(t, ent.EssaysGenerated)
	assert.Zero(t, ent.HumanReviewsUsed)

	gateway.event = stripeEvent(t, "invoice.payment_failed", map[string]interface{}{"id": "in_2", "customer": "cus_1"})
	require.NoError(t, svc.HandleStripeWebhook(ctx, "sig", nil))
	assert.Len(t, h.notifier.ofType(models.NotifyPaymentFailed), 1)

	gateway.event = stripeEvent(t, "customer.subscription.deleted", map[string]interface{}{"id": "sub_1", "customer": "cus_1"})
	require.NoError(t, svc.HandleStripeWebhook(ctx, "sig", nil))
	ent = h.entitlement(t, "u1")
	assert.Equal(t, models.PlanFree, ent.PlanTier)
	assert.Nil(t, ent.SubscriptionEndsAt)
}

func TestWebhook_PortalPlanSwitch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedUser(t, "u1", models.PlanMonthly, 4, 1)
	require.NoError(t, h.store.Entitlements.SetStripeCustomerID(ctx, "u1", "cus_1"))
	gateway := &fakeGateway{event: stripeEvent(t, "customer.subscription.updated", map[string]interface{}{
		"id":       "sub_1",
		"customer": "cus_1",
		"items": map[string]interface{}{
			"data": []map[string]interface{}{{"id": "si_1", "price": map[string]interface{}{"id": "price_yearly_pro_100"}}},
		},
	})}

	require.NoError(t, h.billing(gateway).HandleStripeWebhook(ctx, "sig", nil))
	ent := h.entitlement(t, "u1")
	assert.Equal(t, models.PlanYearly, ent.PlanTier)
	assert.Equal(t, 20, ent.PlanLimits.HumanReviews)
}

func TestWebhook_UnknownCustomerIsAcknowledged(t *testing.T) {
	h := newHarness(t)
	gateway := &fakeGateway{event: stripeEvent(t, "customer.subscription.deleted", map[string]interface{}{"id": "sub_1", "customer": "cus_unknown"})}
	assert.NoError(t, h.billing(gateway).HandleStripeWebhook(context.Background(), "sig", nil))

	gateway.event = stripeEvent(t, "charge.refunded", map[string]interface{}{"id": "ch_1"})
	assert.NoError(t, h.billing(gateway).HandleStripeWebhook(context.Background(), "sig", nil))
}

// flakyEntitlements fails ResetUsage a set number of times.
type flakyEntitlements struct {
	db.EntitlementRepository
	resetFailures int
}

func (r *flakyEntitlements) ResetUsage(ctx context.Context, userID string) error {
	if r.resetFailures > 0 {
		r.resetFailures--
		return errors.New("deadline exceeded")
	}
	return r.EntitlementRepository.ResetUsage(ctx, userID)
}

func TestWebhook_RedeliveredEventIsHandledOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedUser(t, "u1", models.PlanMonthly, 4, 2)
	require.NoError(t, h.store.Entitlements.SetStripeCustomerID(ctx, "u1", "cus_1"))
	gateway := &fakeGateway{}
	svc := h.billing(gateway)

	renewal := stripeEvent(t, "invoice.paid", map[string]interface{}{
		"id":             "in_1",
		"customer":       "cus_1",
		"billing_reason": "subscription_cycle",
	})
	gateway.event = renewal
	require.NoError(t, svc.HandleStripeWebhook(ctx, "sig", nil))
	assert.Zero(t, h.entitlement(t, "u1").EssaysGenerated)

	require.NoError(t, h.store.Entitlements.IncrementCounter(ctx, "u1", models.CounterEssays))
	require.NoError(t, svc.HandleStripeWebhook(ctx, "sig", nil))
	assert.Equal(t, 1, h.entitlement(t, "u1").EssaysGenerated)
}

func TestWebhook_FailedEventCanBeRetried(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedUser(t, "u1", models.PlanMonthly, 4, 2)
	require.NoError(t, h.store.Entitlements.SetStripeCustomerID(ctx, "u1", "cus_1"))
	h.store.Entitlements = &flakyEntitlements{EntitlementRepository: h.store.Entitlements, resetFailures: 1}
	gateway := &fakeGateway{event: stripeEvent(t, "invoice.paid", map[string]interface{}{
		"id":             "in_1",
		"customer":       "cus_1",
		"billing_reason": "subscription_cycle",
	})}
	svc := h.billing(gateway)

	assert.Error(t, svc.HandleStripeWebhook(ctx, "sig", nil))
	assert.Equal(t, 4, h.entitlement(t, "u1").EssaysGenerated)

	require.NoError(t, svc.HandleStripeWebhook(ctx, "sig", nil))
	assert.Zero(t, h.entitlement(t, "u1").EssaysGenerated)
}
