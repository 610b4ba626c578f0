package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"github.com/synera-br/splennet-backend/internal/db"
	"github.com/synera-br/splennet-backend/internal/models"
)

// Billing errors.
var (
	ErrStripeClient        = errors.New("stripe client operation failed")
	ErrWebhookProcessing   = errors.New("stripe webhook processing failed")
	ErrWebhookSignature    = errors.New("stripe webhook signature verification failed")
	ErrUserStripeNotLinked = errors.New("user does not have a Stripe customer ID")
)

// Checkout metadata keys. They travel with the checkout session and come back in the webhook.
const (
	metadataUserID   = "user_id"
	metadataPlanTier = "plan_tier"
)

// billingService implements the BillingService interface with Stripe.
type billingService struct {
	entitlements db.EntitlementRepository
	webhooks     db.WebhookEventRepository
	catalog      *PlanCatalog
	gateway      PaymentGateway
	usage        UsageService
	notifier     Notifier
	clientURL    string
	logger       *zap.Logger
}

// NewBillingService creates a new BillingService instance.
// clientURL is the web app base URL used for checkout and portal redirects.
// Stripe events are handled once per event ID when the store has a WebhookEventRepository.
func NewBillingService(
	store *db.Store,
	catalog *PlanCatalog,
	gateway PaymentGateway,
	usage UsageService,
	notifier Notifier,
	clientURL string,
	logger *zap.Logger,
) BillingService {
	return &billingService{
		entitlements: store.Entitlements,
		webhooks:     store.Webhooks,
		catalog:      catalog,
		gateway:      gateway,
		usage:        usage,
		notifier:     notifier,
		clientURL:    strings.TrimRight(clientURL, "/"),
		logger:       logger,
	}
}

// CreateCheckoutSession starts a subscription checkout for a paid tier and returns its URL.
// A Stripe customer is created for the user on first checkout.
func (s *billingService) CreateCheckoutSession(ctx context.Context, userID string, tier models.PlanTier) (string, error) {
	if userID == "" {
		return "", ErrAuthRequired
	}
	plan, ok := s.catalog.Plan(tier)
	if !ok || !tier.Paid() || plan.StripePriceID == "" {
		return "", fmt.Errorf("%w: tier '%s' cannot be purchased", ErrPlanNotFound, tier)
	}

	ent, err := s.getEntitlement(ctx, userID)
	if err != nil {
		return "", err
	}
	if ent.PlanTier == tier {
		return "", validationErr("user is already on the %s plan", tier)
	}

	customerID := ent.StripeCustomerID
	if customerID == "" {
		customerID, err = s.gateway.CreateCustomer(ctx, userID, ent.Email)
		if err != nil {
			return "", fmt.Errorf("%w: create customer for user '%s': %v", ErrStripeClient, userID, err)
		}
		if err := s.entitlements.SetStripeCustomerID(ctx, userID, customerID); err != nil {
			return "", fmt.Errorf("failed to store Stripe customer of user '%s': %w", userID, err)
		}
	}

	url, err := s.gateway.CreateCheckoutSession(ctx, CheckoutParams{
		CustomerID: customerID,
		PriceID:    plan.StripePriceID,
		UserID:     userID,
		Tier:       tier,
		SuccessURL: s.clientURL + "/dashboard?checkout=success",
		CancelURL:  s.clientURL + "/pricing?checkout=cancelled",
	})
	if err != nil {
		return "", fmt.Errorf("%w: checkout session for user '%s': %v", ErrStripeClient, userID, err)
	}
	return url, nil
}

// CreatePortalSession returns the URL of the Stripe customer portal for the user.
func (s *billingService) CreatePortalSession(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", ErrAuthRequired
	}
	ent, err := s.getEntitlement(ctx, userID)
	if err != nil {
		return "", err
	}
	if ent.StripeCustomerID == "" {
		return "", fmt.Errorf("%w for user %s", ErrUserStripeNotLinked, userID)
	}
	url, err := s.gateway.CreatePortalSession(ctx, ent.StripeCustomerID, s.clientURL+"/subscription")
	if err != nil {
		return "", fmt.Errorf("%w: portal session for user '%s': %v", ErrStripeClient, userID, err)
	}
	return url, nil
}

// HandleStripeWebhook verifies and applies a Stripe event.
// Events for customers the service does not know are acknowledged and ignored.
func (s *billingService) HandleStripeWebhook(ctx context.Context, signature string, payload []byte) error {
	event, err := s.gateway.ConstructEvent(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookSignature, err)
	}
	if event.Data == nil {
		return fmt.Errorf("%w: event '%s' has no data", ErrWebhookProcessing, event.ID)
	}
	s.logger.Info("stripe webhook received", zap.String("eventID", event.ID), zap.String("type", string(event.Type)))

	if s.webhooks == nil {
		return s.dispatch(ctx, event)
	}
	first, err := s.webhooks.Claim(ctx, event.ID, string(event.Type))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWebhookProcessing, err)
	}
	if !first {
		s.logger.Info("stripe event already handled", zap.String("eventID", event.ID))
		return nil
	}
	if err := s.dispatch(ctx, event); err != nil {
		if relErr := s.webhooks.Release(context.WithoutCancel(ctx), event.ID); relErr != nil {
			s.logger.Error("failed to release stripe event", zap.String("eventID", event.ID), zap.Error(relErr))
		}
		return err
	}
	return nil
}

// dispatch applies one verified event to the user's entitlement.
func (s *billingService) dispatch(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("%w: invalid checkout session payload: %v", ErrWebhookProcessing, err)
		}
		return s.checkoutCompleted(ctx, &sess)

	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%w: invalid subscription payload: %v", ErrWebhookProcessing, err)
		}
		return s.subscriptionUpdated(ctx, &sub)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%w: invalid subscription payload: %v", ErrWebhookProcessing, err)
		}
		ent, err := s.byCustomer(ctx, sub.Customer)
		if err != nil || ent == nil {
			return err
		}
		if err := s.entitlements.SetPlan(ctx, ent.UserID, models.PlanFree, nil); err != nil {
			return fmt.Errorf("failed to downgrade user '%s': %w", ent.UserID, err)
		}
		s.planChanged(ctx, ent.UserID, ent.PlanTier, models.PlanFree)

	case "invoice.paid":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("%w: invalid invoice payload: %v", ErrWebhookProcessing, err)
		}
		if inv.BillingReason != stripe.InvoiceBillingReasonSubscriptionCycle {
			return nil
		}
		ent, err := s.byCustomer(ctx, inv.Customer)
		if err != nil || ent == nil {
			return err
		}
		if err := s.entitlements.ResetUsage(ctx, ent.UserID); err != nil {
			return fmt.Errorf("failed to reset usage of user '%s': %w", ent.UserID, err)
		}
		recordEvent(ctx, s.usage, s.logger, models.UsageEvent{UserID: ent.UserID, Action: models.EventUsageReset, TargetID: inv.ID})

	case "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return fmt.Errorf("%w: invalid invoice payload: %v", ErrWebhookProcessing, err)
		}
		ent, err := s.byCustomer(ctx, inv.Customer)
		if err != nil || ent == nil {
			return err
		}
		notify(ctx, s.notifier, s.logger, models.Notification{
			Type:     models.NotifyPaymentFailed,
			UserID:   ent.UserID,
			Email:    ent.Email,
			Name:     displayName(ent.FullName, ent.Email),
			PlanTier: ent.PlanTier,
			Data:     map[string]string{"invoiceId": inv.ID},
		})

	default:
		s.logger.Debug("ignoring stripe event", zap.String("type", string(event.Type)))
	}
	return nil
}

func (s *billingService) checkoutCompleted(ctx context.Context, sess *stripe.CheckoutSession) error {
	if sess.Mode != stripe.CheckoutSessionModeSubscription {
		s.logger.Info("ignoring non-subscription checkout", zap.String("sessionID", sess.ID), zap.String("mode", string(sess.Mode)))
		return nil
	}
	tier := models.PlanTier(sess.Metadata[metadataPlanTier])
	if !tier.Paid() {
		return fmt.Errorf("%w: checkout session '%s' has no paid plan tier", ErrWebhookProcessing, sess.ID)
	}

	userID := sess.Metadata[metadataUserID]
	if userID == "" {
		userID = sess.ClientReferenceID
	}
	var ent *models.UserEntitlement
	var err error
	if userID != "" {
		ent, err = s.getEntitlement(ctx, userID)
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Warn("checkout completed for unknown user", zap.String("userID", userID))
			return nil
		}
	} else {
		ent, err = s.byCustomer(ctx, sess.Customer)
	}
	if err != nil || ent == nil {
		return err
	}

	if sess.Customer != nil && sess.Customer.ID != "" && sess.Customer.ID != ent.StripeCustomerID {
		if err := s.entitlements.SetStripeCustomerID(ctx, ent.UserID, sess.Customer.ID); err != nil {
			return fmt.Errorf("failed to link Stripe customer of user '%s': %w", ent.UserID, err)
		}
	}
	if err := s.entitlements.SetPlan(ctx, ent.UserID, tier, nil); err != nil {
		return fmt.Errorf("failed to upgrade user '%s' to %s: %w", ent.UserID, tier, err)
	}
	s.planChanged(ctx, ent.UserID, ent.PlanTier, tier)
	return nil
}

func (s *billingService) subscriptionUpdated(ctx context.Context, sub *stripe.Subscription) error {
	ent, err := s.byCustomer(ctx, sub.Customer)
	if err != nil || ent == nil {
		return err
	}

	// Only a cancelled subscription has an end date. A renewing one is open-ended.
	var endsAt *time.Time
	if sub.CancelAtPeriodEnd && sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		endsAt = &t
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		if plan, ok := s.catalog.ByPriceID(sub.Items.Data[0].Price.ID); ok && plan.Tier != ent.PlanTier && plan.Tier.Paid() {
			if err := s.entitlements.SetPlan(ctx, ent.UserID, plan.Tier, endsAt); err != nil {
				return fmt.Errorf("failed to switch user '%s' to %s: %w", ent.UserID, plan.Tier, err)
			}
			s.planChanged(ctx, ent.UserID, ent.PlanTier, plan.Tier)
			return nil
		}
	}
	if err := s.entitlements.SetSubscriptionEnd(ctx, ent.UserID, endsAt); err != nil {
		return fmt.Errorf("failed to update subscription end of user '%s': %w", ent.UserID, err)
	}
	return nil
}

// byCustomer finds the user linked to a Stripe customer. Unknown customers yield (nil, nil).
func (s *billingService) byCustomer(ctx context.Context, customer *stripe.Customer) (*models.UserEntitlement, error) {
	if customer == nil || customer.ID == "" {
		return nil, fmt.Errorf("%w: event has no customer", ErrWebhookProcessing)
	}
	ent, err := s.entitlements.GetByStripeCustomerID(ctx, customer.ID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.logger.Warn("stripe event for unknown customer", zap.String("customerID", customer.ID))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user of customer '%s': %w", customer.ID, err)
	}
	return ent, nil
}

func (s *billingService) getEntitlement(ctx context.Context, userID string) (*models.UserEntitlement, error) {
	ent, err := s.entitlements.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, fmt.Errorf("%w: user with ID '%s'", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("failed to get user by ID '%s' from repository: %w", userID, err)
	}
	return ent, nil
}

func (s *billingService) planChanged(ctx context.Context, userID string, from, to models.PlanTier) {
	s.logger.Info("plan changed", zap.String("userID", userID), zap.String("from", string(from)), zap.String("to", string(to)))
	recordEvent(ctx, s.usage, s.logger, models.UsageEvent{
		UserID:  userID,
		Action:  models.EventPlanChanged,
		Details: map[string]interface{}{"from": string(from), "to": string(to)},
	})
}
