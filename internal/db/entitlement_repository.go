package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/synera-br/splennet-backend/internal/models"
)

const usersCollection = "users"

// firestoreEntitlementRepository implements the EntitlementRepository interface using Firestore.
// The Firebase Auth UID is the document ID.
type firestoreEntitlementRepository struct {
	client *firestore.Client
}

// NewFirestoreEntitlementRepository creates a new instance of firestoreEntitlementRepository.
func NewFirestoreEntitlementRepository(client *firestore.Client) EntitlementRepository {
	return &firestoreEntitlementRepository{client: client}
}

// GetByID retrieves the entitlement document of a user.
func (r *firestoreEntitlementRepository) GetByID(ctx context.Context, userID string) (*models.UserEntitlement, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user with ID '%s': %w", userID, err)
	}
	return decodeEntitlement(docSnap)
}

// GetByStripeCustomerID finds the user linked to a Stripe customer.
func (r *firestoreEntitlementRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*models.UserEntitlement, error) {
	if customerID == "" {
		return nil, errors.New("customerID cannot be empty")
	}
	iter := r.client.Collection(usersCollection).Where("stripeCustomerId", "==", customerID).Limit(1).Documents(ctx)
	defer iter.Stop()

	docSnap, err := iter.Next()
	if err == iterator.Done {
		return nil, fmt.Errorf("user with Stripe customer '%s' not found: %w", customerID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by Stripe customer '%s': %w", customerID, err)
	}
	return decodeEntitlement(docSnap)
}

// Create adds the entitlement document. It fails with ErrAlreadyExists if the user has one.
func (r *firestoreEntitlementRepository) Create(ctx context.Context, ent *models.UserEntitlement) error {
	if ent.UserID == "" {
		return errors.New("user ID cannot be empty for Create operation")
	}
	_, err := r.client.Collection(usersCollection).Doc(ent.UserID).Create(ctx, ent)
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return fmt.Errorf("user with ID '%s' already exists: %w", ent.UserID, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create user with ID '%s': %w", ent.UserID, err)
	}
	return nil
}

// IncrementCounter adds one to the counter with a server-side increment.
func (r *firestoreEntitlementRepository) IncrementCounter(ctx context.Context, userID string, counter models.Counter) error {
	return r.update(ctx, userID, []firestore.Update{
		{Path: string(counter), Value: firestore.Increment(1)},
	})
}

// SetPlan changes the tier and starts a new period with zeroed counters.
func (r *firestoreEntitlementRepository) SetPlan(ctx context.Context, userID string, tier models.PlanTier, subscriptionEndsAt *time.Time) error {
	return r.update(ctx, userID, []firestore.Update{
		{Path: "planTier", Value: string(tier)},
		{Path: "subscriptionEndsAt", Value: subscriptionEndsAt},
		{Path: string(models.CounterEssays), Value: 0},
		{Path: string(models.CounterHumanReviews), Value: 0},
		{Path: "periodStart", Value: time.Now().UTC()},
	})
}

// SetSubscriptionEnd stores the scheduled end of the subscription. nil clears it.
func (r *firestoreEntitlementRepository) SetSubscriptionEnd(ctx context.Context, userID string, endsAt *time.Time) error {
	return r.update(ctx, userID, []firestore.Update{
		{Path: "subscriptionEndsAt", Value: endsAt},
	})
}

// SetStripeCustomerID links the user to a Stripe customer.
func (r *firestoreEntitlementRepository) SetStripeCustomerID(ctx context.Context, userID, customerID string) error {
	return r.update(ctx, userID, []firestore.Update{
		{Path: "stripeCustomerId", Value: customerID},
	})
}

// ResetUsage zeroes both counters at the start of a billing period.
func (r *firestoreEntitlementRepository) ResetUsage(ctx context.Context, userID string) error {
	return r.update(ctx, userID, []firestore.Update{
		{Path: string(models.CounterEssays), Value: 0},
		{Path: string(models.CounterHumanReviews), Value: 0},
		{Path: "periodStart", Value: time.Now().UTC()},
	})
}

// ListSubscriptionsEndingBetween returns users whose subscription ends in [from, to).
func (r *firestoreEntitlementRepository) ListSubscriptionsEndingBetween(ctx context.Context, from, to time.Time) ([]*models.UserEntitlement, error) {
	iter := r.client.Collection(usersCollection).
		Where("subscriptionEndsAt", ">=", from).
		Where("subscriptionEndsAt", "<", to).
		Documents(ctx)
	defer iter.Stop()

	var out []*models.UserEntitlement
	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate users with ending subscriptions: %w", err)
		}
		ent, err := decodeEntitlement(docSnap)
		if err != nil {
			return nil, err
		}
		if ent.PlanTier.Paid() {
			out = append(out, ent)
		}
	}
	return out, nil
}

// update applies field updates to an existing document and bumps updatedAt.
// Update fails with NotFound when the document is missing, unlike Set.
func (r *firestoreEntitlementRepository) update(ctx context.Context, userID string, updates []firestore.Update) error {
	if userID == "" {
		return errors.New("userID cannot be empty for update operation")
	}
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: firestore.ServerTimestamp})
	_, err := r.client.Collection(usersCollection).Doc(userID).Update(ctx, updates)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("user with ID '%s' not found: %w", userID, ErrNotFound)
		}
		return fmt.Errorf("failed to update user with ID '%s': %w", userID, err)
	}
	return nil
}

func decodeEntitlement(docSnap *firestore.DocumentSnapshot) (*models.UserEntitlement, error) {
	var ent models.UserEntitlement
	if err := docSnap.DataTo(&ent); err != nil {
		return nil, fmt.Errorf("failed to decode user data for ID '%s': %w", docSnap.Ref.ID, err)
	}
	ent.UserID = docSnap.Ref.ID
	return &ent, nil
}
