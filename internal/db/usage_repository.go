package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/synera-br/splennet-backend/internal/models"
)

const usageEventsCollection = "usage_events"

// firestoreUsageRepository implements the UsageRepository interface using Firestore.
type firestoreUsageRepository struct {
	client *firestore.Client
}

// NewFirestoreUsageRepository creates a new instance of firestoreUsageRepository.
func NewFirestoreUsageRepository(client *firestore.Client) UsageRepository {
	return &firestoreUsageRepository{client: client}
}

// Create appends an event with an auto-generated ID.
func (r *firestoreUsageRepository) Create(ctx context.Context, event models.UsageEvent) error {
	if event.UserID == "" {
		return errors.New("usage event needs a user ID")
	}
	if _, _, err := r.client.Collection(usageEventsCollection).Add(ctx, event); err != nil {
		return fmt.Errorf("failed to create usage event '%s': %w", event.Action, err)
	}
	return nil
}

// ListByUser returns the latest events of a user, newest first.
func (r *firestoreUsageRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.UsageEvent, error) {
	iter := r.client.Collection(usageEventsCollection).
		Where("userId", "==", userID).
		OrderBy("timestamp", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var events []*models.UsageEvent
	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate usage events for user '%s': %w", userID, err)
		}
		var event models.UsageEvent
		if err := docSnap.DataTo(&event); err != nil {
			return nil, fmt.Errorf("failed to decode usage event '%s': %w", docSnap.Ref.ID, err)
		}
		event.ID = docSnap.Ref.ID
		events = append(events, &event)
	}
	return events, nil
}
