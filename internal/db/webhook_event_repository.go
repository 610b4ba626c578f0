package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const webhookEventsCollection = "stripe_events"

// firestoreWebhookEventRepository keys one document per event ID.
type firestoreWebhookEventRepository struct {
	client *firestore.Client
}

// NewFirestoreWebhookEventRepository creates a new instance of firestoreWebhookEventRepository.
func NewFirestoreWebhookEventRepository(client *firestore.Client) WebhookEventRepository {
	return &firestoreWebhookEventRepository{client: client}
}

// Claim creates the event document. A document that already exists means the event was handled.
func (r *firestoreWebhookEventRepository) Claim(ctx context.Context, eventID, eventType string) (bool, error) {
	if eventID == "" {
		return false, errors.New("eventID cannot be empty for Claim operation")
	}
	_, err := r.client.Collection(webhookEventsCollection).Doc(eventID).Create(ctx, map[string]interface{}{
		"type":       eventType,
		"receivedAt": firestore.ServerTimestamp,
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, fmt.Errorf("failed to record webhook event '%s': %w", eventID, err)
	}
	return true, nil
}

// Release deletes the event document.
func (r *firestoreWebhookEventRepository) Release(ctx context.Context, eventID string) error {
	if _, err := r.client.Collection(webhookEventsCollection).Doc(eventID).Delete(ctx); err != nil {
		return fmt.Errorf("failed to release webhook event '%s': %w", eventID, err)
	}
	return nil
}
