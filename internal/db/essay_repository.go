package db

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/synera-br/splennet-backend/internal/models"
)

const essaysCollection = "essays"

// firestoreEssayRepository implements the EssayRepository interface using Firestore.
type firestoreEssayRepository struct {
	client *firestore.Client
}

// NewFirestoreEssayRepository creates a new instance of firestoreEssayRepository.
func NewFirestoreEssayRepository(client *firestore.Client) EssayRepository {
	return &firestoreEssayRepository{client: client}
}

// Create adds a new essay document with an auto-generated ID.
func (r *firestoreEssayRepository) Create(ctx context.Context, essay *models.Essay) (string, error) {
	docRef := r.client.Collection(essaysCollection).NewDoc()
	if _, err := docRef.Create(ctx, essay); err != nil {
		return "", fmt.Errorf("failed to create essay: %w", err)
	}
	essay.ID = docRef.ID
	return docRef.ID, nil
}

// GetByID retrieves an essay document by its ID.
func (r *firestoreEssayRepository) GetByID(ctx context.Context, essayID string) (*models.Essay, error) {
	if essayID == "" {
		return nil, errors.New("essayID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(essaysCollection).Doc(essayID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("essay with ID '%s' not found: %w", essayID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get essay with ID '%s': %w", essayID, err)
	}
	return decodeEssay(docSnap)
}

// ListByUser returns the essays of a user, newest first.
func (r *firestoreEssayRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Essay, error) {
	if userID == "" {
		return nil, errors.New("userID cannot be empty for ListByUser operation")
	}
	iter := r.client.Collection(essaysCollection).
		Where("userId", "==", userID).
		OrderBy("createdAt", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var essays []*models.Essay
	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate essays for user '%s': %w", userID, err)
		}
		essay, err := decodeEssay(docSnap)
		if err != nil {
			return nil, err
		}
		essays = append(essays, essay)
	}
	return essays, nil
}

// UpdateText replaces the essay text.
func (r *firestoreEssayRepository) UpdateText(ctx context.Context, essayID, text string) error {
	return r.update(ctx, essayID, []firestore.Update{
		{Path: "generatedText", Value: text},
	})
}

// UpdateReviewStatus sets the review status and, when given, the reviewer feedback.
func (r *firestoreEssayRepository) UpdateReviewStatus(ctx context.Context, essayID string, reviewStatus models.ReviewStatus, feedback string) error {
	updates := []firestore.Update{{Path: "reviewStatus", Value: string(reviewStatus)}}
	if reviewStatus == models.ReviewPending {
		updates = append(updates, firestore.Update{Path: "reviewRequestedAt", Value: firestore.ServerTimestamp})
	}
	if feedback != "" {
		updates = append(updates, firestore.Update{Path: "humanReview", Value: feedback})
	}
	return r.update(ctx, essayID, updates)
}

func (r *firestoreEssayRepository) update(ctx context.Context, essayID string, updates []firestore.Update) error {
	if essayID == "" {
		return errors.New("essayID cannot be empty for update operation")
	}
	updates = append(updates, firestore.Update{Path: "updatedAt", Value: firestore.ServerTimestamp})
	if _, err := r.client.Collection(essaysCollection).Doc(essayID).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("essay with ID '%s' not found: %w", essayID, ErrNotFound)
		}
		return fmt.Errorf("failed to update essay with ID '%s': %w", essayID, err)
	}
	return nil
}

func decodeEssay(docSnap *firestore.DocumentSnapshot) (*models.Essay, error) {
	var essay models.Essay
	if err := docSnap.DataTo(&essay); err != nil {
		return nil, fmt.Errorf("failed to decode essay data for ID '%s': %w", docSnap.Ref.ID, err)
	}
	essay.ID = docSnap.Ref.ID
	return &essay, nil
}
