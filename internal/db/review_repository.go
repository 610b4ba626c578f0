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

const reviewsCollection = "human_reviews"

// firestoreReviewRepository implements ReviewRepository and ReviewSubmitter using Firestore.
type firestoreReviewRepository struct {
	client *firestore.Client
}

// NewFirestoreReviewRepository creates a new instance of firestoreReviewRepository.
func NewFirestoreReviewRepository(client *firestore.Client) ReviewRepository {
	return &firestoreReviewRepository{client: client}
}

// NewFirestoreReviewSubmitter returns the transactional submitter backed by the same collections.
func NewFirestoreReviewSubmitter(client *firestore.Client) ReviewSubmitter {
	return &firestoreReviewRepository{client: client}
}

// Create adds a review request with an auto-generated ID.
func (r *firestoreReviewRepository) Create(ctx context.Context, review *models.ReviewRequest) (string, error) {
	docRef := r.client.Collection(reviewsCollection).NewDoc()
	if _, err := docRef.Create(ctx, review); err != nil {
		return "", fmt.Errorf("failed to create review request: %w", err)
	}
	review.ID = docRef.ID
	return docRef.ID, nil
}

// GetByID retrieves a review request by its ID.
func (r *firestoreReviewRepository) GetByID(ctx context.Context, reviewID string) (*models.ReviewRequest, error) {
	if reviewID == "" {
		return nil, errors.New("reviewID cannot be empty for GetByID operation")
	}
	docSnap, err := r.client.Collection(reviewsCollection).Doc(reviewID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("review with ID '%s' not found: %w", reviewID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get review with ID '%s': %w", reviewID, err)
	}
	return decodeReview(docSnap)
}

// ListByUser returns the review requests of a user, newest first.
func (r *firestoreReviewRepository) ListByUser(ctx context.Context, userID string) ([]*models.ReviewRequest, error) {
	q := r.client.Collection(reviewsCollection).Where("userId", "==", userID).OrderBy("createdAt", firestore.Desc)
	return collectReviews(q.Documents(ctx))
}

// ListByStatus returns review requests in a status, oldest first so the queue is served in order.
func (r *firestoreReviewRepository) ListByStatus(ctx context.Context, reviewStatus models.ReviewStatus, limit int) ([]*models.ReviewRequest, error) {
	q := r.client.Collection(reviewsCollection).
		Where("status", "==", string(reviewStatus)).
		OrderBy("createdAt", firestore.Asc).
		Limit(limit)
	return collectReviews(q.Documents(ctx))
}

// Update overwrites the mutable fields of a review request inside a transaction that
// re-reads the stored status.
func (r *firestoreReviewRepository) Update(ctx context.Context, review *models.ReviewRequest, from models.ReviewStatus) error {
	if review.ID == "" {
		return errors.New("review ID cannot be empty for Update operation")
	}
	docRef := r.client.Collection(reviewsCollection).Doc(review.ID)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docSnap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("review with ID '%s' not found: %w", review.ID, ErrNotFound)
			}
			return err
		}
		stored, err := decodeReview(docSnap)
		if err != nil {
			return err
		}
		if stored.Status != from {
			return fmt.Errorf("review '%s' is %s, expected %s: %w", review.ID, stored.Status, from, ErrConflict)
		}
		return tx.Update(docRef, []firestore.Update{
			{Path: "status", Value: string(review.Status)},
			{Path: "reviewerId", Value: review.ReviewerID},
			{Path: "feedback", Value: review.Feedback},
			{Path: "completedAt", Value: review.CompletedAt},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		return fmt.Errorf("failed to update review with ID '%s': %w", review.ID, err)
	}
	return nil
}

// SubmitReview creates the review request, marks the essay pending and counts the review
// in one transaction. The limit and the essay status are re-checked inside it.
func (r *firestoreReviewRepository) SubmitReview(ctx context.Context, sub ReviewSubmission) (string, error) {
	review := sub.Review
	essayRef := r.client.Collection(essaysCollection).Doc(review.EssayID)
	userRef := r.client.Collection(usersCollection).Doc(review.UserID)
	reviewRef := r.client.Collection(reviewsCollection).NewDoc()

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		essaySnap, err := tx.Get(essayRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("essay with ID '%s' not found: %w", review.EssayID, ErrNotFound)
			}
			return err
		}
		essay, err := decodeEssay(essaySnap)
		if err != nil {
			return err
		}
		if essay.UserID != review.UserID || !essay.ReviewStatus.CanTransitionTo(models.ReviewPending) {
			return fmt.Errorf("essay '%s' cannot take a review request: %w", review.EssayID, ErrConflict)
		}

		userSnap, err := tx.Get(userRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("user with ID '%s' not found: %w", review.UserID, ErrNotFound)
			}
			return err
		}
		ent, err := decodeEntitlement(userSnap)
		if err != nil {
			return err
		}
		if sub.HumanReviewLimit != models.Unlimited && ent.HumanReviewsUsed >= sub.HumanReviewLimit {
			return fmt.Errorf("user '%s' used %d of %d human reviews: %w", review.UserID, ent.HumanReviewsUsed, sub.HumanReviewLimit, ErrQuotaExceeded)
		}

		if err := tx.Create(reviewRef, review); err != nil {
			return err
		}
		if err := tx.Update(essayRef, []firestore.Update{
			{Path: "reviewStatus", Value: string(models.ReviewPending)},
			{Path: "reviewRequestedAt", Value: time.Now().UTC()},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		}); err != nil {
			return err
		}
		return tx.Update(userRef, []firestore.Update{
			{Path: string(models.CounterHumanReviews), Value: firestore.Increment(1)},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		})
	})
	if err != nil {
		return "", fmt.Errorf("failed to submit review for essay '%s': %w", review.EssayID, err)
	}
	review.ID = reviewRef.ID
	return reviewRef.ID, nil
}

func collectReviews(iter *firestore.DocumentIterator) ([]*models.ReviewRequest, error) {
	defer iter.Stop()
	var reviews []*models.ReviewRequest
	for {
		docSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate review requests: %w", err)
		}
		review, err := decodeReview(docSnap)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, nil
}

func decodeReview(docSnap *firestore.DocumentSnapshot) (*models.ReviewRequest, error) {
	var review models.ReviewRequest
	if err := docSnap.DataTo(&review); err != nil {
		return nil, fmt.Errorf("failed to decode review data for ID '%s': %w", docSnap.Ref.ID, err)
	}
	review.ID = docSnap.Ref.ID
	return &review, nil
}
