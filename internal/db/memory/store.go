// Package memory keeps every repository in process memory. It backs local development
// and tests; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/synera-br/splennet-backend/internal/db"
	"github.com/synera-br/splennet-backend/internal/models"
)

// Store holds the data of all repositories behind one lock.
type Store struct {
	mu      sync.RWMutex
	users   map[string]models.UserEntitlement
	essays  map[string]models.Essay
	reviews map[string]models.ReviewRequest
	events  []models.UsageEvent
	handled map[string]string
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		users:   make(map[string]models.UserEntitlement),
		essays:  make(map[string]models.Essay),
		reviews: make(map[string]models.ReviewRequest),
		handled: make(map[string]string),
	}
}

// Repositories exposes the store as a db.Store. It has no ReviewSubmitter.
func (s *Store) Repositories() *db.Store {
	return &db.Store{
		Entitlements: (*entitlements)(s),
		Essays:       (*essays)(s),
		Reviews:      (*reviews)(s),
		Usage:        (*usage)(s),
		Webhooks:     (*webhookEvents)(s),
		Close:        func() error { return nil },
	}
}

type entitlements Store

func (r *entitlements) GetByID(_ context.Context, userID string) (*models.UserEntitlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ent, ok := r.users[userID]
	if !ok {
		return nil, fmt.Errorf("user with ID '%s' not found: %w", userID, db.ErrNotFound)
	}
	return &ent, nil
}

func (r *entitlements) GetByStripeCustomerID(_ context.Context, customerID string) (*models.UserEntitlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ent := range r.users {
		if customerID != "" && ent.StripeCustomerID == customerID {
			return &ent, nil
		}
	}
	return nil, fmt.Errorf("user with Stripe customer '%s' not found: %w", customerID, db.ErrNotFound)
}

func (r *entitlements) Create(_ context.Context, ent *models.UserEntitlement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[ent.UserID]; ok {
		return fmt.Errorf("user with ID '%s' already exists: %w", ent.UserID, db.ErrAlreadyExists)
	}
	r.users[ent.UserID] = *ent
	return nil
}

func (r *entitlements) IncrementCounter(_ context.Context, userID string, counter models.Counter) error {
	return r.update(userID, func(ent *models.UserEntitlement) error {
		switch counter {
		case models.CounterEssays:
			ent.EssaysGenerated++
		case models.CounterHumanReviews:
			ent.HumanReviewsUsed++
		default:
			return fmt.Errorf("unknown usage counter '%s'", counter)
		}
		return nil
	})
}

func (r *entitlements) SetPlan(_ context.Context, userID string, tier models.PlanTier, subscriptionEndsAt *time.Time) error {
	return r.update(userID, func(ent *models.UserEntitlement) error {
		ent.PlanTier = tier
		ent.SubscriptionEndsAt = subscriptionEndsAt
		resetCounters(ent)
		return nil
	})
}

func (r *entitlements) SetSubscriptionEnd(_ context.Context, userID string, endsAt *time.Time) error {
	return r.update(userID, func(ent *models.UserEntitlement) error {
		ent.SubscriptionEndsAt = endsAt
		return nil
	})
}

func (r *entitlements) SetStripeCustomerID(_ context.Context, userID, customerID string) error {
	return r.update(userID, func(ent *models.UserEntitlement) error {
		ent.StripeCustomerID = customerID
		return nil
	})
}

func (r *entitlements) ResetUsage(_ context.Context, userID string) error {
	return r.update(userID, func(ent *models.UserEntitlement) error {
		resetCounters(ent)
		return nil
	})
}

func (r *entitlements) ListSubscriptionsEndingBetween(_ context.Context, from, to time.Time) ([]*models.UserEntitlement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.UserEntitlement
	for _, ent := range r.users {
		if !ent.PlanTier.Paid() || ent.SubscriptionEndsAt == nil {
			continue
		}
		if end := *ent.SubscriptionEndsAt; !end.Before(from) && end.Before(to) {
			ent := ent
			out = append(out, &ent)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubscriptionEndsAt.Before(*out[j].SubscriptionEndsAt) })
	return out, nil
}

func (r *entitlements) update(userID string, fn func(*models.UserEntitlement) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ent, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user with ID '%s' not found: %w", userID, db.ErrNotFound)
	}
	if err := fn(&ent); err != nil {
		return err
	}
	ent.UpdatedAt = time.Now().UTC()
	r.users[userID] = ent
	return nil
}

func resetCounters(ent *models.UserEntitlement) {
	ent.EssaysGenerated = 0
	ent.HumanReviewsUsed = 0
	ent.PeriodStart = time.Now().UTC()
}

type essays Store

func (r *essays) Create(_ context.Context, essay *models.Essay) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	essay.ID = uuid.NewString()
	r.essays[essay.ID] = copyEssay(*essay)
	return essay.ID, nil
}

func (r *essays) GetByID(_ context.Context, essayID string) (*models.Essay, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	essay, ok := r.essays[essayID]
	if !ok {
		return nil, fmt.Errorf("essay with ID '%s' not found: %w", essayID, db.ErrNotFound)
	}
	essay = copyEssay(essay)
	return &essay, nil
}

func (r *essays) ListByUser(_ context.Context, userID string, limit int) ([]*models.Essay, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Essay
	for _, essay := range r.essays {
		if essay.UserID == userID {
			essay = copyEssay(essay)
			out = append(out, &essay)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *essays) UpdateText(_ context.Context, essayID, text string) error {
	return r.update(essayID, func(essay *models.Essay) {
		essay.GeneratedText = text
	})
}

func (r *essays) UpdateReviewStatus(_ context.Context, essayID string, status models.ReviewStatus, feedback string) error {
	return r.update(essayID, func(essay *models.Essay) {
		essay.ReviewStatus = status
		if status == models.ReviewPending {
			now := time.Now().UTC()
			essay.ReviewRequestedAt = &now
		}
		if feedback != "" {
			essay.HumanReview = feedback
		}
	})
}

func (r *essays) update(essayID string, fn func(*models.Essay)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	essay, ok := r.essays[essayID]
	if !ok {
		return fmt.Errorf("essay with ID '%s' not found: %w", essayID, db.ErrNotFound)
	}
	fn(&essay)
	essay.UpdatedAt = time.Now().UTC()
	r.essays[essayID] = essay
	return nil
}

func copyEssay(e models.Essay) models.Essay {
	if e.Responses != nil {
		responses := make(map[string]string, len(e.Responses))
		for k, v := range e.Responses {
			responses[k] = v
		}
		e.Responses = responses
	}
	return e
}

type reviews Store

func (r *reviews) Create(_ context.Context, review *models.ReviewRequest) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	review.ID = uuid.NewString()
	r.reviews[review.ID] = *review
	return review.ID, nil
}

func (r *reviews) GetByID(_ context.Context, reviewID string) (*models.ReviewRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	review, ok := r.reviews[reviewID]
	if !ok {
		return nil, fmt.Errorf("review with ID '%s' not found: %w", reviewID, db.ErrNotFound)
	}
	return &review, nil
}

func (r *reviews) ListByUser(_ context.Context, userID string) ([]*models.ReviewRequest, error) {
	out := r.filter(func(rv models.ReviewRequest) bool { return rv.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *reviews) ListByStatus(_ context.Context, status models.ReviewStatus, limit int) ([]*models.ReviewRequest, error) {
	out := r.filter(func(rv models.ReviewRequest) bool { return rv.Status == status })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *reviews) Update(_ context.Context, review *models.ReviewRequest, from models.ReviewStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.reviews[review.ID]
	if !ok {
		return fmt.Errorf("review with ID '%s' not found: %w", review.ID, db.ErrNotFound)
	}
	if stored.Status != from {
		return fmt.Errorf("review '%s' is %s, expected %s: %w", review.ID, stored.Status, from, db.ErrConflict)
	}
	r.reviews[review.ID] = *review
	return nil
}

func (r *reviews) filter(keep func(models.ReviewRequest) bool) []*models.ReviewRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.ReviewRequest
	for _, rv := range r.reviews {
		if keep(rv) {
			rv := rv
			out = append(out, &rv)
		}
	}
	return out
}

type usage Store

func (r *usage) Create(_ context.Context, event models.UsageEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = uuid.NewString()
	r.events = append(r.events, event)
	return nil
}

func (r *usage) ListByUser(_ context.Context, userID string, limit int) ([]*models.UsageEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.UsageEvent
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].UserID != userID {
			continue
		}
		event := r.events[i]
		out = append(out, &event)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type webhookEvents Store

func (r *webhookEvents) Claim(_ context.Context, eventID, eventType string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.handled[eventID]; ok {
		return false, nil
	}
	r.handled[eventID] = eventType
	return true, nil
}

func (r *webhookEvents) Release(_ context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handled, eventID)
	return nil
}
