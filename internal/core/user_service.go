package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/synera-br/splennet-backend/internal/db"
	"github.com/synera-br/splennet-backend/internal/models"
)

// userService implements the UserService interface.
type userService struct {
	entitlements db.EntitlementRepository
	catalog      *PlanCatalog
	identities   IdentityProvider
	usage        UsageService
	notifier     Notifier
	logger       *zap.Logger
}

// NewUserService creates a new UserService instance.
// identities may be nil when sign-up and sign-out are not offered by the backend.
func NewUserService(
	entitlements db.EntitlementRepository,
	catalog *PlanCatalog,
	identities IdentityProvider,
	usage UsageService,
	notifier Notifier,
	logger *zap.Logger,
) UserService {
	return &userService{
		entitlements: entitlements,
		catalog:      catalog,
		identities:   identities,
		usage:        usage,
		notifier:     notifier,
		logger:       logger,
	}
}

// GetOrCreate retrieves the entitlement of the identity. If none exists yet a free one is
// created. Any read or write failure is reported as ErrEntitlementUnavailable.
func (s *userService) GetOrCreate(ctx context.Context, identity *models.Identity) (*models.UserEntitlement, bool, error) {
	if identity == nil || identity.UID == "" {
		return nil, false, ErrAuthRequired
	}

	ent, err := s.entitlements.GetByID(ctx, identity.UID)
	if err == nil {
		s.catalog.Apply(ent)
		return ent, false, nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return nil, false, fmt.Errorf("%w: user '%s': %v", ErrEntitlementUnavailable, identity.UID, err)
	}

	now := time.Now().UTC()
	ent = &models.UserEntitlement{
		UserID:      identity.UID,
		Email:       identity.Email,
		FullName:    identity.Name,
		PhotoURL:    identity.PhotoURL,
		PlanTier:    models.PlanFree,
		PeriodStart: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.entitlements.Create(ctx, ent); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			// Created concurrently by another request.
			existing, getErr := s.entitlements.GetByID(ctx, identity.UID)
			if getErr != nil {
				return nil, false, fmt.Errorf("%w: user '%s': %v", ErrEntitlementUnavailable, identity.UID, getErr)
			}
			s.catalog.Apply(existing)
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("%w: failed to create user '%s': %v", ErrEntitlementUnavailable, identity.UID, err)
	}
	s.catalog.Apply(ent)

	s.logger.Info("user entitlement created", zap.String("userID", ent.UserID))
	recordEvent(ctx, s.usage, s.logger, models.UsageEvent{UserID: ent.UserID, Action: models.EventAccountCreated})
	notify(ctx, s.notifier, s.logger, models.Notification{
		Type:     models.NotifyWelcome,
		UserID:   ent.UserID,
		Email:    ent.Email,
		Name:     displayName(ent.FullName, ent.Email),
		PlanTier: ent.PlanTier,
	})
	return ent, true, nil
}

// Entitlement implements UserService.
func (s *userService) Entitlement(ctx context.Context, identity *models.Identity) (*models.UserEntitlement, error) {
	ent, _, err := s.GetOrCreate(ctx, identity)
	return ent, err
}

// CurrentUser returns the reconciled view of the identity and its stored profile.
func (s *userService) CurrentUser(ctx context.Context, identity *models.Identity) (*models.CurrentUser, error) {
	ent, err := s.Entitlement(ctx, identity)
	if err != nil {
		return nil, err
	}
	return Reconcile(identity, ent), nil
}

// Usage runs the gate for every action.
func (s *userService) Usage(ctx context.Context, identity *models.Identity) (map[models.ActionType]UsageDecision, error) {
	ent, err := s.Entitlement(ctx, identity)
	if err != nil {
		return nil, err
	}
	out := make(map[models.ActionType]UsageDecision, 2)
	for _, action := range []models.ActionType{models.ActionEssay, models.ActionHumanReview} {
		d, err := CheckUsage(ent, action)
		if err != nil {
			return nil, err
		}
		out[action] = d
	}
	return out, nil
}

// SignUp creates the account at the identity provider and initialises its profile.
func (s *userService) SignUp(ctx context.Context, req models.SignUpRequest) (*models.UserEntitlement, error) {
	if s.identities == nil {
		return nil, errors.New("IdentityProvider not initialized in UserService")
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, validationErr("email and password are required")
	}
	fullName := strings.TrimSpace(req.FullName)

	uid, err := s.identities.CreateUser(ctx, email, req.Password, fullName)
	if err != nil {
		return nil, fmt.Errorf("failed to create account for '%s': %w", email, err)
	}
	ent, _, err := s.GetOrCreate(ctx, &models.Identity{UID: uid, Email: email, Name: fullName})
	if err != nil {
		return nil, err
	}
	return ent, nil
}

// SignOut revokes the refresh tokens of the user so every session has to sign in again.
func (s *userService) SignOut(ctx context.Context, userID string) error {
	if s.identities == nil {
		return errors.New("IdentityProvider not initialized in UserService")
	}
	if userID == "" {
		return ErrAuthRequired
	}
	if err := s.identities.RevokeRefreshTokens(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions of user '%s': %w", userID, err)
	}
	return nil
}

// Reconcile merges the identity asserted by the identity provider with the stored
// entitlement. The identity provider wins for id, email and photo when it provides them,
// the stored profile wins for the full name when it is set, and plan and usage only ever
// come from the entitlement.
func Reconcile(identity *models.Identity, ent *models.UserEntitlement) *models.CurrentUser {
	u := &models.CurrentUser{
		ID:         ent.UserID,
		Email:      ent.Email,
		FullName:   ent.FullName,
		PhotoURL:   ent.PhotoURL,
		PlanTier:   ent.PlanTier,
		PlanLimits: ent.PlanLimits,
	}
	if identity != nil {
		if identity.UID != "" {
			u.ID = identity.UID
		}
		if identity.Email != "" {
			u.Email = identity.Email
		}
		if identity.PhotoURL != "" {
			u.PhotoURL = identity.PhotoURL
		}
		if u.FullName == "" {
			u.FullName = identity.Name
		}
		u.Reviewer = identity.Reviewer
	}
	if u.FullName == "" {
		u.FullName = u.Email
	}
	if ent.SubscriptionEndsAt != nil {
		u.SubscribedUntil = ent.SubscriptionEndsAt.UTC().Format(time.RFC3339)
	}

	essays, _ := CheckUsage(ent, models.ActionEssay)
	reviews, _ := CheckUsage(ent, models.ActionHumanReview)
	u.Usage = models.UsageView{
		EssaysGenerated:       ent.EssaysGenerated,
		EssaysRemaining:       essays.Remaining,
		HumanReviewsUsed:      ent.HumanReviewsUsed,
		HumanReviewsRemaining: reviews.Remaining,
	}
	return u
}

func displayName(fullName, email string) string {
	if fullName != "" {
		return fullName
	}
	return email
}
