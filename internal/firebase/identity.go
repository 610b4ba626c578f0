package firebase

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"

	"github.com/synera-br/splennet-backend/internal/core"
	"github.com/synera-br/splennet-backend/internal/models"
)

// ReviewerClaim is the custom claim that grants access to the reviewer endpoints.
const ReviewerClaim = "reviewer"

// authClient is the part of *auth.Client used here.
type authClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// Identities verifies ID tokens and manages accounts in Firebase Authentication.
type Identities struct {
	client authClient
}

// NewIdentities wraps a Firebase Auth client.
func NewIdentities(client *auth.Client) *Identities {
	return &Identities{client: client}
}

// Verify checks the ID token and returns the identity it asserts.
func (i *Identities) Verify(ctx context.Context, idToken string) (*models.Identity, error) {
	token, err := i.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}
	return identityFromToken(token), nil
}

func identityFromToken(token *auth.Token) *models.Identity {
	identity := &models.Identity{UID: token.UID}
	if email, ok := token.Claims["email"].(string); ok {
		identity.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		identity.Name = name
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		identity.PhotoURL = picture
	}
	if reviewer, ok := token.Claims[ReviewerClaim].(bool); ok {
		identity.Reviewer = reviewer
	}
	return identity
}

// CreateUser registers an email and password account and returns its UID.
func (i *Identities) CreateUser(ctx context.Context, email, password, displayName string) (string, error) {
	params := (&auth.UserToCreate{}).Email(email).Password(password)
	if displayName != "" {
		params = params.DisplayName(displayName)
	}
	record, err := i.client.CreateUser(ctx, params)
	if err != nil {
		if auth.IsEmailAlreadyExists(err) {
			return "", fmt.Errorf("%w: %s", core.ErrAccountExists, email)
		}
		return "", fmt.Errorf("failed to create user: %w", err)
	}
	return record.UID, nil
}

// RevokeRefreshTokens signs the user out of every session.
func (i *Identities) RevokeRefreshTokens(ctx context.Context, uid string) error {
	if err := i.client.RevokeRefreshTokens(ctx, uid); err != nil {
		return fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return nil
}
