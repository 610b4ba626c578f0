package firebase

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synera-br/splennet-backend/internal/core"
)

type fakeAuthClient struct {
	token   *auth.Token
	err     error
	created []*auth.UserToCreate
	revoked []string
}

func (f *fakeAuthClient) VerifyIDToken(context.Context, string) (*auth.Token, error) {
	return f.token, f.err
}

func (f *fakeAuthClient) CreateUser(_ context.Context, user *auth.UserToCreate) (*auth.UserRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, user)
	return &auth.UserRecord{UserInfo: &auth.UserInfo{UID: "uid-1"}}, nil
}

func (f *fakeAuthClient) RevokeRefreshTokens(_ context.Context, uid string) error {
	f.revoked = append(f.revoked, uid)
	return f.err
}

func TestVerifyMapsClaims(t *testing.T) {
	client := &fakeAuthClient{token: &auth.Token{UID: "u1", Claims: map[string]interface{}{
		"email":       "ada@example.com",
		"name":        "Ada",
		"picture":     "https://example.com/ada.png",
		ReviewerClaim: true,
	}}}
	identities := &Identities{client: client}

	identity, err := identities.Verify(context.Background(), "token")
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UID)
	assert.Equal(t, "ada@example.com", identity.Email)
	assert.Equal(t, "Ada", identity.Name)
	assert.Equal(t, "https://example.com/ada.png", identity.PhotoURL)
	assert.True(t, identity.Reviewer)

	client.token = &auth.Token{UID: "u2", Claims: map[string]interface{}{ReviewerClaim: "yes"}}
	identity, err = identities.Verify(context.Background(), "token")
	require.NoError(t, err)
	assert.False(t, identity.Reviewer)

	client.err = errors.New("token expired")
	_, err = identities.Verify(context.Background(), "token")
	assert.Error(t, err)
}

func TestCreateUserAndRevoke(t *testing.T) {
	client := &fakeAuthClient{}
	identities := &Identities{client: client}

	uid, err := identities.CreateUser(context.Background(), "ada@example.com", "secret1", "Ada")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", uid)
	assert.Len(t, client.created, 1)

	require.NoError(t, identities.RevokeRefreshTokens(context.Background(), "uid-1"))
	assert.Equal(t, []string{"uid-1"}, client.revoked)

	client.err = errors.New("internal error")
	_, err = identities.CreateUser(context.Background(), "ada@example.com", "secret1", "")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrAccountExists)
}
