package roleproof

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelane/trade-finance-backend/interfaces"
)

func TestSessionCacheExpiry(t *testing.T) {
	cache := NewSessionCache(time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	identity := interfaces.CallerIdentity{Role: interfaces.RoleEditor}
	cache.Put("token-1", identity, now.Add(time.Hour))

	got, ok := cache.Get("token-1")
	require.True(t, ok)
	assert.Equal(t, identity, got)

	// The TTL cap expires the entry before the credential does.
	now = now.Add(2 * time.Minute)
	_, ok = cache.Get("token-1")
	assert.False(t, ok)
}

func TestSessionCacheCredentialExpiryBounds(t *testing.T) {
	cache := NewSessionCache(time.Hour)
	now := time.Now()
	cache.now = func() time.Time { return now }

	cache.Put("token-1", interfaces.CallerIdentity{Role: interfaces.RoleViewer}, now.Add(time.Second))

	now = now.Add(2 * time.Second)
	_, ok := cache.Get("token-1")
	assert.False(t, ok, "the credential expiry bounds the session even under a longer TTL")
}

func TestServiceAuthenticateIssuesUsableToken(t *testing.T) {
	f := newProofFixture(t)
	service := NewService(f.validator, NewSessionCache(0))
	proof := f.signedProof(t, interfaces.RoleEditor)

	identity, token, err := service.Authenticate(context.Background(), testCallerID, proof)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, f.companyAddress(), identity.CompanyAddress)

	resolved, err := service.Authorize(context.Background(), testCallerID, nil, token, interfaces.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, identity, resolved)
}

func TestServiceAuthorizeTokenRoleCheck(t *testing.T) {
	f := newProofFixture(t)
	service := NewService(f.validator, NewSessionCache(0))
	proof := f.signedProof(t, interfaces.RoleViewer)

	_, token, err := service.Authenticate(context.Background(), testCallerID, proof)
	require.NoError(t, err)

	_, err = service.Authorize(context.Background(), testCallerID, nil, token, interfaces.RoleEditor)
	assert.ErrorIs(t, err, interfaces.ErrAuthorization)
}

func TestServiceAuthorizeUnknownToken(t *testing.T) {
	f := newProofFixture(t)
	service := NewService(f.validator, NewSessionCache(0))

	_, err := service.Authorize(context.Background(), testCallerID, nil, "deadbeef", interfaces.RoleViewer)
	assert.ErrorIs(t, err, interfaces.ErrAuthorization)
}

func TestServiceAuthorizeRequiresCredentials(t *testing.T) {
	f := newProofFixture(t)
	service := NewService(f.validator, NewSessionCache(0))

	_, err := service.Authorize(context.Background(), testCallerID, nil, "", interfaces.RoleViewer)
	assert.ErrorIs(t, err, interfaces.ErrValidation)
}

func TestServiceAuthorizeProofTakesPrecedence(t *testing.T) {
	f := newProofFixture(t)
	service := NewService(f.validator, NewSessionCache(0))
	proof := f.signedProof(t, interfaces.RoleSigner)

	identity, err := service.Authorize(context.Background(), testCallerID, proof, "", interfaces.RoleSigner)
	require.NoError(t, err)
	assert.Equal(t, interfaces.RoleSigner, identity.Role)
}
