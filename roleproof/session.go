package roleproof

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tradelane/trade-finance-backend/cryptoutils"
	"github.com/tradelane/trade-finance-backend/interfaces"
)

// DefaultSessionTTL caps how long a validated proof stays cached regardless
// of how far away the credential expiry is.
const DefaultSessionTTL = 15 * time.Minute

type sessionEntry struct {
	identity  interfaces.CallerIdentity
	expiresAt time.Time
}

// SessionCache keeps validated caller identities under opaque tokens so a
// caller can authenticate once and present the token afterwards. Entries
// expire with the underlying credential, capped by the configured TTL.
type SessionCache struct {
	mu      sync.RWMutex
	entries map[string]sessionEntry
	ttl     time.Duration

	now func() time.Time
}

// NewSessionCache creates a cache with the given TTL cap. A zero ttl uses
// DefaultSessionTTL.
func NewSessionCache(ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionCache{
		entries: make(map[string]sessionEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores an identity under token. credentialExpiry bounds the entry
// lifetime together with the cache TTL.
func (c *SessionCache) Put(token string, identity interfaces.CallerIdentity, credentialExpiry time.Time) {
	expiresAt := c.now().Add(c.ttl)
	if credentialExpiry.Before(expiresAt) {
		expiresAt = credentialExpiry
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Opportunistically sweep expired entries while holding the lock.
	for k, e := range c.entries {
		if e.expiresAt.Before(c.now()) {
			delete(c.entries, k)
		}
	}

	c.entries[token] = sessionEntry{identity: identity, expiresAt: expiresAt}
}

// Get returns the identity stored under token, if present and not expired.
func (c *SessionCache) Get(token string) (interfaces.CallerIdentity, bool) {
	c.mu.RLock()
	entry, ok := c.entries[token]
	c.mu.RUnlock()

	if !ok || entry.expiresAt.Before(c.now()) {
		return interfaces.CallerIdentity{}, false
	}
	return entry.identity, true
}

// Service bundles a validator with a session cache. It is the authorization
// entry point the HTTP layer uses for every gated operation.
type Service struct {
	validator *Validator
	sessions  *SessionCache
}

// NewService creates the authorization service.
func NewService(validator *Validator, sessions *SessionCache) *Service {
	return &Service{validator: validator, sessions: sessions}
}

// Authenticate validates a proof, caches the verified identity and returns
// the session token the caller may present on subsequent requests.
func (s *Service) Authenticate(ctx context.Context, callerID string, proof *interfaces.RoleProof) (interfaces.CallerIdentity, string, error) {
	identity, err := s.validator.Validate(ctx, callerID, proof, interfaces.RoleViewer)
	if err != nil {
		return interfaces.CallerIdentity{}, "", err
	}

	token, err := cryptoutils.DeriveSessionToken(proof.SignedProof, callerID)
	if err != nil {
		return interfaces.CallerIdentity{}, "", fmt.Errorf("%w: %v", interfaces.ErrUnavailable, err)
	}

	s.sessions.Put(token, identity, time.Unix(proof.DelegateCredentialExpiresAt, 0))
	return identity, token, nil
}

// Authorize resolves a caller identity for a gated operation. Either a full
// proof or a previously issued session token must be presented; the resolved
// role must satisfy minimumRole.
func (s *Service) Authorize(ctx context.Context, callerID string, proof *interfaces.RoleProof, sessionToken string, minimumRole interfaces.Role) (interfaces.CallerIdentity, error) {
	if proof != nil {
		return s.validator.Validate(ctx, callerID, proof, minimumRole)
	}

	if sessionToken != "" {
		identity, ok := s.sessions.Get(sessionToken)
		if !ok {
			return interfaces.CallerIdentity{}, fmt.Errorf("%w: unknown or expired session token", interfaces.ErrAuthorization)
		}
		if !identity.Role.AtLeast(minimumRole) {
			return interfaces.CallerIdentity{}, fmt.Errorf("%w: role %s does not satisfy minimum role %s", interfaces.ErrAuthorization, identity.Role, minimumRole)
		}
		return identity, nil
	}

	return interfaces.CallerIdentity{}, fmt.Errorf("%w: no role proof or session token presented", interfaces.ErrValidation)
}
