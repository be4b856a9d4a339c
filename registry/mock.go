package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/tradelane/trade-finance-backend/interfaces"
)

// MockIdentityBridge provides an in-memory implementation of the
// interfaces.IdentityResolver interface for testing without a blockchain
// connection.
type MockIdentityBridge struct {
	mutex      sync.RWMutex
	identities map[string]interfaces.Address
	failing    bool
}

// NewMockIdentityBridge creates a mock bridge with no registered identities.
func NewMockIdentityBridge() *MockIdentityBridge {
	return &MockIdentityBridge{identities: make(map[string]interfaces.Address)}
}

// Register maps a platform identity to an address.
func (m *MockIdentityBridge) Register(callerID string, addr interfaces.Address) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.identities[callerID] = addr
}

// SetFailing makes every subsequent call fail, simulating an unreachable
// bridge.
func (m *MockIdentityBridge) SetFailing(failing bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failing = failing
}

// ResolveIdentity returns the registered address for callerID.
func (m *MockIdentityBridge) ResolveIdentity(ctx context.Context, callerID string) (interfaces.Address, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.failing {
		return interfaces.Address{}, fmt.Errorf("identity bridge unreachable")
	}

	addr, ok := m.identities[callerID]
	if !ok {
		return interfaces.Address{}, fmt.Errorf("%w: unknown caller identity %q", interfaces.ErrAuthorization, callerID)
	}
	return addr, nil
}

type revocationKey struct {
	signer interfaces.Address
	hash   interfaces.Hash
}

// MockRevocationRegistry provides an in-memory implementation of the
// interfaces.RevocationOracle interface for testing.
type MockRevocationRegistry struct {
	mutex   sync.RWMutex
	revoked map[revocationKey]bool
	failing bool
}

// NewMockRevocationRegistry creates a mock registry with no revocations.
func NewMockRevocationRegistry() *MockRevocationRegistry {
	return &MockRevocationRegistry{revoked: make(map[revocationKey]bool)}
}

// Revoke marks a credential as revoked by signer.
func (m *MockRevocationRegistry) Revoke(signer interfaces.Address, credentialIDHash interfaces.Hash) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.revoked[revocationKey{signer, credentialIDHash}] = true
}

// SetFailing makes every subsequent call fail, simulating an unreachable
// registry.
func (m *MockRevocationRegistry) SetFailing(failing bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failing = failing
}

// IsRevoked reports whether the credential has been revoked.
func (m *MockRevocationRegistry) IsRevoked(ctx context.Context, signer interfaces.Address, credentialIDHash interfaces.Hash) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.failing {
		return false, fmt.Errorf("revocation registry unreachable")
	}
	return m.revoked[revocationKey{signer, credentialIDHash}], nil
}
