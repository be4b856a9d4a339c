package roleproof

import (
	"context"
	"crypto/ecdsa"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelane/trade-finance-backend/cryptoutils"
	"github.com/tradelane/trade-finance-backend/interfaces"
	"github.com/tradelane/trade-finance-backend/registry"
)

const testCallerID = "platform-user-1"

// proofFixture holds the three parties of a delegation chain: the platform's
// trusted membership issuer, the company wallet (delegator) and the end-user
// wallet (delegate).
type proofFixture struct {
	issuerKey   *ecdsa.PrivateKey
	companyKey  *ecdsa.PrivateKey
	delegateKey *ecdsa.PrivateKey

	identity   *registry.MockIdentityBridge
	revocation *registry.MockRevocationRegistry
	validator  *Validator
}

func newProofFixture(t *testing.T) *proofFixture {
	t.Helper()

	issuerKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	companyKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	delegateKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	identity := registry.NewMockIdentityBridge()
	identity.Register(testCallerID, cryptoutils.SignerAddress(delegateKey))

	revocation := registry.NewMockRevocationRegistry()

	return &proofFixture{
		issuerKey:   issuerKey,
		companyKey:  companyKey,
		delegateKey: delegateKey,
		identity:    identity,
		revocation:  revocation,
		validator:   NewValidator(identity, revocation, cryptoutils.SignerAddress(issuerKey), slog.Default()),
	}
}

func (f *proofFixture) companyAddress() interfaces.Address {
	return cryptoutils.SignerAddress(f.companyKey)
}

// signedProof builds a fully valid proof for the given role: the company
// wallet signs the delegate credential and the trusted issuer signs the
// membership credential binding the company to the platform.
func (f *proofFixture) signedProof(t *testing.T, role interfaces.Role) *interfaces.RoleProof {
	t.Helper()

	delegateExpiry := time.Now().Add(time.Hour).Unix()
	delegatorExpiry := time.Now().Add(24 * time.Hour).Unix()

	credHash, err := interfaces.NewHashFromHex("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	memCredHash, err := interfaces.NewHashFromHex("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	require.NoError(t, err)

	delegateAddr := cryptoutils.SignerAddress(f.delegateKey)
	companyAddr := f.companyAddress()

	delegateSig, err := cryptoutils.SignPayload(
		cryptoutils.DelegatePayload(delegateAddr, role, credHash, delegateExpiry), f.companyKey)
	require.NoError(t, err)

	membershipSig, err := cryptoutils.SignPayload(
		cryptoutils.MembershipPayload(memCredHash, delegatorExpiry, companyAddr), f.issuerKey)
	require.NoError(t, err)

	return &interfaces.RoleProof{
		SignedProof:                 delegateSig,
		Signer:                      companyAddr,
		DelegateAddress:             delegateAddr,
		Role:                        role,
		DelegateCredentialIDHash:    credHash,
		DelegateCredentialExpiresAt: delegateExpiry,
		Membership: interfaces.MembershipProof{
			SignedProof:                  membershipSig,
			Issuer:                       cryptoutils.SignerAddress(f.issuerKey),
			DelegatorAddress:             companyAddr,
			DelegatorCredentialIDHash:    memCredHash,
			DelegatorCredentialExpiresAt: delegatorExpiry,
		},
	}
}

func TestValidateAcceptsValidProof(t *testing.T) {
	f := newProofFixture(t)
	proof := f.signedProof(t, interfaces.RoleEditor)

	identity, err := f.validator.Validate(context.Background(), testCallerID, proof, interfaces.RoleViewer)
	require.NoError(t, err)
	assert.Equal(t, f.companyAddress(), identity.CompanyAddress, "the verified identity is the delegator's company address")
	assert.Equal(t, interfaces.RoleEditor, identity.Role)
}

func TestValidateRejectsExpiredDelegateCredential(t *testing.T) {
	f := newProofFixture(t)
	proof := f.signedProof(t, interfaces.RoleEditor)

	// Re-sign with a past expiry so the signature itself stays valid.
	expired := time.Now().Add(-time.Minute).Unix()
	sig, err := cryptoutils.SignPayload(
		cryptoutils.DelegatePayload(proof.DelegateAddress, proof.Role, proof.DelegateCredentialIDHash, expired), f.companyKey)
	require.NoError(t, err)
	proof.SignedProof = sig
	proof.DelegateCredentialExpiresAt = expired

	_, err = f.validator.Validate(context.Background(), testCallerID, proof, interfaces.RoleViewer)
	assert.ErrorIs(t, err, interfaces.ErrAuthorization)
}

func TestValidateRejectsSignerMismatch(t *testing.T) {
	f := newProofFixture(t)
	proof := f.signedProof(t, interfaces.RoleEditor)
	proof.Signer = cryptoutils.SignerAddress(f.delegateKey)

	_, err := f.validator.Validate(context.Background(), testCallerID, proof, interfaces.RoleViewer)
	assert.ErrorIs(t, err, interfaces.ErrAuthorization)
}

func TestValidateRejectsTamperedRole(t *testing.T) {
	f := newProofFixture(t)
	proof := f.signedProof(t, interfaces.RoleViewer)

	// Claiming a higher role than was signed breaks recovery against the
	// reconstructed payload.
	proof.Role = interfaces.RoleSigner

	_, err := f.validator.Validate(context.Background(), testCallerID, proof, interfaces.RoleViewer)
	assert.ErrorIs(t, err, interfaces.ErrAuthorization)
}

func TestValidateRejectsInsufficientRole(t *testing.T) {
	f := newProofFixture(t)
	proof := f.signedProof(t, interfaces.RoleViewer)

	_, err := f.validator.Validate(context.Background(), testCallerID, proof, interfaces.RoleEditor)
	assert.ErrorIs(t, err, interfaces.ErrAuthorization)
}

func TestValidateRejectsUnresolvedCaller(t *testing.T) {
	f := newProofFixture(t)
	proof := f.signedProof(t, interfaces.RoleEditor)

	_, err := f.validator.Validate(context.Background(), "unknown-caller", proof, interfaces.RoleViewer)
	assert.ErrorIs(t, err, interfaces.ErrAuthorization)
}

func TestValidateRejectsIdentityMismatch(t *testing.T) {
	f := newProofFixture(t)
	proof := f.signedProof(t, interfaces.RoleEditor)

	// The caller resolves, but to a different wallet than the credential
	// was issued for.
	f.identity.Register(testCallerID, f.companyAddress())

	_, err := f.validator.Validate(context.Background(), testCallerID, proof, interfaces.RoleViewer)
	assert.ErrorIs(t, err, interfaces.ErrAuthorization)
}

func TestValidateRejectsRevokedDelegateCredential(t *testing.T) {
	f := newProofFixture(t)
	proof := f.signedProof(t, interfaces.RoleEditor)

	f.revocation.Revoke(f.companyAddress(), proof.DelegateCredentialIDHash)

	_, err := f.validator.Validate(context.Background(), testCallerID, proof, interfaces.RoleViewer)
	assert.ErrorIs(t, err, interfaces.ErrAuthorization)
}

func TestValidateRejectsRevokedDelegatorCredential(t *testing.T) {
	f := newProofFixture(t)
	proof := f.signedProof(t, interfaces.RoleEditor)

	f.revocation.Revoke(proof.Membership.Issuer, proof.Membership.DelegatorCredentialIDHash)

	_, err := f.validator.Validate(context.Background(), testCallerID, proof, interfaces.RoleViewer)
	assert.ErrorIs(t, err, interfaces.ErrAuthorization)
}

func TestValidateRejectsUntrustedIssuer(t *testing.T) {
	f := newProofFixture(t)
	proof := f.signedProof(t, interfaces.RoleEditor)

	// A self-consistent membership proof from a key that is not the
	// configured root of trust.
	rogueKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	sig, err := cryptoutils.SignPayload(
		cryptoutils.MembershipPayload(proof.Membership.DelegatorCredentialIDHash, proof.Membership.DelegatorCredentialExpiresAt, proof.Membership.DelegatorAddress), rogueKey)
	require.NoError(t, err)
	proof.Membership.SignedProof = sig
	proof.Membership.Issuer = cryptoutils.SignerAddress(rogueKey)

	_, err = f.validator.Validate(context.Background(), testCallerID, proof, interfaces.RoleViewer)
	assert.ErrorIs(t, err, interfaces.ErrAuthorization)
}

func TestValidateRejectsDelegatorChainMismatch(t *testing.T) {
	f := newProofFixture(t)
	proof := f.signedProof(t, interfaces.RoleEditor)

	// The membership proof binds a different company than the one that
	// signed the delegate credential.
	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherCompany := cryptoutils.SignerAddress(otherKey)
	sig, err := cryptoutils.SignPayload(
		cryptoutils.MembershipPayload(proof.Membership.DelegatorCredentialIDHash, proof.Membership.DelegatorCredentialExpiresAt, otherCompany), f.issuerKey)
	require.NoError(t, err)
	proof.Membership.SignedProof = sig
	proof.Membership.DelegatorAddress = otherCompany

	_, err = f.validator.Validate(context.Background(), testCallerID, proof, interfaces.RoleViewer)
	assert.ErrorIs(t, err, interfaces.ErrAuthorization)
}

func TestValidateRejectsExpiredDelegatorCredential(t *testing.T) {
	f := newProofFixture(t)
	proof := f.signedProof(t, interfaces.RoleEditor)

	expired := time.Now().Add(-time.Minute).Unix()
	sig, err := cryptoutils.SignPayload(
		cryptoutils.MembershipPayload(proof.Membership.DelegatorCredentialIDHash, expired, proof.Membership.DelegatorAddress), f.issuerKey)
	require.NoError(t, err)
	proof.Membership.SignedProof = sig
	proof.Membership.DelegatorCredentialExpiresAt = expired

	_, err = f.validator.Validate(context.Background(), testCallerID, proof, interfaces.RoleViewer)
	assert.ErrorIs(t, err, interfaces.ErrAuthorization)
}

func TestValidateFailsClosedOnUnavailableCollaborators(t *testing.T) {
	f := newProofFixture(t)
	proof := f.signedProof(t, interfaces.RoleEditor)

	f.identity.SetFailing(true)
	_, err := f.validator.Validate(context.Background(), testCallerID, proof, interfaces.RoleViewer)
	assert.ErrorIs(t, err, interfaces.ErrUnavailable)
	f.identity.SetFailing(false)

	f.revocation.SetFailing(true)
	_, err = f.validator.Validate(context.Background(), testCallerID, proof, interfaces.RoleViewer)
	assert.ErrorIs(t, err, interfaces.ErrUnavailable)
}

func TestValidateRejectsMalformedProof(t *testing.T) {
	f := newProofFixture(t)

	_, err := f.validator.Validate(context.Background(), testCallerID, nil, interfaces.RoleViewer)
	assert.ErrorIs(t, err, interfaces.ErrValidation)

	proof := f.signedProof(t, interfaces.RoleEditor)
	proof.SignedProof = nil
	_, err = f.validator.Validate(context.Background(), testCallerID, proof, interfaces.RoleViewer)
	assert.ErrorIs(t, err, interfaces.ErrValidation)

	proof = f.signedProof(t, interfaces.RoleEditor)
	proof.Role = "Superuser"
	_, err = f.validator.Validate(context.Background(), testCallerID, proof, interfaces.RoleViewer)
	assert.ErrorIs(t, err, interfaces.ErrValidation)
}
