// Package roleproof implements the delegated role-proof verification
// protocol. A proof carries two signature levels: the delegate level, signed
// by the end-user wallet, and the membership level, signed by the company
// wallet that authorized the delegate. Validation chains the two levels
// together, checks both credentials against the revocation registry and
// resolves the caller's platform identity through the identity bridge.
//
// All checks are fail-closed: any signature mismatch, expired or revoked
// credential, chain mismatch or unreachable collaborator rejects the call.
package roleproof

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tradelane/trade-finance-backend/cryptoutils"
	"github.com/tradelane/trade-finance-backend/interfaces"
)

// collaboratorError classifies a failed collaborator call. Errors already
// carrying a taxonomy sentinel pass through; anything else is a transport
// failure and rejects fail-closed as unavailable.
func collaboratorError(msg string, err error) error {
	if errors.Is(err, interfaces.ErrAuthorization) || errors.Is(err, interfaces.ErrNotFound) || errors.Is(err, interfaces.ErrValidation) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", interfaces.ErrUnavailable, msg, err)
}

// Validator verifies presented role proofs. It holds the single configured
// trusted membership-issuer address that anchors every delegation chain.
type Validator struct {
	identity      interfaces.IdentityResolver
	revocation    interfaces.RevocationOracle
	trustedIssuer interfaces.Address
	log           *slog.Logger

	// now is replaceable for tests.
	now func() time.Time
}

// NewValidator creates a validator with the given collaborators and root of
// trust.
func NewValidator(identity interfaces.IdentityResolver, revocation interfaces.RevocationOracle, trustedIssuer interfaces.Address, log *slog.Logger) *Validator {
	return &Validator{
		identity:      identity,
		revocation:    revocation,
		trustedIssuer: trustedIssuer,
		log:           log,
		now:           time.Now,
	}
}

// Validate runs the full delegation check against a presented proof and a
// minimum required role. On success it returns the verified caller identity:
// the delegator's company address and the delegate's permission tier. The
// company address is the one attributed to all subsequent business actions.
func (v *Validator) Validate(ctx context.Context, callerID string, proof *interfaces.RoleProof, minimumRole interfaces.Role) (interfaces.CallerIdentity, error) {
	if proof == nil {
		return interfaces.CallerIdentity{}, fmt.Errorf("%w: missing role proof", interfaces.ErrValidation)
	}
	if err := proof.Validate(); err != nil {
		return interfaces.CallerIdentity{}, err
	}

	// Delegate level: the payload must recover to the claimed signer.
	delegatePayload := cryptoutils.DelegatePayload(proof.DelegateAddress, proof.Role, proof.DelegateCredentialIDHash, proof.DelegateCredentialExpiresAt)
	delegateSigner, err := cryptoutils.RecoverSigner(delegatePayload, proof.SignedProof)
	if err != nil {
		return interfaces.CallerIdentity{}, fmt.Errorf("%w: %v", interfaces.ErrAuthorization, err)
	}
	if !delegateSigner.Equal(proof.Signer) {
		return interfaces.CallerIdentity{}, fmt.Errorf("%w: delegate signature does not match claimed signer", interfaces.ErrAuthorization)
	}

	if !proof.Role.AtLeast(minimumRole) {
		return interfaces.CallerIdentity{}, fmt.Errorf("%w: role %s does not satisfy minimum role %s", interfaces.ErrAuthorization, proof.Role, minimumRole)
	}

	nowUnix := v.now().Unix()
	if proof.DelegateCredentialExpiresAt < nowUnix {
		return interfaces.CallerIdentity{}, fmt.Errorf("%w: delegate credential expired", interfaces.ErrAuthorization)
	}

	// The caller's platform identity must resolve to the delegate address
	// the credential was issued for.
	resolved, err := v.identity.ResolveIdentity(ctx, callerID)
	if err != nil {
		return interfaces.CallerIdentity{}, collaboratorError("identity resolution failed", err)
	}
	if !resolved.Equal(proof.DelegateAddress) {
		return interfaces.CallerIdentity{}, fmt.Errorf("%w: caller identity does not resolve to delegate address", interfaces.ErrAuthorization)
	}

	revoked, err := v.revocation.IsRevoked(ctx, delegateSigner, proof.DelegateCredentialIDHash)
	if err != nil {
		return interfaces.CallerIdentity{}, collaboratorError("revocation check failed", err)
	}
	if revoked {
		return interfaces.CallerIdentity{}, fmt.Errorf("%w: delegate credential revoked", interfaces.ErrAuthorization)
	}

	// Membership level: the payload must recover to the claimed issuer, and
	// that issuer must be the configured root of trust.
	membership := proof.Membership
	membershipPayload := cryptoutils.MembershipPayload(membership.DelegatorCredentialIDHash, membership.DelegatorCredentialExpiresAt, membership.DelegatorAddress)
	membershipSigner, err := cryptoutils.RecoverSigner(membershipPayload, membership.SignedProof)
	if err != nil {
		return interfaces.CallerIdentity{}, fmt.Errorf("%w: %v", interfaces.ErrAuthorization, err)
	}
	if !membershipSigner.Equal(membership.Issuer) {
		return interfaces.CallerIdentity{}, fmt.Errorf("%w: membership signature does not match claimed issuer", interfaces.ErrAuthorization)
	}
	if !membershipSigner.Equal(v.trustedIssuer) {
		return interfaces.CallerIdentity{}, fmt.Errorf("%w: membership issuer is not trusted", interfaces.ErrAuthorization)
	}

	// Chain the delegate proof to its issuing delegator.
	if !membership.DelegatorAddress.Equal(delegateSigner) {
		return interfaces.CallerIdentity{}, fmt.Errorf("%w: delegator address does not match delegate proof signer", interfaces.ErrAuthorization)
	}

	if membership.DelegatorCredentialExpiresAt < nowUnix {
		return interfaces.CallerIdentity{}, fmt.Errorf("%w: delegator credential expired", interfaces.ErrAuthorization)
	}

	revoked, err = v.revocation.IsRevoked(ctx, membershipSigner, membership.DelegatorCredentialIDHash)
	if err != nil {
		return interfaces.CallerIdentity{}, collaboratorError("revocation check failed", err)
	}
	if revoked {
		return interfaces.CallerIdentity{}, fmt.Errorf("%w: delegator credential revoked", interfaces.ErrAuthorization)
	}

	identity := interfaces.CallerIdentity{
		CompanyAddress: membership.DelegatorAddress,
		Role:           proof.Role,
	}

	v.log.Debug("role proof validated",
		"caller", callerID,
		"company", identity.CompanyAddress.String(),
		"role", string(identity.Role),
	)

	return identity, nil
}
