// Package interfaces defines the core types and collaborator interfaces for
// the trade-finance platform. It provides the contract between components
// without implementation details.
package interfaces

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Address represents a 20-byte externally verifiable account address
// (company wallet, delegate wallet, escrow contract).
type Address [20]byte

// NewAddressFromBytes creates a new address from a raw byte slice.
func NewAddressFromBytes(addr []byte) (Address, error) {
	if len(addr) != 20 {
		return Address{}, errors.New("invalid address length: must be 20 bytes")
	}

	var res Address
	copy(res[:], addr)
	return res, nil
}

// NewAddressFromHex creates a new address from a hex string, with or without
// the 0x prefix.
func NewAddressFromHex(addr string) (Address, error) {
	clean := strings.TrimPrefix(addr, "0x")
	if len(clean) != 40 {
		return Address{}, errors.New("invalid address length: hex string must be 40 characters")
	}

	addrBytes, err := hex.DecodeString(clean)
	if err != nil {
		return Address{}, fmt.Errorf("invalid hex format: %w", err)
	}

	return NewAddressFromBytes(addrBytes)
}

// String returns the 0x-prefixed lowercase hex representation of the address.
func (addr Address) String() string {
	return "0x" + hex.EncodeToString(addr[:])
}

// Bytes returns the raw 20-byte address.
func (addr Address) Bytes() []byte {
	return addr[:]
}

// Equal compares two addresses for equality.
func (addr Address) Equal(other Address) bool {
	return addr == other
}

// IsZero reports whether the address is the zero address.
func (addr Address) IsZero() bool {
	return addr == Address{}
}

// MarshalText implements encoding.TextMarshaler so addresses serialize as hex
// strings in JSON payloads.
func (addr Address) MarshalText() ([]byte, error) {
	return []byte(addr.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (addr *Address) UnmarshalText(text []byte) error {
	parsed, err := NewAddressFromHex(string(text))
	if err != nil {
		return err
	}
	*addr = parsed
	return nil
}

// Hash represents a 32-byte hash, used for credential identifiers and
// content addressing of stored documents.
type Hash [32]byte

// NewHashFromHex creates a new hash from a hex string, with or without the
// 0x prefix.
func NewHashFromHex(h string) (Hash, error) {
	clean := strings.TrimPrefix(h, "0x")
	if len(clean) != 64 {
		return Hash{}, errors.New("invalid hash length: hex string must be 64 characters")
	}

	hashBytes, err := hex.DecodeString(clean)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var res Hash
	copy(res[:], hashBytes)
	return res, nil
}

// String returns the 0x-prefixed lowercase hex representation of the hash.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// Bytes returns the raw 32-byte hash.
func (h Hash) Bytes() []byte {
	return h[:]
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := NewHashFromHex(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// Role is a permission tier on the platform's ordered ladder
// Viewer < Editor < Signer.
type Role string

const (
	RoleViewer Role = "Viewer"
	RoleEditor Role = "Editor"
	RoleSigner Role = "Signer"
)

var roleRank = map[Role]int{
	RoleViewer: 0,
	RoleEditor: 1,
	RoleSigner: 2,
}

// ParseRole converts a string to a Role, rejecting unknown tiers.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := roleRank[r]; !ok {
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
	return r, nil
}

// Valid reports whether the role is one of the known tiers.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether the role grants at least the permissions of min.
// Unknown roles never satisfy any minimum.
func (r Role) AtLeast(min Role) bool {
	rr, ok := roleRank[r]
	if !ok {
		return false
	}
	mr, ok := roleRank[min]
	if !ok {
		return false
	}
	return rr >= mr
}

// MembershipProof is the delegator-level half of a role proof: the company
// wallet's signature binding the delegator credential to its issuer.
type MembershipProof struct {
	SignedProof                  []byte  `json:"signedProof"`
	Issuer                       Address `json:"issuer"`
	DelegatorAddress             Address `json:"delegatorAddress"`
	DelegatorCredentialIDHash    Hash    `json:"delegatorCredentialIdHash"`
	DelegatorCredentialExpiresAt int64   `json:"delegatorCredentialExpiryDate"`
}

// RoleProof is the combined two-level signed credential presented on every
// call. It is constructed off-system by a user wallet (delegate signature)
// and a company wallet (membership signature) and is never persisted beyond
// an optional short-lived session cache.
type RoleProof struct {
	SignedProof                 []byte          `json:"signedProof"`
	Signer                      Address         `json:"signer"`
	DelegateAddress             Address         `json:"delegateAddress"`
	Role                        Role            `json:"role"`
	DelegateCredentialIDHash    Hash            `json:"delegateCredentialIdHash"`
	DelegateCredentialExpiresAt int64           `json:"delegateCredentialExpiryDate"`
	Membership                  MembershipProof `json:"membershipProof"`
}

// Validate checks the structural shape of the proof. Signature and chain
// verification is the role-proof validator's job; this only rejects proofs
// with missing required fields.
func (p *RoleProof) Validate() error {
	switch {
	case len(p.SignedProof) == 0:
		return fmt.Errorf("%w: missing signed proof", ErrValidation)
	case p.Signer.IsZero():
		return fmt.Errorf("%w: missing signer", ErrValidation)
	case p.DelegateAddress.IsZero():
		return fmt.Errorf("%w: missing delegate address", ErrValidation)
	case !p.Role.Valid():
		return fmt.Errorf("%w: unknown role %q", ErrValidation, p.Role)
	case p.DelegateCredentialExpiresAt == 0:
		return fmt.Errorf("%w: missing delegate credential expiry", ErrValidation)
	case len(p.Membership.SignedProof) == 0:
		return fmt.Errorf("%w: missing membership signed proof", ErrValidation)
	case p.Membership.Issuer.IsZero():
		return fmt.Errorf("%w: missing membership issuer", ErrValidation)
	case p.Membership.DelegatorAddress.IsZero():
		return fmt.Errorf("%w: missing delegator address", ErrValidation)
	case p.Membership.DelegatorCredentialExpiresAt == 0:
		return fmt.Errorf("%w: missing delegator credential expiry", ErrValidation)
	}
	return nil
}

// CallerIdentity is the output of a successful role-proof validation: the
// company address attributed to all subsequent business actions, plus the
// delegate's verified permission tier.
type CallerIdentity struct {
	CompanyAddress Address `json:"companyAddress"`
	Role           Role    `json:"role"`
}
