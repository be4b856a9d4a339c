package interfaces

import (
	"context"
	"math/big"
)

// IdentityResolver maps a caller's platform-native identity to its
// externally verifiable address. Implementations live behind the
// identity-resolution bridge; resolution of an unknown caller fails.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, callerID string) (Address, error)
}

// RevocationOracle reports whether a previously issued credential has been
// revoked by its signer. A transport failure must surface as an error, not
// as "not revoked".
type RevocationOracle interface {
	IsRevoked(ctx context.Context, signer Address, credentialIDHash Hash) (bool, error)
}

// RoleProofValidator verifies a presented role proof against a minimum
// required role and returns the verified caller identity.
type RoleProofValidator interface {
	Validate(ctx context.Context, callerID string, proof *RoleProof, minimumRole Role) (CallerIdentity, error)
}

// EscrowLedger is the external value-custody system holding funds against a
// shipment's escrow address. The core tracks only its status, not its
// mechanics.
type EscrowLedger interface {
	// Deposit transfers amount into escrow on behalf of payer.
	Deposit(ctx context.Context, escrow Address, payer Address, amount *big.Int) error

	// Lock freezes the deposited funds.
	Lock(ctx context.Context, escrow Address) error

	// Release pays the escrowed funds out.
	Release(ctx context.Context, escrow Address) error

	// DepositedAmount reports the total currently deposited against escrow.
	DepositedAmount(ctx context.Context, escrow Address) (*big.Int, error)
}

// StorageBackendLocation is a URI identifying a document-content backend,
// e.g. "file:///var/lib/docs" or "s3://bucket/prefix?region=us-east-1".
type StorageBackendLocation string

// StorageBackend stores raw document content addressed by its sha256 hash.
type StorageBackend interface {
	// Fetch retrieves document content by its content hash.
	Fetch(ctx context.Context, contentHash Hash) ([]byte, error)

	// Store persists document content and returns its content hash.
	Store(ctx context.Context, data []byte) (Hash, error)

	// Available reports whether the backend is currently reachable.
	Available(ctx context.Context) bool

	// Name returns a short identifier for logging.
	Name() string

	// LocationURI returns the URI this backend was created from.
	LocationURI() StorageBackendLocation
}

// StorageBackendFactory creates storage backends from location URIs.
type StorageBackendFactory interface {
	StorageBackendFor(location StorageBackendLocation) (StorageBackend, error)
	CreateMultiBackend(locations []StorageBackendLocation) (StorageBackend, error)
}
