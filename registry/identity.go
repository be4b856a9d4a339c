// Package registry provides clients for the two on-chain verification
// collaborators of the role-proof protocol: the identity-resolution bridge,
// which maps platform-native caller identities to account addresses, and the
// revocation registry, which invalidates previously issued credentials by
// hash. Both are consumed read-only.
package registry

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tradelane/trade-finance-backend/interfaces"
)

const identityBridgeABI = `[
	{
		"inputs": [{"internalType": "string", "name": "callerId", "type": "string"}],
		"name": "resolve",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// IdentityBridgeClient implements interfaces.IdentityResolver against the
// identity bridge contract.
type IdentityBridgeClient struct {
	contract *bind.BoundContract
	address  common.Address
}

// NewIdentityBridgeClient creates a client for the identity bridge contract
// at the specified address.
func NewIdentityBridgeClient(backend bind.ContractBackend, address interfaces.Address) (*IdentityBridgeClient, error) {
	parsed, err := abi.JSON(strings.NewReader(identityBridgeABI))
	if err != nil {
		return nil, fmt.Errorf("parsing identity bridge ABI: %w", err)
	}

	commonAddr := common.Address(address)
	return &IdentityBridgeClient{
		contract: bind.NewBoundContract(commonAddr, parsed, backend, backend, backend),
		address:  commonAddr,
	}, nil
}

// ResolveIdentity maps a platform-native caller identity to its account
// address. An unmapped caller resolves to the zero address on chain and is
// rejected as an authorization failure.
func (c *IdentityBridgeClient) ResolveIdentity(ctx context.Context, callerID string) (interfaces.Address, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "resolve", callerID); err != nil {
		return interfaces.Address{}, fmt.Errorf("identity bridge call failed: %w", err)
	}

	resolved, ok := out[0].(common.Address)
	if !ok {
		return interfaces.Address{}, fmt.Errorf("identity bridge returned unexpected type %T", out[0])
	}

	addr := interfaces.Address(resolved)
	if addr.IsZero() {
		return interfaces.Address{}, fmt.Errorf("%w: unknown caller identity %q", interfaces.ErrAuthorization, callerID)
	}
	return addr, nil
}
