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

const revocationRegistryABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "signer", "type": "address"},
			{"internalType": "bytes32", "name": "credentialIdHash", "type": "bytes32"}
		],
		"name": "revoked",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// RevocationRegistryClient implements interfaces.RevocationOracle against
// the revocation registry contract.
type RevocationRegistryClient struct {
	contract *bind.BoundContract
	address  common.Address
}

// NewRevocationRegistryClient creates a client for the revocation registry
// contract at the specified address.
func NewRevocationRegistryClient(backend bind.ContractBackend, address interfaces.Address) (*RevocationRegistryClient, error) {
	parsed, err := abi.JSON(strings.NewReader(revocationRegistryABI))
	if err != nil {
		return nil, fmt.Errorf("parsing revocation registry ABI: %w", err)
	}

	commonAddr := common.Address(address)
	return &RevocationRegistryClient{
		contract: bind.NewBoundContract(commonAddr, parsed, backend, backend, backend),
		address:  commonAddr,
	}, nil
}

// IsRevoked reports whether the credential identified by credentialIDHash
// has been revoked by signer. Transport failures surface as errors so the
// validator can reject fail-closed.
func (c *RevocationRegistryClient) IsRevoked(ctx context.Context, signer interfaces.Address, credentialIDHash interfaces.Hash) (bool, error) {
	var out []interface{}
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "revoked", common.Address(signer), [32]byte(credentialIDHash))
	if err != nil {
		return false, fmt.Errorf("revocation registry call failed: %w", err)
	}

	revoked, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("revocation registry returned unexpected type %T", out[0])
	}
	return revoked, nil
}
