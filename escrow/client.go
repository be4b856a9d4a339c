// Package escrow provides the client for the external escrow ledger: the
// value-custody contracts that hold, lock and release funds against a
// shipment. The lifecycle engine only tracks the ledger's status; the actual
// transfer mechanics, including transaction signing and broadcasting, belong
// to the ledger side.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"github.com/tradelane/trade-finance-backend/interfaces"
)

// ErrNoTransactOpts is returned when a state-changing ledger operation is
// attempted without first setting transaction options.
var ErrNoTransactOpts = errors.New("no authorized transactor available")

const escrowABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "payer", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "deposit",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "lock",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "release",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "depositedAmount",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// LedgerClient implements interfaces.EscrowLedger against per-shipment
// escrow contracts. One client serves all escrow addresses; the contract is
// bound per call.
type LedgerClient struct {
	backend   bind.ContractBackend
	parsedABI abi.ABI
	auth      *bind.TransactOpts
}

// NewLedgerClient creates an escrow ledger client over the given backend.
func NewLedgerClient(backend bind.ContractBackend) (*LedgerClient, error) {
	parsed, err := abi.JSON(strings.NewReader(escrowABI))
	if err != nil {
		return nil, fmt.Errorf("parsing escrow ABI: %w", err)
	}
	return &LedgerClient{backend: backend, parsedABI: parsed}, nil
}

// SetTransactOpts sets the transaction options required for state-changing
// ledger operations. This must be called before Deposit, Lock or Release.
func (c *LedgerClient) SetTransactOpts(auth *bind.TransactOpts) {
	c.auth = auth
}

func (c *LedgerClient) bound(escrow interfaces.Address) *bind.BoundContract {
	return bind.NewBoundContract(common.Address(escrow), c.parsedABI, c.backend, c.backend, c.backend)
}

// Deposit transfers amount into escrow on behalf of payer.
func (c *LedgerClient) Deposit(ctx context.Context, escrow interfaces.Address, payer interfaces.Address, amount *big.Int) error {
	if c.auth == nil {
		return ErrNoTransactOpts
	}

	_, err := c.bound(escrow).Transact(c.auth, "deposit", common.Address(payer), amount)
	if err != nil {
		return fmt.Errorf("escrow deposit failed: %w", err)
	}
	return nil
}

// Lock freezes the deposited funds.
func (c *LedgerClient) Lock(ctx context.Context, escrow interfaces.Address) error {
	if c.auth == nil {
		return ErrNoTransactOpts
	}

	_, err := c.bound(escrow).Transact(c.auth, "lock")
	if err != nil {
		return fmt.Errorf("escrow lock failed: %w", err)
	}
	return nil
}

// Release pays the escrowed funds out.
func (c *LedgerClient) Release(ctx context.Context, escrow interfaces.Address) error {
	if c.auth == nil {
		return ErrNoTransactOpts
	}

	_, err := c.bound(escrow).Transact(c.auth, "release")
	if err != nil {
		return fmt.Errorf("escrow release failed: %w", err)
	}
	return nil
}

// DepositedAmount reports the total currently deposited against escrow.
func (c *LedgerClient) DepositedAmount(ctx context.Context, escrow interfaces.Address) (*big.Int, error) {
	var out []interface{}
	err := c.bound(escrow).Call(&bind.CallOpts{Context: ctx}, &out, "depositedAmount")
	if err != nil {
		return nil, fmt.Errorf("escrow balance query failed: %w", err)
	}

	amount, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("escrow returned unexpected type %T", out[0])
	}
	return amount, nil
}
