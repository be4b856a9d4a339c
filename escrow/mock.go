package escrow

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/tradelane/trade-finance-backend/interfaces"
)

// MockLedger provides an in-memory implementation of the
// interfaces.EscrowLedger interface for testing without a blockchain
// connection. Balances are tracked per escrow address.
type MockLedger struct {
	mutex    sync.RWMutex
	balances map[interfaces.Address]*big.Int
	locked   map[interfaces.Address]bool
	released map[interfaces.Address]bool
	failing  bool
}

// NewMockLedger creates a mock ledger with zero balances.
func NewMockLedger() *MockLedger {
	return &MockLedger{
		balances: make(map[interfaces.Address]*big.Int),
		locked:   make(map[interfaces.Address]bool),
		released: make(map[interfaces.Address]bool),
	}
}

// SetFailing makes every subsequent call fail, simulating an unreachable
// ledger.
func (m *MockLedger) SetFailing(failing bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failing = failing
}

// Deposit adds amount to the escrow balance.
func (m *MockLedger) Deposit(ctx context.Context, escrow interfaces.Address, payer interfaces.Address, amount *big.Int) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.failing {
		return fmt.Errorf("escrow ledger unreachable")
	}

	balance, ok := m.balances[escrow]
	if !ok {
		balance = new(big.Int)
		m.balances[escrow] = balance
	}
	balance.Add(balance, amount)
	return nil
}

// Lock marks the escrow as locked.
func (m *MockLedger) Lock(ctx context.Context, escrow interfaces.Address) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.failing {
		return fmt.Errorf("escrow ledger unreachable")
	}
	m.locked[escrow] = true
	return nil
}

// Release marks the escrow as released.
func (m *MockLedger) Release(ctx context.Context, escrow interfaces.Address) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.failing {
		return fmt.Errorf("escrow ledger unreachable")
	}
	m.released[escrow] = true
	return nil
}

// DepositedAmount returns the current escrow balance.
func (m *MockLedger) DepositedAmount(ctx context.Context, escrow interfaces.Address) (*big.Int, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if m.failing {
		return nil, fmt.Errorf("escrow ledger unreachable")
	}

	balance, ok := m.balances[escrow]
	if !ok {
		return new(big.Int), nil
	}
	return new(big.Int).Set(balance), nil
}

// Locked reports whether the escrow has been locked. Test helper.
func (m *MockLedger) Locked(escrow interfaces.Address) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.locked[escrow]
}

// Released reports whether the escrow has been released. Test helper.
func (m *MockLedger) Released(escrow interfaces.Address) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.released[escrow]
}
