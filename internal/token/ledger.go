// Package token provides an in-memory implementation of the fungible-token
// collaborator for standalone operation and tests. Production deployments
// inject the real token system instead.
package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/predictlabs/predictd/internal/domain"
	"github.com/predictlabs/predictd/internal/fixedpoint"
)

// Ledger is a mutex-guarded balance map. Transfer draws from the configured
// treasury account, matching the engine-centric TokenLedger contract.
type Ledger struct {
	treasury common.Address

	mu       sync.Mutex
	balances map[common.Address]*uint256.Int
}

// NewLedger creates a Ledger whose Transfer method draws from treasury.
func NewLedger(treasury common.Address) *Ledger {
	return &Ledger{
		treasury: treasury,
		balances: make(map[common.Address]*uint256.Int),
	}
}

// Mint credits amount to addr out of thin air. Test and bootstrap helper.
func (l *Ledger) Mint(addr common.Address, amount *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(addr, amount)
}

// BalanceOf returns addr's current balance.
func (l *Ledger) BalanceOf(addr common.Address) *uint256.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fixedpoint.Clone(l.balances[addr])
}

// Transfer moves amount from the treasury to the recipient.
func (l *Ledger) Transfer(ctx context.Context, to common.Address, amount *uint256.Int) error {
	return l.TransferFrom(ctx, l.treasury, to, amount)
}

// TransferFrom moves amount between accounts, failing on insufficient funds.
func (l *Ledger) TransferFrom(_ context.Context, from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balances[from]
	if bal == nil || bal.Lt(amount) {
		return fmt.Errorf("token: balance of %s below %s: %w", from.Hex(), amount.Dec(), domain.ErrTransferFailed)
	}
	l.balances[from] = fixedpoint.Sub(bal, amount)
	l.credit(to, amount)
	return nil
}

// credit adds amount to addr. Callers hold l.mu.
func (l *Ledger) credit(addr common.Address, amount *uint256.Int) {
	if cur, ok := l.balances[addr]; ok {
		l.balances[addr] = fixedpoint.Add(cur, amount)
		return
	}
	l.balances[addr] = fixedpoint.Clone(amount)
}
