package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TokenLedger is the external fungible-token system the engine moves funds
// through. Both methods are fallible; a failure maps to ErrTransferFailed and
// the calling operation rolls back atomically. Implementations may invoke
// arbitrary third-party code, so the engine always finishes its own state
// mutation before an outbound Transfer.
type TokenLedger interface {
	// Transfer moves amount from the engine's treasury to the recipient.
	Transfer(ctx context.Context, to common.Address, amount *uint256.Int) error

	// TransferFrom moves amount between two external accounts, typically from
	// a caller into the engine's treasury.
	TransferFrom(ctx context.Context, from, to common.Address, amount *uint256.Int) error
}

// Capability names a permission checked through the external authorization
// collaborator.
type Capability string

const (
	CapCreateMarket   Capability = "CREATE_MARKET"
	CapValidateMarket Capability = "VALIDATE_MARKET"
	CapResolveMarket  Capability = "RESOLVE_MARKET"
)

// Authorizer is the injected capability-check interface. Role management
// itself lives outside this system; the engine only asks questions.
type Authorizer interface {
	HasCapability(ctx context.Context, caller common.Address, cap Capability) bool

	// IsOwner reports whether caller holds the owner/admin super-capability.
	IsOwner(caller common.Address) bool
}
