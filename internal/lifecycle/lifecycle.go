// Package lifecycle is the authority on which market operations are legal at
// any point in time. It is a pure decision table over an immutable Snapshot;
// every engine operation consults it before mutating state, and no component
// bypasses it.
//
// The machine: Created → {Validated | Invalidated}; Validated → Active while
// now < endTime → Ended; Ended → Resolved → {Disputed | ClaimsOpen}.
// Invalidation is terminal.
package lifecycle

import (
	"time"

	"github.com/predictlabs/predictd/internal/domain"
)

// Snapshot is the lifecycle-relevant slice of a market's state. Engines build
// a fresh Snapshot on every call; cached snapshots must never be trusted
// across calls.
type Snapshot struct {
	CreatedAt       time.Time
	EndTime         time.Time
	Kind            domain.MarketKind
	EarlyResolution bool
	Validated       bool
	Invalidated     bool
	Resolved        bool
	Disputed        bool
}

// FromMarket extracts a Snapshot from a market record.
func FromMarket(m *domain.Market) Snapshot {
	return Snapshot{
		CreatedAt:       m.CreatedAt,
		EndTime:         m.EndTime,
		Kind:            m.Kind,
		EarlyResolution: m.EarlyResolution,
		Validated:       m.Validated,
		Invalidated:     m.Invalidated,
		Resolved:        m.Resolved,
		Disputed:        m.Disputed,
	}
}

// CanValidate gates the Created→Validated transition.
func CanValidate(s Snapshot) error {
	if s.Invalidated {
		return domain.ErrMarketInvalidated
	}
	if s.Validated {
		return domain.ErrAlreadyValidated
	}
	return nil
}

// CanInvalidate gates the Created→Invalidated transition. A validated market
// can no longer be invalidated.
func CanInvalidate(s Snapshot) error {
	if s.Invalidated {
		return domain.ErrMarketInvalidated
	}
	if s.Validated {
		return domain.ErrAlreadyValidated
	}
	return nil
}

// CanTrade gates buys, sells, swaps, liquidity additions and free-entry
// claims. requireValidated is set for staked buys and sells.
func CanTrade(s Snapshot, now time.Time, requireValidated bool) error {
	if s.Invalidated {
		return domain.ErrMarketInvalidated
	}
	if s.Resolved {
		return domain.ErrMarketResolvedAlready
	}
	if !now.Before(s.EndTime) {
		return domain.ErrMarketEnded
	}
	if requireValidated && !s.Validated {
		return domain.ErrMarketNotReady
	}
	return nil
}

// CanResolve gates resolution: after endTime unconditionally, or before it
// when early resolution is enabled and the minimum delay since creation has
// elapsed.
func CanResolve(s Snapshot, now time.Time, minEarlyDelay time.Duration) error {
	if s.Invalidated {
		return domain.ErrMarketInvalidated
	}
	if s.Resolved {
		return domain.ErrMarketResolvedAlready
	}
	if now.Before(s.EndTime) {
		if !s.EarlyResolution {
			return domain.ErrMarketNotEndedYet
		}
		if now.Before(s.CreatedAt.Add(minEarlyDelay)) {
			return domain.ErrMarketTooNew
		}
	}
	return nil
}

// CanDispute gates the single post-resolution dispute. Holders of winning
// shares may not dispute.
func CanDispute(s Snapshot, holdsWinningShares bool) error {
	if s.Invalidated {
		return domain.ErrMarketInvalidated
	}
	if !s.Resolved {
		return domain.ErrMarketNotResolved
	}
	if s.Disputed {
		return domain.ErrAlreadyDisputed
	}
	if holdsWinningShares {
		return domain.ErrCannotDisputeIfWon
	}
	return nil
}

// CanResolveDispute gates the owner's dispute resolution.
func CanResolveDispute(s Snapshot) error {
	if !s.Disputed {
		return domain.ErrNotDisputed
	}
	return nil
}

// CanClaim gates payout-dependent operations: winnings, LP rewards, and the
// creator's admin-liquidity withdrawal.
func CanClaim(s Snapshot) error {
	if s.Invalidated {
		return domain.ErrMarketInvalidated
	}
	if !s.Resolved {
		return domain.ErrMarketNotResolved
	}
	if s.Disputed {
		return domain.ErrMarketDisputed
	}
	return nil
}
