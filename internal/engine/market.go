package engine

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/predictlabs/predictd/internal/amm"
	"github.com/predictlabs/predictd/internal/domain"
	"github.com/predictlabs/predictd/internal/fixedpoint"
)

// marketState is one market's complete mutable state. Every field is guarded
// by mu; operations re-validate lifecycle legality on each call and never
// trust state cached across calls.
type marketState struct {
	mu sync.Mutex

	m    domain.Market
	pool *amm.Pool

	// shares is the per-user share vector, length m.OptionCount.
	shares map[common.Address][]*uint256.Int

	// winClaimed marks users who have claimed winnings.
	winClaimed map[common.Address]bool

	// contribs is the liquidity ledger; lpTotal is seed + all contributions.
	contribs map[common.Address]*domain.LiquidityContribution
	lpTotal  *uint256.Int

	// freeClaims is the free-entry ledger.
	freeClaims map[common.Address]*domain.FreeClaim

	// basis is the payout basis frozen at resolution. Claims compute from
	// it so payouts are independent of claim order; UserLiquidity still
	// decrements live for conservation. Re-frozen when a dispute ruling
	// amends the winner.
	basis *payoutBasis

	// history is the bounded price-history tail; trades the bounded
	// recent-trades tail (the full log goes to the trade store via events).
	history []domain.PricePoint
	trades  []domain.Trade
}

// userShares returns the caller's share vector, allocating it on first use.
func (ms *marketState) userShares(user common.Address) []*uint256.Int {
	v, ok := ms.shares[user]
	if !ok {
		v = make([]*uint256.Int, ms.m.OptionCount)
		for i := range v {
			v[i] = fixedpoint.Zero()
		}
		ms.shares[user] = v
	}
	return v
}

// holdsWinningShares reports whether user holds shares of the winning option.
func (ms *marketState) holdsWinningShares(user common.Address) bool {
	if ms.m.WinningOption == domain.NoWinner {
		return false
	}
	v, ok := ms.shares[user]
	return ok && !v[ms.m.WinningOption].IsZero()
}

// recordPrices appends the current price vector to the bounded history.
func (ms *marketState) recordPrices(now time.Time, limit int) {
	ms.history = append(ms.history, domain.PricePoint{Time: now, Prices: ms.pool.Prices()})
	if len(ms.history) > limit {
		ms.history = ms.history[len(ms.history)-limit:]
	}
}

// recordTrade appends to the bounded recent-trades tail.
func (ms *marketState) recordTrade(t domain.Trade, limit int) {
	ms.trades = append(ms.trades, t)
	if len(ms.trades) > limit {
		ms.trades = ms.trades[len(ms.trades)-limit:]
	}
}

// payoutBasis is the fixed input to the winnings formula: total winning
// shares, the winning option's resolution price, and the user liquidity pot
// as they stood when the market resolved.
type payoutBasis struct {
	winningShares *uint256.Int
	winningPrice  *uint256.Int
	userLiquidity *uint256.Int
}

// snapshotBasis freezes the payout inputs for the current winning option.
// Called under the market lock at resolution and again on a dispute ruling.
func (ms *marketState) snapshotBasis() {
	win := ms.m.WinningOption
	ms.basis = &payoutBasis{
		winningShares: fixedpoint.Clone(ms.pool.Options[win].Shares),
		winningPrice:  fixedpoint.Clone(ms.pool.Options[win].Price),
		userLiquidity: fixedpoint.Clone(ms.m.UserLiquidity),
	}
}

// aggregates captures the market's uint256 aggregates for rollback. Flags and
// counters are restored individually by the operations that touch them.
type aggregates struct {
	adminLiquidity *uint256.Int
	userLiquidity  *uint256.Int
	platformFees   *uint256.Int
	ammFees        *uint256.Int
	totalVolume    *uint256.Int
	prizePool      *uint256.Int
}

func (ms *marketState) checkpoint() aggregates {
	return aggregates{
		adminLiquidity: fixedpoint.Clone(ms.m.AdminLiquidity),
		userLiquidity:  fixedpoint.Clone(ms.m.UserLiquidity),
		platformFees:   fixedpoint.Clone(ms.m.PlatformFees),
		ammFees:        fixedpoint.Clone(ms.m.AMMFees),
		totalVolume:    fixedpoint.Clone(ms.m.TotalVolume),
		prizePool:      fixedpoint.Clone(ms.m.PrizePool),
	}
}

func (ms *marketState) restore(a aggregates) {
	ms.m.AdminLiquidity = a.adminLiquidity
	ms.m.UserLiquidity = a.userLiquidity
	ms.m.PlatformFees = a.platformFees
	ms.m.AMMFees = a.ammFees
	ms.m.TotalVolume = a.totalVolume
	ms.m.PrizePool = a.prizePool
}

// marketView returns a deep copy of the market record safe to hand out.
func (ms *marketState) marketView() domain.Market {
	m := ms.m
	m.AdminLiquidity = fixedpoint.Clone(m.AdminLiquidity)
	m.UserLiquidity = fixedpoint.Clone(m.UserLiquidity)
	m.PlatformFees = fixedpoint.Clone(m.PlatformFees)
	m.AMMFees = fixedpoint.Clone(m.AMMFees)
	m.TotalVolume = fixedpoint.Clone(m.TotalVolume)
	m.PrizePool = fixedpoint.Clone(m.PrizePool)
	m.TokensPerParticipant = fixedpoint.Clone(m.TokensPerParticipant)
	if m.ResolvedAt != nil {
		t := *m.ResolvedAt
		m.ResolvedAt = &t
	}
	return m
}
