// Package payout computes claimable winnings from a resolved, undisputed
// market. It distributes the AMM-resident value of winning shares plus a
// pro-rata slice of the liquidity that losing positions left behind,
// deliberately excluding admin-seeded liquidity and platform fees (those are
// withdrawn separately by the creator and the fee collector).
package payout

import (
	"github.com/holiman/uint256"

	"github.com/predictlabs/predictd/internal/fixedpoint"
)

// LosingPool returns the user-contributed liquidity left over after valuing
// every winning share at the winning option's price, floored at zero.
func LosingPool(totalWinningShares, winningPrice, userLiquidity *uint256.Int) *uint256.Int {
	winningValue := fixedpoint.MustMulDiv(totalWinningShares, winningPrice, fixedpoint.Scale())
	return fixedpoint.Sub(userLiquidity, winningValue)
}

// Winnings returns a holder's claimable amount:
//
//	userShares*winningPrice/Scale + userShares*losingPool/totalWinningShares
//
// All division truncates; the dust stays in the pool. A zero
// totalWinningShares yields zero (the engine rejects such claims earlier with
// NoWinningShares).
func Winnings(userShares, totalWinningShares, winningPrice, userLiquidity *uint256.Int) *uint256.Int {
	if totalWinningShares == nil || totalWinningShares.IsZero() || userShares == nil || userShares.IsZero() {
		return fixedpoint.Zero()
	}

	base := fixedpoint.MustMulDiv(userShares, winningPrice, fixedpoint.Scale())
	losing := LosingPool(totalWinningShares, winningPrice, userLiquidity)
	bonus := fixedpoint.MustMulDiv(userShares, losing, totalWinningShares)
	return fixedpoint.Add(base, bonus)
}
