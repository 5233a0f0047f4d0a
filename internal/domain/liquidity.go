package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// LiquidityContribution tracks one provider's cumulative stake in a market's
// AMM pool. The creator's seed registers as the creator's contribution at
// market creation.
type LiquidityContribution struct {
	MarketID      uint64
	Provider      common.Address
	Amount        *uint256.Int
	RewardClaimed bool
}

// LPInfo is the query view for a liquidity provider: the contribution plus
// the pro-rata share of accrued swap fees, claimable exactly once.
type LPInfo struct {
	Contribution    LiquidityContribution
	TotalPool       *uint256.Int // seed + all contributions
	AMMFeesAccrued  *uint256.Int
	EstimatedReward *uint256.Int // Amount * AMMFeesAccrued / TotalPool
}

// FreeClaim records one user's free-entry token grant.
type FreeClaim struct {
	MarketID uint64
	User     common.Address
	Amount   *uint256.Int
}

// FreeMarketInfo is the query view of a free-entry market's distribution
// state.
type FreeMarketInfo struct {
	MarketID             uint64
	PrizePoolRemaining   *uint256.Int
	TokensPerParticipant *uint256.Int
	MaxParticipants      int
	Participants         int
}
