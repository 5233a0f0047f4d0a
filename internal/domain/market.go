package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// MarketKind distinguishes staked markets from free-entry markets.
type MarketKind string

const (
	// MarketKindStaked is the standard market: participants buy AMM shares
	// with their own tokens.
	MarketKindStaked MarketKind = "staked"

	// MarketKindFreeEntry is the no-stake variant: participants claim a fixed
	// token allotment from a pre-funded prize pool instead of buying in.
	MarketKindFreeEntry MarketKind = "free_entry"
)

// NoWinner is the WinningOption value before a market is resolved.
const NoWinner = -1

// Market is the per-question ledger record. Immutable attributes are set at
// creation; lifecycle flags and financial aggregates mutate under the engine's
// per-market lock. A market is never deleted, only flagged.
type Market struct {
	ID          uint64
	Question    string
	Description string
	Category    string
	Creator     common.Address
	OptionCount int
	Kind        MarketKind
	CreatedAt   time.Time
	EndTime     time.Time

	// EarlyResolution permits resolution before EndTime once the minimum
	// delay since creation has elapsed.
	EarlyResolution bool

	// Lifecycle flags.
	Validated     bool
	Invalidated   bool
	Resolved      bool
	Disputed      bool
	WinningOption int
	ResolvedAt    *time.Time

	// Financial aggregates, all 1e18-scaled.
	AdminLiquidity *uint256.Int // creator-seeded AMM liquidity
	UserLiquidity  *uint256.Int // net buy proceeds held for traders
	PlatformFees   *uint256.Int // uncollected buy/sell fees
	AMMFees        *uint256.Int // swap fees accrued to liquidity providers
	TotalVolume    *uint256.Int // token-denominated cumulative turnover

	// Free-entry accounting (zero-valued on staked markets).
	PrizePool            *uint256.Int
	TokensPerParticipant *uint256.Int
	MaxParticipants      int
	FreeParticipants     int

	// One-shot withdrawal flags.
	AdminWithdrawn bool
	SeedRefunded   bool
}

// Active reports whether the market is inside its trading window at now.
func (m *Market) Active(now time.Time) bool {
	return m.Validated && !m.Resolved && !m.Invalidated && now.Before(m.EndTime)
}

// Option is the per-option view exposed by queries. K and Reserve are the AMM
// curve parameters; Price is derived as K*Scale/Reserve after every mutation.
type Option struct {
	Index   int
	Label   string
	Shares  *uint256.Int // cumulative shares outstanding
	Volume  *uint256.Int // cumulative traded quantity
	Price   *uint256.Int
	K       *uint256.Int
	Reserve *uint256.Int
}

// PricePoint is one entry of a market's bounded price history: the derived
// price of every option immediately after a committed mutation.
type PricePoint struct {
	Time   time.Time
	Prices []*uint256.Int
}

// PlatformStats aggregates engine-wide counters for the stats query surface.
type PlatformStats struct {
	Markets          int
	ActiveMarkets    int
	ResolvedMarkets  int
	TotalVolume      *uint256.Int
	PlatformFees     *uint256.Int
	AMMFees          *uint256.Int
	TotalLiquidity   *uint256.Int
	FreeTokensIssued *uint256.Int
}
