package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Position is a user's share vector in one market. Created implicitly on the
// first non-zero trade; share counts remain as history after claiming (the
// claimed flag is tracked separately).
type Position struct {
	MarketID uint64
	User     common.Address
	Shares   []*uint256.Int // length == Market.OptionCount
	Claimed  bool           // winnings claimed
}

// Total returns the sum of shares across all options.
func (p Position) Total() *uint256.Int {
	sum := new(uint256.Int)
	for _, s := range p.Shares {
		if s != nil {
			sum.Add(sum, s)
		}
	}
	return sum
}

// Portfolio lists the markets a user has touched: trades, liquidity
// contributions, or free-entry claims all register participation.
type Portfolio struct {
	User      common.Address
	MarketIDs []uint64
}
