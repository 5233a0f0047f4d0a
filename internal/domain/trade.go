package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PoolAccount is the pseudo-address recorded as counterparty when the AMM
// pool itself takes the other side of a trade.
var PoolAccount = common.HexToAddress("0x0000000000000000000000000000000000000001")

// TradeSide labels the user-initiated direction of a trade record.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "buy"
	TradeSideSell TradeSide = "sell"
	TradeSideSwap TradeSide = "swap"
)

// Trade is one append-only trade-log entry. Trades are recorded for history
// and portfolio views; settlement correctness never depends on them.
type Trade struct {
	ID        string // UUID
	MarketID  uint64
	Option    int
	Side      TradeSide
	Buyer     common.Address // PoolAccount when the pool sourced the shares
	Seller    common.Address // PoolAccount when the pool absorbed the shares
	Price     *uint256.Int   // per-share price at execution, 1e18-scaled
	Quantity  *uint256.Int   // shares traded
	Value     *uint256.Int   // token amount moved (cost or revenue)
	Timestamp time.Time
}
