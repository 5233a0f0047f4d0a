package domain

import "errors"

// Lifecycle violations. Rejected before any state mutation; the caller may
// retry once the market's state changes.
var (
	ErrMarketNotFound        = errors.New("market not found")
	ErrMarketEnded           = errors.New("market trading window has ended")
	ErrMarketResolvedAlready = errors.New("market already resolved")
	ErrMarketNotEndedYet     = errors.New("market has not ended yet")
	ErrMarketTooNew          = errors.New("market too new for early resolution")
	ErrMarketInvalidated     = errors.New("market is invalidated")
	ErrMarketNotReady        = errors.New("market not validated for trading")
	ErrMarketNotResolved     = errors.New("market not resolved")
	ErrMarketDisputed        = errors.New("market is under dispute")
	ErrAlreadyValidated      = errors.New("market already validated")
	ErrAlreadyDisputed       = errors.New("market already disputed")
	ErrNotDisputed           = errors.New("market is not disputed")
)

// Input validation. Caller error, no state change.
var (
	ErrInvalidOption        = errors.New("invalid option index")
	ErrInvalidWinningOption = errors.New("invalid winning option index")
	ErrBadOptionCount       = errors.New("option count out of range")
	ErrBadDuration          = errors.New("market duration out of range")
	ErrEmptyQuestion        = errors.New("question must not be empty")
	ErrLengthMismatch       = errors.New("option labels do not match option count")
	ErrAmountMustBePositive = errors.New("amount must be positive")
)

// Economic / slippage. The caller must re-quote and retry with adjusted bounds.
var (
	ErrPriceTooHigh          = errors.New("cost exceeds maximum")
	ErrPriceTooLow           = errors.New("revenue below minimum")
	ErrInsufficientOutput    = errors.New("swap output below minimum")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrInsufficientShares    = errors.New("insufficient shares")
)

// Claims. Each claim succeeds at most once per (market, actor).
var (
	ErrAlreadyClaimed        = errors.New("already claimed")
	ErrNoWinningShares       = errors.New("no winning shares held")
	ErrNotLiquidityProvider  = errors.New("not a liquidity provider")
	ErrNoLPRewards           = errors.New("no liquidity provider rewards")
	ErrAlreadyClaimedFree    = errors.New("free tokens already claimed")
	ErrFreeSlotsFull         = errors.New("free participant cap reached")
	ErrInsufficientPrizePool = errors.New("prize pool exhausted")
	ErrCannotDisputeIfWon    = errors.New("winning share holders cannot dispute")
	ErrNotFreeEntryMarket    = errors.New("not a free-entry market")
	ErrNoFeesToWithdraw      = errors.New("no fees to withdraw")
)

// Authorization. Not retryable without a capability grant.
var (
	ErrNotAuthorized    = errors.New("caller lacks required capability")
	ErrOnlyAdminOrOwner = errors.New("only admin or owner may perform this operation")
)

// External dependencies.
var (
	ErrTransferFailed = errors.New("token transfer failed")
	ErrNotFound       = errors.New("not found")
)
