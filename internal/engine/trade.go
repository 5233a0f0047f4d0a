package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/predictlabs/predictd/internal/domain"
	"github.com/predictlabs/predictd/internal/fixedpoint"
	"github.com/predictlabs/predictd/internal/lifecycle"
)

// checkTradeInputs validates the option index and quantity common to all
// trading operations.
func (ms *marketState) checkTradeInputs(option int, quantity *uint256.Int) error {
	if option < 0 || option >= ms.m.OptionCount {
		return domain.ErrInvalidOption
	}
	if quantity == nil || quantity.IsZero() {
		return domain.ErrAmountMustBePositive
	}
	return nil
}

// Buy purchases quantity shares of an option. The cost is computed from the
// curve at call time; if maxCost is non-nil and the cost exceeds it, the buy
// fails with PriceTooHigh and the caller should re-quote. The fee-inclusive
// cost actually paid is returned.
func (e *Engine) Buy(ctx context.Context, caller common.Address, marketID uint64, option int, quantity, maxCost *uint256.Int) (*uint256.Int, error) {
	ms, err := e.market(marketID)
	if err != nil {
		return nil, err
	}

	ms.mu.Lock()
	now := e.now()
	if err := ms.checkTradeInputs(option, quantity); err != nil {
		ms.mu.Unlock()
		return nil, err
	}
	requireValidated := ms.m.Kind == domain.MarketKindStaked
	if err := lifecycle.CanTrade(lifecycle.FromMarket(&ms.m), now, requireValidated); err != nil {
		ms.mu.Unlock()
		return nil, err
	}

	cost := ms.pool.QuoteBuy(option, quantity, e.params.FeeBps)
	if maxCost != nil && cost.Gt(maxCost) {
		ms.mu.Unlock()
		return nil, domain.ErrPriceTooHigh
	}

	// Inbound funds move before any state mutation; a failed transfer leaves
	// the market byte-identical.
	if err := e.tokens.TransferFrom(ctx, caller, e.params.Treasury, cost); err != nil {
		ms.mu.Unlock()
		return nil, fmt.Errorf("engine: buy: %w", domain.ErrTransferFailed)
	}

	fee, net := ms.pool.ApplyBuy(option, quantity, cost, e.params.FeeBps)
	shares := ms.userShares(caller)
	shares[option] = fixedpoint.Add(shares[option], quantity)
	ms.m.UserLiquidity = fixedpoint.Add(ms.m.UserLiquidity, net)
	ms.m.PlatformFees = fixedpoint.Add(ms.m.PlatformFees, fee)
	ms.m.TotalVolume = fixedpoint.Add(ms.m.TotalVolume, cost)

	trade := domain.Trade{
		ID:        uuid.NewString(),
		MarketID:  marketID,
		Option:    option,
		Side:      domain.TradeSideBuy,
		Buyer:     caller,
		Seller:    domain.PoolAccount,
		Price:     fixedpoint.MustMulDiv(cost, fixedpoint.Scale(), quantity),
		Quantity:  fixedpoint.Clone(quantity),
		Value:     fixedpoint.Clone(cost),
		Timestamp: now,
	}
	ms.recordTrade(trade, e.params.TradeTailLimit)
	ms.recordPrices(now, e.params.PriceHistoryLimit)
	prices := ms.pool.Prices()
	ms.mu.Unlock()

	e.registerParticipation(caller, marketID)
	e.publishTrade(ctx, trade, prices)
	return cost, nil
}

// Sell disposes of quantity shares of an option for the fee-net revenue
// quoted at call time. If minRevenue is non-nil and the net revenue falls
// below it, the sell fails with PriceTooLow. State mutates before the payout
// transfer; a failed transfer rolls everything back.
func (e *Engine) Sell(ctx context.Context, caller common.Address, marketID uint64, option int, quantity, minRevenue *uint256.Int) (*uint256.Int, error) {
	ms, err := e.market(marketID)
	if err != nil {
		return nil, err
	}

	ms.mu.Lock()
	now := e.now()
	if err := ms.checkTradeInputs(option, quantity); err != nil {
		ms.mu.Unlock()
		return nil, err
	}
	requireValidated := ms.m.Kind == domain.MarketKindStaked
	if err := lifecycle.CanTrade(lifecycle.FromMarket(&ms.m), now, requireValidated); err != nil {
		ms.mu.Unlock()
		return nil, err
	}

	shares := ms.userShares(caller)
	if shares[option].Lt(quantity) {
		ms.mu.Unlock()
		return nil, domain.ErrInsufficientShares
	}

	net := ms.pool.QuoteSell(option, quantity, e.params.FeeBps)
	if minRevenue != nil && net.Lt(minRevenue) {
		ms.mu.Unlock()
		return nil, domain.ErrPriceTooLow
	}
	gross := fixedpoint.MustMulDiv(net,
		uint256.NewInt(fixedpoint.BpsDenom+e.params.FeeBps),
		uint256.NewInt(fixedpoint.BpsDenom))
	if gross.Gt(ms.m.UserLiquidity) {
		ms.mu.Unlock()
		return nil, domain.ErrInsufficientLiquidity
	}

	prev := ms.checkpoint()
	prevPool := ms.pool.Clone()
	prevShares := fixedpoint.Clone(shares[option])

	_, fee := ms.pool.ApplySell(option, quantity, net, e.params.FeeBps)
	shares[option] = fixedpoint.Sub(shares[option], quantity)
	ms.m.UserLiquidity = fixedpoint.Sub(ms.m.UserLiquidity, gross)
	ms.m.PlatformFees = fixedpoint.Add(ms.m.PlatformFees, fee)
	ms.m.TotalVolume = fixedpoint.Add(ms.m.TotalVolume, gross)

	if err := e.tokens.Transfer(ctx, caller, net); err != nil {
		ms.restore(prev)
		ms.pool = prevPool
		shares[option] = prevShares
		ms.mu.Unlock()
		return nil, fmt.Errorf("engine: sell: %w", domain.ErrTransferFailed)
	}

	trade := domain.Trade{
		ID:        uuid.NewString(),
		MarketID:  marketID,
		Option:    option,
		Side:      domain.TradeSideSell,
		Buyer:     domain.PoolAccount,
		Seller:    caller,
		Price:     fixedpoint.MustMulDiv(net, fixedpoint.Scale(), quantity),
		Quantity:  fixedpoint.Clone(quantity),
		Value:     fixedpoint.Clone(net),
		Timestamp: now,
	}
	ms.recordTrade(trade, e.params.TradeTailLimit)
	ms.recordPrices(now, e.params.PriceHistoryLimit)
	prices := ms.pool.Prices()
	ms.mu.Unlock()

	e.registerParticipation(caller, marketID)
	e.publishTrade(ctx, trade, prices)
	return net, nil
}

// Swap exchanges shares of one option for another inside the same market. No
// tokens move; the swap fee accrues to the liquidity-provider pool. The
// amount of out-option shares received is returned.
func (e *Engine) Swap(ctx context.Context, caller common.Address, marketID uint64, optionIn, optionOut int, amountIn, minOut *uint256.Int) (*uint256.Int, error) {
	ms, err := e.market(marketID)
	if err != nil {
		return nil, err
	}

	ms.mu.Lock()
	now := e.now()
	if err := ms.checkTradeInputs(optionIn, amountIn); err != nil {
		ms.mu.Unlock()
		return nil, err
	}
	if optionOut < 0 || optionOut >= ms.m.OptionCount || optionOut == optionIn {
		ms.mu.Unlock()
		return nil, domain.ErrInvalidOption
	}
	if err := lifecycle.CanTrade(lifecycle.FromMarket(&ms.m), now, false); err != nil {
		ms.mu.Unlock()
		return nil, err
	}

	shares := ms.userShares(caller)
	if shares[optionIn].Lt(amountIn) {
		ms.mu.Unlock()
		return nil, domain.ErrInsufficientShares
	}

	amountOut, fee, err := ms.pool.Swap(optionIn, optionOut, amountIn, minOut, e.params.SwapFeeBps)
	if err != nil {
		ms.mu.Unlock()
		return nil, err
	}

	shares[optionIn] = fixedpoint.Sub(shares[optionIn], amountIn)
	shares[optionOut] = fixedpoint.Add(shares[optionOut], amountOut)
	ms.m.AMMFees = fixedpoint.Add(ms.m.AMMFees, fee)
	ms.m.TotalVolume = fixedpoint.Add(ms.m.TotalVolume, amountIn)

	trade := domain.Trade{
		ID:        uuid.NewString(),
		MarketID:  marketID,
		Option:    optionOut,
		Side:      domain.TradeSideSwap,
		Buyer:     caller,
		Seller:    domain.PoolAccount,
		Price:     fixedpoint.MustMulDiv(amountIn, fixedpoint.Scale(), amountOut),
		Quantity:  fixedpoint.Clone(amountOut),
		Value:     fixedpoint.Clone(amountIn),
		Timestamp: now,
	}
	ms.recordTrade(trade, e.params.TradeTailLimit)
	ms.recordPrices(now, e.params.PriceHistoryLimit)
	prices := ms.pool.Prices()
	ms.mu.Unlock()

	e.registerParticipation(caller, marketID)
	e.publishTrade(ctx, trade, prices)
	return amountOut, nil
}

// AddLiquidity deepens the market's AMM pool with the caller's tokens and
// registers the contribution in the liquidity ledger for pro-rata swap-fee
// rewards.
func (e *Engine) AddLiquidity(ctx context.Context, caller common.Address, marketID uint64, amount *uint256.Int) error {
	ms, err := e.market(marketID)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	now := e.now()
	if amount == nil || amount.IsZero() {
		ms.mu.Unlock()
		return domain.ErrAmountMustBePositive
	}
	if err := lifecycle.CanTrade(lifecycle.FromMarket(&ms.m), now, false); err != nil {
		ms.mu.Unlock()
		return err
	}

	if err := e.tokens.TransferFrom(ctx, caller, e.params.Treasury, amount); err != nil {
		ms.mu.Unlock()
		return fmt.Errorf("engine: add liquidity: %w", domain.ErrTransferFailed)
	}

	ms.pool.AddLiquidity(amount)
	ms.lpTotal = fixedpoint.Add(ms.lpTotal, amount)
	ms.m.UserLiquidity = fixedpoint.Add(ms.m.UserLiquidity, amount)

	c, ok := ms.contribs[caller]
	if !ok {
		c = &domain.LiquidityContribution{MarketID: marketID, Provider: caller, Amount: fixedpoint.Zero()}
		ms.contribs[caller] = c
	}
	c.Amount = fixedpoint.Add(c.Amount, amount)

	ms.recordPrices(now, e.params.PriceHistoryLimit)
	ms.mu.Unlock()

	e.registerParticipation(caller, marketID)
	e.sink.Publish(ctx, domain.Event{
		Type:     domain.EventLiquidityAdded,
		MarketID: marketID,
		At:       now,
		User:     caller,
		Amount:   fixedpoint.Clone(amount),
	})
	return nil
}

// publishTrade emits a trade event carrying the post-trade price vector.
func (e *Engine) publishTrade(ctx context.Context, t domain.Trade, prices []*uint256.Int) {
	e.sink.Publish(ctx, domain.Event{
		Type:     domain.EventTrade,
		MarketID: t.MarketID,
		At:       t.Timestamp,
		User:     t.Buyer,
		Option:   t.Option,
		Trade:    &t,
		Prices:   prices,
	})
}
