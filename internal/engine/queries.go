package engine

import (
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/predictlabs/predictd/internal/domain"
	"github.com/predictlabs/predictd/internal/fixedpoint"
)

// MarketInfo returns a deep copy of the market record.
func (e *Engine) MarketInfo(marketID uint64) (domain.Market, error) {
	ms, err := e.market(marketID)
	if err != nil {
		return domain.Market{}, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.marketView(), nil
}

// Markets returns deep copies of all market records in id order.
func (e *Engine) Markets() []domain.Market {
	e.mu.RLock()
	states := make([]*marketState, len(e.markets))
	copy(states, e.markets)
	e.mu.RUnlock()

	out := make([]domain.Market, 0, len(states))
	for _, ms := range states {
		ms.mu.Lock()
		out = append(out, ms.marketView())
		ms.mu.Unlock()
	}
	return out
}

// OptionInfo returns the per-option view of a market.
func (e *Engine) OptionInfo(marketID uint64) ([]domain.Option, error) {
	ms, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make([]domain.Option, len(ms.pool.Options))
	for i, o := range ms.pool.Options {
		out[i] = domain.Option{
			Index:   i,
			Label:   o.Label,
			Shares:  fixedpoint.Clone(o.Shares),
			Volume:  fixedpoint.Clone(o.Volume),
			Price:   fixedpoint.Clone(o.Price),
			K:       fixedpoint.Clone(o.K),
			Reserve: fixedpoint.Clone(o.Reserve),
		}
	}
	return out, nil
}

// UserShares returns user's share vector for a market (zeros if the user
// never traded it) plus the winnings-claimed flag.
func (e *Engine) UserShares(marketID uint64, user common.Address) (domain.Position, error) {
	ms, err := e.market(marketID)
	if err != nil {
		return domain.Position{}, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()

	shares := make([]*uint256.Int, ms.m.OptionCount)
	if held, ok := ms.shares[user]; ok {
		for i, s := range held {
			shares[i] = fixedpoint.Clone(s)
		}
	} else {
		for i := range shares {
			shares[i] = fixedpoint.Zero()
		}
	}
	return domain.Position{
		MarketID: marketID,
		User:     user,
		Shares:   shares,
		Claimed:  ms.winClaimed[user],
	}, nil
}

// PriceHistory returns up to limit most recent price points, oldest first.
func (e *Engine) PriceHistory(marketID uint64, limit int) ([]domain.PricePoint, error) {
	ms, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()

	n := len(ms.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.PricePoint, limit)
	for i, p := range ms.history[n-limit:] {
		prices := make([]*uint256.Int, len(p.Prices))
		for j, v := range p.Prices {
			prices[j] = fixedpoint.Clone(v)
		}
		out[i] = domain.PricePoint{Time: p.Time, Prices: prices}
	}
	return out, nil
}

// LPInfo returns a provider's contribution and estimated claimable reward.
func (e *Engine) LPInfo(marketID uint64, provider common.Address) (domain.LPInfo, error) {
	ms, err := e.market(marketID)
	if err != nil {
		return domain.LPInfo{}, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()

	info := domain.LPInfo{
		TotalPool:       fixedpoint.Clone(ms.lpTotal),
		AMMFeesAccrued:  fixedpoint.Clone(ms.m.AMMFees),
		EstimatedReward: fixedpoint.Zero(),
	}
	c, ok := ms.contribs[provider]
	if !ok {
		info.Contribution = domain.LiquidityContribution{MarketID: marketID, Provider: provider, Amount: fixedpoint.Zero()}
		return info, nil
	}
	info.Contribution = domain.LiquidityContribution{
		MarketID:      marketID,
		Provider:      provider,
		Amount:        fixedpoint.Clone(c.Amount),
		RewardClaimed: c.RewardClaimed,
	}
	if !ms.lpTotal.IsZero() {
		info.EstimatedReward = fixedpoint.MustMulDiv(c.Amount, ms.m.AMMFees, ms.lpTotal)
	}
	return info, nil
}

// FreeMarketInfo returns the distribution state of a free-entry market.
func (e *Engine) FreeMarketInfo(marketID uint64) (domain.FreeMarketInfo, error) {
	ms, err := e.market(marketID)
	if err != nil {
		return domain.FreeMarketInfo{}, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.m.Kind != domain.MarketKindFreeEntry {
		return domain.FreeMarketInfo{}, domain.ErrNotFreeEntryMarket
	}
	return domain.FreeMarketInfo{
		MarketID:             marketID,
		PrizePoolRemaining:   fixedpoint.Clone(ms.m.PrizePool),
		TokensPerParticipant: fixedpoint.Clone(ms.m.TokensPerParticipant),
		MaxParticipants:      ms.m.MaxParticipants,
		Participants:         ms.m.FreeParticipants,
	}, nil
}

// MarketTrades returns up to limit most recent trades of a market, oldest
// first. Deeper history lives in the trade store.
func (e *Engine) MarketTrades(marketID uint64, limit int) ([]domain.Trade, error) {
	ms, err := e.market(marketID)
	if err != nil {
		return nil, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()

	n := len(ms.trades)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.Trade, limit)
	copy(out, ms.trades[n-limit:])
	return out, nil
}

// UserPortfolio lists the markets a user has participated in, ascending.
func (e *Engine) UserPortfolio(user common.Address) domain.Portfolio {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := make([]uint64, 0, len(e.portfolios[user]))
	for id := range e.portfolios[user] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return domain.Portfolio{User: user, MarketIDs: ids}
}

// PlatformStats aggregates counters across all markets.
func (e *Engine) PlatformStats() domain.PlatformStats {
	e.mu.RLock()
	states := make([]*marketState, len(e.markets))
	copy(states, e.markets)
	e.mu.RUnlock()

	stats := domain.PlatformStats{
		Markets:          len(states),
		TotalVolume:      fixedpoint.Zero(),
		PlatformFees:     fixedpoint.Zero(),
		AMMFees:          fixedpoint.Zero(),
		TotalLiquidity:   fixedpoint.Zero(),
		FreeTokensIssued: fixedpoint.Zero(),
	}
	now := e.now()
	for _, ms := range states {
		ms.mu.Lock()
		if ms.m.Active(now) {
			stats.ActiveMarkets++
		}
		if ms.m.Resolved {
			stats.ResolvedMarkets++
		}
		stats.TotalVolume = fixedpoint.Add(stats.TotalVolume, ms.m.TotalVolume)
		stats.PlatformFees = fixedpoint.Add(stats.PlatformFees, ms.m.PlatformFees)
		stats.AMMFees = fixedpoint.Add(stats.AMMFees, ms.m.AMMFees)
		stats.TotalLiquidity = fixedpoint.Add(stats.TotalLiquidity, ms.lpTotal)
		for _, fc := range ms.freeClaims {
			stats.FreeTokensIssued = fixedpoint.Add(stats.FreeTokensIssued, fc.Amount)
		}
		ms.mu.Unlock()
	}
	return stats
}
