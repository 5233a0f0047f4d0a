package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EventType labels committed engine events published on the bus.
type EventType string

const (
	EventMarketCreated     EventType = "market_created"
	EventMarketValidated   EventType = "market_validated"
	EventMarketInvalidated EventType = "market_invalidated"
	EventMarketResolved    EventType = "market_resolved"
	EventMarketDisputed    EventType = "market_disputed"
	EventDisputeResolved   EventType = "dispute_resolved"
	EventTrade             EventType = "trade"
	EventLiquidityAdded    EventType = "liquidity_added"
	EventFreeClaim         EventType = "free_claim"
	EventWinningsClaimed   EventType = "winnings_claimed"
	EventLPRewardClaimed   EventType = "lp_reward_claimed"
)

// Event is published after an operation commits. Emission is best-effort:
// sinks must never influence engine state or block an operation's outcome.
type Event struct {
	Type     EventType      `json:"type"`
	MarketID uint64         `json:"market_id"`
	At       time.Time      `json:"at"`
	User     common.Address `json:"user,omitempty"`
	Option   int            `json:"option,omitempty"`
	Amount   *uint256.Int   `json:"amount,omitempty"`
	Trade    *Trade         `json:"trade,omitempty"`
	Prices   []*uint256.Int `json:"prices,omitempty"`
}

// EventSink receives committed events.
type EventSink interface {
	Publish(ctx context.Context, ev Event)
}

// MultiSink fans an event out to several sinks.
type MultiSink []EventSink

func (m MultiSink) Publish(ctx context.Context, ev Event) {
	for _, s := range m {
		if s != nil {
			s.Publish(ctx, ev)
		}
	}
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) {}
