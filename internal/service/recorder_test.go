package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictlabs/predictd/internal/domain"
	"github.com/predictlabs/predictd/internal/fixedpoint"
)

type fakeMarketStore struct {
	mu      sync.Mutex
	upserts []domain.Market
}

func (s *fakeMarketStore) Upsert(_ context.Context, m domain.Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts = append(s.upserts, m)
	return nil
}

func (s *fakeMarketStore) GetByID(context.Context, uint64) (domain.Market, error) {
	return domain.Market{}, domain.ErrNotFound
}

func (s *fakeMarketStore) List(context.Context, domain.ListOpts) ([]domain.Market, error) {
	return nil, nil
}

func (s *fakeMarketStore) Count(context.Context) (int64, error) { return 0, nil }

type fakeTradeStore struct {
	mu       sync.Mutex
	inserted []domain.Trade
}

func (s *fakeTradeStore) InsertBatch(_ context.Context, trades []domain.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, trades...)
	return nil
}

func (s *fakeTradeStore) ListByMarket(context.Context, uint64, domain.ListOpts) ([]domain.Trade, error) {
	return nil, nil
}

func (s *fakeTradeStore) ListByUser(context.Context, common.Address, domain.ListOpts) ([]domain.Trade, error) {
	return nil, nil
}

type fakeSnapshotter struct {
	market domain.Market
}

func (s *fakeSnapshotter) MarketInfo(id uint64) (domain.Market, error) {
	if id != s.market.ID {
		return domain.Market{}, domain.ErrMarketNotFound
	}
	return s.market, nil
}

func TestRecorderPersistsSnapshotAndTrade(t *testing.T) {
	markets := &fakeMarketStore{}
	trades := &fakeTradeStore{}
	snap := &fakeSnapshotter{market: domain.Market{
		ID:            7,
		Question:      "q",
		OptionCount:   2,
		Kind:          domain.MarketKindStaked,
		WinningOption: domain.NoWinner,
		TotalVolume:   fixedpoint.Tokens(100),
	}}
	r := NewRecorder(markets, trades, snap, discardLogger())

	r.record(context.Background(), domain.Event{
		Type:     domain.EventTrade,
		MarketID: 7,
		At:       time.Now(),
		Trade: &domain.Trade{
			ID:       "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
			MarketID: 7,
			Side:     domain.TradeSideBuy,
			Price:    fixedpoint.New(5e17),
			Quantity: fixedpoint.Tokens(10),
			Value:    fixedpoint.Tokens(5),
		},
	})

	require.Len(t, markets.upserts, 1)
	assert.Equal(t, uint64(7), markets.upserts[0].ID)
	require.Len(t, trades.inserted, 1)
	assert.Equal(t, "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee", trades.inserted[0].ID)
}

func TestRecorderSkipsUnknownMarket(t *testing.T) {
	markets := &fakeMarketStore{}
	trades := &fakeTradeStore{}
	snap := &fakeSnapshotter{market: domain.Market{ID: 1}}
	r := NewRecorder(markets, trades, snap, discardLogger())

	r.record(context.Background(), domain.Event{Type: domain.EventMarketValidated, MarketID: 99, At: time.Now()})

	assert.Empty(t, markets.upserts)
	assert.Empty(t, trades.inserted)
}

func TestRecorderRunDrainsBuffer(t *testing.T) {
	markets := &fakeMarketStore{}
	trades := &fakeTradeStore{}
	snap := &fakeSnapshotter{market: domain.Market{ID: 1, WinningOption: domain.NoWinner}}
	r := NewRecorder(markets, trades, snap, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	r.Publish(ctx, domain.Event{Type: domain.EventMarketValidated, MarketID: 1, At: time.Now()})

	require.Eventually(t, func() bool {
		markets.mu.Lock()
		defer markets.mu.Unlock()
		return len(markets.upserts) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
