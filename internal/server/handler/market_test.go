package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predictlabs/predictd/internal/domain"
	"github.com/predictlabs/predictd/internal/fixedpoint"
)

type fakeMarketSource struct {
	markets []domain.Market
	free    map[uint64]domain.FreeMarketInfo
}

func (f *fakeMarketSource) Markets() []domain.Market { return f.markets }

func (f *fakeMarketSource) MarketInfo(id uint64) (domain.Market, error) {
	for _, m := range f.markets {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrMarketNotFound
}

func (f *fakeMarketSource) OptionInfo(id uint64) ([]domain.Option, error) {
	if _, err := f.MarketInfo(id); err != nil {
		return nil, err
	}
	return []domain.Option{
		{Index: 0, Label: "Yes", Price: fixedpoint.New(5e17), Shares: fixedpoint.Zero(), Volume: fixedpoint.Zero(), Reserve: fixedpoint.Tokens(500)},
		{Index: 1, Label: "No", Price: fixedpoint.New(5e17), Shares: fixedpoint.Zero(), Volume: fixedpoint.Zero(), Reserve: fixedpoint.Tokens(500)},
	}, nil
}

func (f *fakeMarketSource) PriceHistory(id uint64, limit int) ([]domain.PricePoint, error) {
	if _, err := f.MarketInfo(id); err != nil {
		return nil, err
	}
	return []domain.PricePoint{}, nil
}

func (f *fakeMarketSource) FreeMarketInfo(id uint64) (domain.FreeMarketInfo, error) {
	if _, err := f.MarketInfo(id); err != nil {
		return domain.FreeMarketInfo{}, err
	}
	info, ok := f.free[id]
	if !ok {
		return domain.FreeMarketInfo{}, domain.ErrNotFreeEntryMarket
	}
	return info, nil
}

func testMarket(id uint64, resolved bool) domain.Market {
	m := domain.Market{
		ID:             id,
		Question:       "Will it rain tomorrow?",
		Creator:        common.HexToAddress("0x00000000000000000000000000000000000000f2"),
		OptionCount:    2,
		Kind:           domain.MarketKindStaked,
		CreatedAt:      time.Unix(1700000000, 0),
		EndTime:        time.Unix(1700172800, 0),
		Validated:      true,
		Resolved:       resolved,
		WinningOption:  domain.NoWinner,
		AdminLiquidity: fixedpoint.Tokens(1000),
		UserLiquidity:  fixedpoint.Zero(),
		PlatformFees:   fixedpoint.Zero(),
		AMMFees:        fixedpoint.Zero(),
		TotalVolume:    fixedpoint.Zero(),
	}
	if resolved {
		m.WinningOption = 0
		at := time.Unix(1700172900, 0)
		m.ResolvedAt = &at
	}
	return m
}

func newMarketHandler(src MarketSource) *MarketHandler {
	return NewMarketHandler(src, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func doRequest(t *testing.T, mux *http.ServeMux, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func marketMux(h *MarketHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/markets", h.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", h.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/options", h.GetOptions)
	mux.HandleFunc("GET /api/markets/{id}/free", h.GetFreeInfo)
	return mux
}

func TestListMarketsPaginationAndFilter(t *testing.T) {
	src := &fakeMarketSource{
		markets: []domain.Market{testMarket(0, false), testMarket(1, true), testMarket(2, false)},
	}
	mux := marketMux(newMarketHandler(src))

	rec, body := doRequest(t, mux, http.MethodGet, "/api/markets?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["total"])
	markets := body["markets"].([]any)
	require.Len(t, markets, 2)
	// Newest first.
	assert.Equal(t, float64(2), markets[0].(map[string]any)["id"])
	assert.Equal(t, float64(1), markets[1].(map[string]any)["id"])

	rec, body = doRequest(t, mux, http.MethodGet, "/api/markets?status=resolved")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["total"])

	rec, body = doRequest(t, mux, http.MethodGet, "/api/markets?limit=2&offset=2")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, body["markets"].([]any), 1)
	assert.Equal(t, float64(0), body["markets"].([]any)[0].(map[string]any)["id"])
}

func TestGetMarket(t *testing.T) {
	src := &fakeMarketSource{markets: []domain.Market{testMarket(0, false)}}
	mux := marketMux(newMarketHandler(src))

	rec, body := doRequest(t, mux, http.MethodGet, "/api/markets/0")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Will it rain tomorrow?", body["question"])
	assert.Equal(t, "1000000000000000000000", body["admin_liquidity"])
	assert.Equal(t, float64(-1), body["winning_option"])

	rec, body = doRequest(t, mux, http.MethodGet, "/api/markets/99")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "market not found", body["error"])

	rec, body = doRequest(t, mux, http.MethodGet, "/api/markets/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid market id", body["error"])
}

func TestGetOptions(t *testing.T) {
	src := &fakeMarketSource{markets: []domain.Market{testMarket(0, false)}}
	mux := marketMux(newMarketHandler(src))

	rec, body := doRequest(t, mux, http.MethodGet, "/api/markets/0/options")
	require.Equal(t, http.StatusOK, rec.Code)
	options := body["options"].([]any)
	require.Len(t, options, 2)
	first := options[0].(map[string]any)
	assert.Equal(t, "Yes", first["label"])
	assert.Equal(t, "500000000000000000", first["price"])
}

func TestGetFreeInfo(t *testing.T) {
	free := testMarket(1, false)
	free.Kind = domain.MarketKindFreeEntry
	src := &fakeMarketSource{
		markets: []domain.Market{testMarket(0, false), free},
		free: map[uint64]domain.FreeMarketInfo{
			1: {
				MarketID:             1,
				PrizePoolRemaining:   fixedpoint.Tokens(200),
				TokensPerParticipant: fixedpoint.Tokens(100),
				MaxParticipants:      3,
				Participants:         1,
			},
		},
	}
	mux := marketMux(newMarketHandler(src))

	rec, body := doRequest(t, mux, http.MethodGet, "/api/markets/1/free")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "200000000000000000000", body["prize_pool_remaining"])
	assert.Equal(t, float64(3), body["max_participants"])

	rec, body = doRequest(t, mux, http.MethodGet, "/api/markets/0/free")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not a free entry market", body["error"])
}
