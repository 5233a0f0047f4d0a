package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/predictlabs/predictd/internal/domain"
)

// TradeSource reads the in-memory trade tail of a market.
type TradeSource interface {
	MarketTrades(marketID uint64, limit int) ([]domain.Trade, error)
}

// TradeHandler serves trade history. When a persisted trade store is
// configured it serves deep history from there, otherwise it falls back to
// the engine's in-memory tail.
type TradeHandler struct {
	src    TradeSource
	store  domain.TradeStore
	logger *slog.Logger
}

func NewTradeHandler(src TradeSource, store domain.TradeStore, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{src: src, store: store, logger: logHandler(logger, "trade")}
}

// GetTrades returns recent trades of a market, oldest first.
// GET /api/markets/{id}/trades?limit=&offset=
func (h *TradeHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	opts := parseListOpts(r)

	if h.store != nil {
		trades, err := h.store.ListByMarket(r.Context(), id, opts)
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]any{
				"market_id": id,
				"trades":    toTradesJSON(trades),
			})
			return
		}
		h.logger.Warn("trade store read failed, falling back to in-memory tail",
			slog.Uint64("market_id", id), slog.Any("error", err))
	}

	trades, err := h.src.MarketTrades(id, opts.Limit)
	if err != nil {
		if errors.Is(err, domain.ErrMarketNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.Error("trade tail read failed", slog.Uint64("market_id", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load trades")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"trades":    toTradesJSON(trades),
	})
}
