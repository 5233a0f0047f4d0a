package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/predictlabs/predictd/internal/domain"
)

// MarketSource is the slice of the engine the market handler reads from.
type MarketSource interface {
	Markets() []domain.Market
	MarketInfo(marketID uint64) (domain.Market, error)
	OptionInfo(marketID uint64) ([]domain.Option, error)
	PriceHistory(marketID uint64, limit int) ([]domain.PricePoint, error)
	FreeMarketInfo(marketID uint64) (domain.FreeMarketInfo, error)
}

// MarketHandler serves market listings, option state, and price history.
type MarketHandler struct {
	src    MarketSource
	logger *slog.Logger
}

func NewMarketHandler(src MarketSource, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{src: src, logger: logHandler(logger, "market")}
}

// ListMarkets returns a paginated market listing, newest first.
// GET /api/markets?limit=&offset=&status=
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	status := r.URL.Query().Get("status")

	all := h.src.Markets()
	filtered := all[:0:0]
	for _, m := range all {
		if matchStatus(m, status) {
			filtered = append(filtered, m)
		}
	}
	// Newest first.
	for i, j := 0, len(filtered)-1; i < j; i, j = i+1, j-1 {
		filtered[i], filtered[j] = filtered[j], filtered[i]
	}

	total := len(filtered)
	start := opts.Offset
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	out := make([]marketJSON, 0, end-start)
	for _, m := range filtered[start:end] {
		out = append(out, toMarketJSON(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"markets": out,
		"total":   total,
		"limit":   opts.Limit,
		"offset":  opts.Offset,
	})
}

// GetMarket returns a single market record.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	m, err := h.src.MarketInfo(id)
	if err != nil {
		if errors.Is(err, domain.ErrMarketNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.Error("market info failed", slog.Uint64("market_id", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load market")
		return
	}
	writeJSON(w, http.StatusOK, toMarketJSON(m))
}

// GetOptions returns the per-option pool state of a market.
// GET /api/markets/{id}/options
func (h *MarketHandler) GetOptions(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	options, err := h.src.OptionInfo(id)
	if err != nil {
		if errors.Is(err, domain.ErrMarketNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.Error("option info failed", slog.Uint64("market_id", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load options")
		return
	}
	out := make([]optionJSON, len(options))
	for i, o := range options {
		out[i] = toOptionJSON(o)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"options":   out,
	})
}

// GetPriceHistory returns recorded price points for a market, oldest first.
// GET /api/markets/{id}/prices?limit=
func (h *MarketHandler) GetPriceHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	points, err := h.src.PriceHistory(id, limit)
	if err != nil {
		if errors.Is(err, domain.ErrMarketNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.Error("price history failed", slog.Uint64("market_id", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load price history")
		return
	}
	out := make([]pricePointJSON, len(points))
	for i, p := range points {
		out[i] = toPricePointJSON(p)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"points":    out,
	})
}

// GetFreeInfo returns the free-entry distribution state of a market.
// GET /api/markets/{id}/free
func (h *MarketHandler) GetFreeInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	info, err := h.src.FreeMarketInfo(id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMarketNotFound):
			writeError(w, http.StatusNotFound, "market not found")
		case errors.Is(err, domain.ErrNotFreeEntryMarket):
			writeError(w, http.StatusNotFound, "not a free entry market")
		default:
			h.logger.Error("free market info failed", slog.Uint64("market_id", id), slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "failed to load free entry info")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id":              info.MarketID,
		"prize_pool_remaining":   decOrZero(info.PrizePoolRemaining),
		"tokens_per_participant": decOrZero(info.TokensPerParticipant),
		"max_participants":       info.MaxParticipants,
		"participants":           info.Participants,
	})
}

func matchStatus(m domain.Market, status string) bool {
	switch status {
	case "", "all":
		return true
	case "pending":
		return !m.Validated && !m.Invalidated && m.Kind != domain.MarketKindFreeEntry
	case "active":
		return m.Validated && !m.Resolved && !m.Invalidated
	case "resolved":
		return m.Resolved
	case "invalidated":
		return m.Invalidated
	case "disputed":
		return m.Disputed && !m.Resolved
	default:
		return false
	}
}
