package handler

import (
	"log/slog"
	"net/http"

	"github.com/predictlabs/predictd/internal/domain"
)

// StatsSource aggregates platform-wide counters.
type StatsSource interface {
	PlatformStats() domain.PlatformStats
}

// StatsHandler serves the platform statistics endpoint.
type StatsHandler struct {
	src    StatsSource
	logger *slog.Logger
}

func NewStatsHandler(src StatsSource, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{src: src, logger: logHandler(logger, "stats")}
}

// GetStats returns aggregate platform counters.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	s := h.src.PlatformStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"markets":            s.Markets,
		"active_markets":     s.ActiveMarkets,
		"resolved_markets":   s.ResolvedMarkets,
		"total_volume":       decOrZero(s.TotalVolume),
		"platform_fees":      decOrZero(s.PlatformFees),
		"amm_fees":           decOrZero(s.AMMFees),
		"total_liquidity":    decOrZero(s.TotalLiquidity),
		"free_tokens_issued": decOrZero(s.FreeTokensIssued),
	})
}
