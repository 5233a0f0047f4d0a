package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/predictlabs/predictd/internal/domain"
)

// UserSource is the slice of the engine the user handler reads from.
type UserSource interface {
	UserShares(marketID uint64, user common.Address) (domain.Position, error)
	UserPortfolio(user common.Address) domain.Portfolio
	LPInfo(marketID uint64, provider common.Address) (domain.LPInfo, error)
}

// UserHandler serves per-user positions, portfolios, and LP state.
type UserHandler struct {
	src    UserSource
	logger *slog.Logger
}

func NewUserHandler(src UserSource, logger *slog.Logger) *UserHandler {
	return &UserHandler{src: src, logger: logHandler(logger, "user")}
}

// GetShares returns a user's share vector for one market.
// GET /api/markets/{id}/shares/{addr}
func (h *UserHandler) GetShares(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	addr, ok := addrParam(r, "addr")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	pos, err := h.src.UserShares(id, addr)
	if err != nil {
		if errors.Is(err, domain.ErrMarketNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.Error("user shares failed", slog.Uint64("market_id", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load shares")
		return
	}
	shares := make([]string, len(pos.Shares))
	for i, s := range pos.Shares {
		shares[i] = decOrZero(s)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": pos.MarketID,
		"user":      pos.User.Hex(),
		"shares":    shares,
		"claimed":   pos.Claimed,
	})
}

// GetPortfolio lists the markets a user has participated in.
// GET /api/users/{addr}/portfolio
func (h *UserHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	addr, ok := addrParam(r, "addr")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	p := h.src.UserPortfolio(addr)
	ids := p.MarketIDs
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":       p.User.Hex(),
		"market_ids": ids,
	})
}

// GetLPInfo returns a provider's contribution and estimated reward.
// GET /api/markets/{id}/lp/{addr}
func (h *UserHandler) GetLPInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := marketIDParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	addr, ok := addrParam(r, "addr")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}
	info, err := h.src.LPInfo(id, addr)
	if err != nil {
		if errors.Is(err, domain.ErrMarketNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.Error("lp info failed", slog.Uint64("market_id", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load lp info")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id":        id,
		"provider":         addr.Hex(),
		"contribution":     decOrZero(info.Contribution.Amount),
		"reward_claimed":   info.Contribution.RewardClaimed,
		"total_pool":       decOrZero(info.TotalPool),
		"amm_fees_accrued": decOrZero(info.AMMFeesAccrued),
		"estimated_reward": decOrZero(info.EstimatedReward),
	})
}
