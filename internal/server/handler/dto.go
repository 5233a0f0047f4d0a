package handler

import (
	"time"

	"github.com/holiman/uint256"

	"github.com/predictlabs/predictd/internal/domain"
)

// The wire format renders every 1e18-scaled amount as a decimal string so
// clients never round through float64.

type marketJSON struct {
	ID              uint64  `json:"id"`
	Question        string  `json:"question"`
	Description     string  `json:"description,omitempty"`
	Category        string  `json:"category,omitempty"`
	Creator         string  `json:"creator"`
	OptionCount     int     `json:"option_count"`
	Kind            string  `json:"kind"`
	CreatedAt       string  `json:"created_at"`
	EndTime         string  `json:"end_time"`
	EarlyResolution bool    `json:"early_resolution"`
	Validated       bool    `json:"validated"`
	Invalidated     bool    `json:"invalidated"`
	Resolved        bool    `json:"resolved"`
	Disputed        bool    `json:"disputed"`
	WinningOption   int     `json:"winning_option"`
	ResolvedAt      *string `json:"resolved_at,omitempty"`
	AdminLiquidity  string  `json:"admin_liquidity"`
	UserLiquidity   string  `json:"user_liquidity"`
	PlatformFees    string  `json:"platform_fees"`
	AMMFees         string  `json:"amm_fees"`
	TotalVolume     string  `json:"total_volume"`

	PrizePool            string `json:"prize_pool,omitempty"`
	TokensPerParticipant string `json:"tokens_per_participant,omitempty"`
	MaxParticipants      int    `json:"max_participants,omitempty"`
	FreeParticipants     int    `json:"free_participants,omitempty"`
}

func toMarketJSON(m domain.Market) marketJSON {
	out := marketJSON{
		ID:              m.ID,
		Question:        m.Question,
		Description:     m.Description,
		Category:        m.Category,
		Creator:         m.Creator.Hex(),
		OptionCount:     m.OptionCount,
		Kind:            string(m.Kind),
		CreatedAt:       m.CreatedAt.UTC().Format(time.RFC3339),
		EndTime:         m.EndTime.UTC().Format(time.RFC3339),
		EarlyResolution: m.EarlyResolution,
		Validated:       m.Validated,
		Invalidated:     m.Invalidated,
		Resolved:        m.Resolved,
		Disputed:        m.Disputed,
		WinningOption:   m.WinningOption,
		AdminLiquidity:  decOrZero(m.AdminLiquidity),
		UserLiquidity:   decOrZero(m.UserLiquidity),
		PlatformFees:    decOrZero(m.PlatformFees),
		AMMFees:         decOrZero(m.AMMFees),
		TotalVolume:     decOrZero(m.TotalVolume),
	}
	if m.ResolvedAt != nil {
		s := m.ResolvedAt.UTC().Format(time.RFC3339)
		out.ResolvedAt = &s
	}
	if m.Kind == domain.MarketKindFreeEntry {
		out.PrizePool = decOrZero(m.PrizePool)
		out.TokensPerParticipant = decOrZero(m.TokensPerParticipant)
		out.MaxParticipants = m.MaxParticipants
		out.FreeParticipants = m.FreeParticipants
	}
	return out
}

type optionJSON struct {
	Index   int    `json:"index"`
	Label   string `json:"label"`
	Price   string `json:"price"`
	Shares  string `json:"shares"`
	Volume  string `json:"volume"`
	Reserve string `json:"reserve"`
}

func toOptionJSON(o domain.Option) optionJSON {
	return optionJSON{
		Index:   o.Index,
		Label:   o.Label,
		Price:   decOrZero(o.Price),
		Shares:  decOrZero(o.Shares),
		Volume:  decOrZero(o.Volume),
		Reserve: decOrZero(o.Reserve),
	}
}

type tradeJSON struct {
	ID        string `json:"id"`
	MarketID  uint64 `json:"market_id"`
	Option    int    `json:"option"`
	Side      string `json:"side"`
	Buyer     string `json:"buyer"`
	Seller    string `json:"seller"`
	Price     string `json:"price"`
	Quantity  string `json:"quantity"`
	Value     string `json:"value"`
	Timestamp string `json:"timestamp"`
}

func toTradeJSON(t domain.Trade) tradeJSON {
	return tradeJSON{
		ID:        t.ID,
		MarketID:  t.MarketID,
		Option:    t.Option,
		Side:      string(t.Side),
		Buyer:     t.Buyer.Hex(),
		Seller:    t.Seller.Hex(),
		Price:     decOrZero(t.Price),
		Quantity:  decOrZero(t.Quantity),
		Value:     decOrZero(t.Value),
		Timestamp: t.Timestamp.UTC().Format(time.RFC3339),
	}
}

func toTradesJSON(trades []domain.Trade) []tradeJSON {
	out := make([]tradeJSON, len(trades))
	for i, t := range trades {
		out[i] = toTradeJSON(t)
	}
	return out
}

type pricePointJSON struct {
	Time   string   `json:"time"`
	Prices []string `json:"prices"`
}

func toPricePointJSON(p domain.PricePoint) pricePointJSON {
	prices := make([]string, len(p.Prices))
	for i, v := range p.Prices {
		prices[i] = decOrZero(v)
	}
	return pricePointJSON{
		Time:   p.Time.UTC().Format(time.RFC3339),
		Prices: prices,
	}
}

func decOrZero(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
