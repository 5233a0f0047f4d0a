package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predictlabs/predictd/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, question, description, category, creator,
	option_count, kind, created_at, end_time, early_resolution,
	validated, invalidated, resolved, disputed, winning_option, resolved_at,
	admin_liquidity, user_liquidity, platform_fees, amm_fees, total_volume,
	prize_pool, tokens_per_participant, max_participants, free_participants,
	admin_withdrawn, seed_refunded`

// Upsert inserts or replaces the snapshot of a single market.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, question, description, category, creator,
			option_count, kind, created_at, end_time, early_resolution,
			validated, invalidated, resolved, disputed, winning_option, resolved_at,
			admin_liquidity, user_liquidity, platform_fees, amm_fees, total_volume,
			prize_pool, tokens_per_participant, max_participants, free_participants,
			admin_withdrawn, seed_refunded, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21,
			$22, $23, $24, $25,
			$26, $27, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			validated              = EXCLUDED.validated,
			invalidated            = EXCLUDED.invalidated,
			resolved               = EXCLUDED.resolved,
			disputed               = EXCLUDED.disputed,
			winning_option         = EXCLUDED.winning_option,
			resolved_at            = EXCLUDED.resolved_at,
			admin_liquidity        = EXCLUDED.admin_liquidity,
			user_liquidity         = EXCLUDED.user_liquidity,
			platform_fees          = EXCLUDED.platform_fees,
			amm_fees               = EXCLUDED.amm_fees,
			total_volume           = EXCLUDED.total_volume,
			prize_pool             = EXCLUDED.prize_pool,
			tokens_per_participant = EXCLUDED.tokens_per_participant,
			max_participants       = EXCLUDED.max_participants,
			free_participants      = EXCLUDED.free_participants,
			admin_withdrawn        = EXCLUDED.admin_withdrawn,
			seed_refunded          = EXCLUDED.seed_refunded,
			updated_at             = NOW()`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.Question, m.Description, m.Category, m.Creator.Hex(),
		m.OptionCount, string(m.Kind), m.CreatedAt, m.EndTime, m.EarlyResolution,
		m.Validated, m.Invalidated, m.Resolved, m.Disputed, m.WinningOption, m.ResolvedAt,
		decStr(m.AdminLiquidity), decStr(m.UserLiquidity), decStr(m.PlatformFees),
		decStr(m.AMMFees), decStr(m.TotalVolume),
		decStr(m.PrizePool), decStr(m.TokensPerParticipant), m.MaxParticipants, m.FreeParticipants,
		m.AdminWithdrawn, m.SeedRefunded,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %d: %w", m.ID, err)
	}
	return nil
}

// GetByID retrieves a market snapshot by its id.
func (s *MarketStore) GetByID(ctx context.Context, id uint64) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", id, err)
	}
	return m, nil
}

// List returns market snapshots ordered by id descending, with pagination
// and optional creation-time filtering.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets WHERE TRUE`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m                 domain.Market
		creator, kind     string
		adminLiq, userLiq string
		platFees, ammFees string
		volume            string
		prizePool, perCap string
	)
	err := row.Scan(
		&m.ID, &m.Question, &m.Description, &m.Category, &creator,
		&m.OptionCount, &kind, &m.CreatedAt, &m.EndTime, &m.EarlyResolution,
		&m.Validated, &m.Invalidated, &m.Resolved, &m.Disputed, &m.WinningOption, &m.ResolvedAt,
		&adminLiq, &userLiq, &platFees, &ammFees, &volume,
		&prizePool, &perCap, &m.MaxParticipants, &m.FreeParticipants,
		&m.AdminWithdrawn, &m.SeedRefunded,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Creator = common.HexToAddress(creator)
	m.Kind = domain.MarketKind(kind)

	for _, f := range []struct {
		dst **uint256.Int
		src string
	}{
		{&m.AdminLiquidity, adminLiq},
		{&m.UserLiquidity, userLiq},
		{&m.PlatformFees, platFees},
		{&m.AMMFees, ammFees},
		{&m.TotalVolume, volume},
		{&m.PrizePool, prizePool},
		{&m.TokensPerParticipant, perCap},
	} {
		v, err := uint256.FromDecimal(f.src)
		if err != nil {
			return domain.Market{}, fmt.Errorf("parse amount %q: %w", f.src, err)
		}
		*f.dst = v
	}
	return m, nil
}

// decStr renders a 1e18-scaled amount as its decimal column value.
func decStr(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
