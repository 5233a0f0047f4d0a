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

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeCols = `id, market_id, option, side, buyer, seller, price, quantity, value, ts`

// InsertBatch inserts multiple trades using a pgx Batch. Replayed trades
// (same UUID) are silently skipped via ON CONFLICT DO NOTHING.
func (s *TradeStore) InsertBatch(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO trades (
			id, market_id, option, side, buyer, seller,
			price, quantity, value, ts
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10
		) ON CONFLICT (id) DO NOTHING`

	for _, t := range trades {
		batch.Queue(query,
			t.ID, t.MarketID, t.Option, string(t.Side),
			t.Buyer.Hex(), t.Seller.Hex(),
			decStr(t.Price), decStr(t.Quantity), decStr(t.Value),
			t.Timestamp,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range trades {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert trade batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByMarket returns trades of a market, oldest first, with pagination and
// optional time filtering.
func (s *TradeStore) ListByMarket(ctx context.Context, marketID uint64, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeCols + ` FROM trades WHERE market_id = $1`
	args := []any{marketID}

	query, args = appendTradeFilters(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by market: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades by market: %w", err)
	}
	return trades, nil
}

// ListByUser returns trades where the user appears as buyer or seller.
func (s *TradeStore) ListByUser(ctx context.Context, user common.Address, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeCols + ` FROM trades WHERE (buyer = $1 OR seller = $1)`
	args := []any{user.Hex()}

	query, args = appendTradeFilters(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by user: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades by user: %w", err)
	}
	return trades, nil
}

// appendTradeFilters adds time filters, ordering, and pagination to a trade
// query that already holds len(args) positional parameters.
func appendTradeFilters(query string, args []any, opts domain.ListOpts) (string, []any) {
	argIdx := len(args) + 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND ts >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND ts <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY ts ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var (
			t                      domain.Trade
			side, buyer, seller    string
			price, quantity, value string
		)
		if err := rows.Scan(
			&t.ID, &t.MarketID, &t.Option, &side, &buyer, &seller,
			&price, &quantity, &value, &t.Timestamp,
		); err != nil {
			return nil, err
		}
		t.Side = domain.TradeSide(side)
		t.Buyer = common.HexToAddress(buyer)
		t.Seller = common.HexToAddress(seller)

		var err error
		if t.Price, err = uint256.FromDecimal(price); err != nil {
			return nil, fmt.Errorf("parse price %q: %w", price, err)
		}
		if t.Quantity, err = uint256.FromDecimal(quantity); err != nil {
			return nil, fmt.Errorf("parse quantity %q: %w", quantity, err)
		}
		if t.Value, err = uint256.FromDecimal(value); err != nil {
			return nil, fmt.Errorf("parse value %q: %w", value, err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
