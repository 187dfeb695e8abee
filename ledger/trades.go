package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quantumalpha/replicator/trade"
)

// AppendTrades merges fills into the per-account trade store and returns
// only the ones not previously present. Merging is last-write-wins on the
// dedup key: a later, more complete record of the same fill replaces a
// provisional one without counting as new.
//
// The whole merge runs in one transaction, so concurrent polls of the same
// account serialize at the database.
func (s *Store) AppendTrades(ctx context.Context, accountID string, trades []trade.Trade) ([]trade.Trade, error) {
	if len(trades) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	seen, err := tx.PrepareContext(ctx, `SELECT 1 FROM trades WHERE account_id = ? AND dedup_key = ?`)
	if err != nil {
		return nil, err
	}
	defer seen.Close()

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO trades
		(account_id, dedup_key, trade_id, symbol, exchange, side, quantity, price, product_type, order_type, traded_at, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id, dedup_key) DO UPDATE SET
			trade_id = excluded.trade_id,
			symbol = excluded.symbol,
			exchange = excluded.exchange,
			side = excluded.side,
			quantity = excluded.quantity,
			price = excluded.price,
			product_type = excluded.product_type,
			order_type = excluded.order_type,
			traded_at = excluded.traded_at`)
	if err != nil {
		return nil, err
	}
	defer upsert.Close()

	now := time.Now().UTC()
	var added []trade.Trade

	for _, t := range trades {
		t = t.WithID()
		t.Account = accountID
		key := t.DedupKey()

		var one int
		err := seen.QueryRowContext(ctx, accountID, key).Scan(&one)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("check trade %s: %w", t.ID, err)
		}
		isNew := errors.Is(err, sql.ErrNoRows)

		if _, err := upsert.ExecContext(ctx,
			accountID, key, t.ID, t.Symbol, t.Exchange, string(t.Side),
			t.Quantity, t.Price, t.ProductType, t.OrderType, t.Timestamp, now,
		); err != nil {
			return nil, fmt.Errorf("upsert trade %s: %w", t.ID, err)
		}

		if isNew {
			added = append(added, t)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return added, nil
}

// TradeFilter narrows and pages ListTrades. A zero Limit returns all rows.
// Newest reverses the ordering so a limited page holds the latest fills.
type TradeFilter struct {
	Account string
	Limit   int
	Offset  int
	Newest  bool
}

// ListTrades returns stored trades in ingestion order (or newest first with
// f.Newest), tagged with their account id, plus the total row count for the
// filter.
func (s *Store) ListTrades(ctx context.Context, f TradeFilter) ([]trade.Trade, int, error) {
	where := ""
	args := []any{}
	if f.Account != "" {
		where = " WHERE account_id = ?"
		args = append(args, f.Account)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count trades: %w", err)
	}

	order := ` ORDER BY ingested_at, rowid`
	if f.Newest {
		order = ` ORDER BY ingested_at DESC, rowid DESC`
	}
	q := `SELECT account_id, trade_id, symbol, exchange, side, quantity, price, product_type, order_type, traded_at
		FROM trades` + where + order
	if f.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []trade.Trade
	for rows.Next() {
		var t trade.Trade
		var side string
		if err := rows.Scan(&t.Account, &t.ID, &t.Symbol, &t.Exchange, &side,
			&t.Quantity, &t.Price, &t.ProductType, &t.OrderType, &t.Timestamp); err != nil {
			return nil, 0, err
		}
		t.Side = trade.Side(side)
		out = append(out, t)
	}
	return out, total, rows.Err()
}

// ClearTrades purges the trade store for one account, or for every account
// when accountID is empty. Returns the number of rows removed.
// Administrative only.
func (s *Store) ClearTrades(ctx context.Context, accountID string) (int64, error) {
	var res sql.Result
	var err error
	if accountID == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM trades`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM trades WHERE account_id = ?`, accountID)
	}
	if err != nil {
		return 0, fmt.Errorf("clear trades: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
