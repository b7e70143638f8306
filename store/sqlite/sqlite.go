// Package sqlite persists bars, signals, positions and trades in a single
// SQLite database. Timestamps are stored as unix milliseconds so ordering in
// SQL matches ordering in Go.
package sqlite

import (
	"context"
	"database/sql"
	"math"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"backsim/market"
	"backsim/store"
)

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InsertBars writes bars with INSERT OR IGNORE so re-ingesting a range is
// idempotent.
func (s *Store) InsertBars(ctx context.Context, bars []market.Bar) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO ohlcv
		(symbol, timeframe, timestamp, source, open, high, low, close, volume, atr)
		VALUES (?, ?, ?, '', ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx,
			b.Symbol, b.Timeframe, b.Time.UnixMilli(),
			b.Open, b.High, b.Low, b.Close, b.Volume, nullableFloat(b.ATR),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) Bars(ctx context.Context, symbol, timeframe string) ([]market.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, open, high, low, close, volume, atr
		FROM ohlcv
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp ASC`, symbol, timeframe)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Bar
	for rows.Next() {
		b := market.Bar{Symbol: symbol, Timeframe: timeframe}
		var ts int64
		var atr sql.NullFloat64
		if err := rows.Scan(&ts, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &atr); err != nil {
			return nil, err
		}
		b.Time = time.UnixMilli(ts).UTC()
		b.ATR = math.NaN()
		if atr.Valid {
			b.ATR = atr.Float64
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) InsertSignals(ctx context.Context, signals []market.Signal) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO signals
		(symbol, timeframe, timestamp, direction, price, stop_loss, take_profit, consumed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sig := range signals {
		if _, err := stmt.ExecContext(ctx,
			sig.Symbol, sig.Timeframe, sig.Time.UnixMilli(),
			string(sig.Direction), sig.Price, sig.StopLoss, sig.TakeProfit, boolInt(sig.Consumed),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Signals returns ascending signals; rowid breaks timestamp ties so replay
// order is the original insert order.
func (s *Store) Signals(ctx context.Context, symbol, timeframe string) ([]market.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, direction, price, stop_loss, take_profit, consumed
		FROM signals
		WHERE symbol = ? AND timeframe = ?
		ORDER BY timestamp ASC, rowid ASC`, symbol, timeframe)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Signal
	for rows.Next() {
		sig := market.Signal{Symbol: symbol, Timeframe: timeframe}
		var ts int64
		var dir string
		var consumed int
		if err := rows.Scan(&ts, &dir, &sig.Price, &sig.StopLoss, &sig.TakeProfit, &consumed); err != nil {
			return nil, err
		}
		sig.Time = time.UnixMilli(ts).UTC()
		sig.Direction = market.Direction(dir)
		sig.Consumed = consumed != 0
		out = append(out, sig)
	}
	return out, rows.Err()
}

func (s *Store) InsertPosition(ctx context.Context, p market.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions
		(position_id, symbol, direction, qty, entry_price, atr, stop_loss, take_profit, open_time, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Symbol, string(p.Direction), p.Qty, p.EntryPrice,
		p.ATR, p.StopLoss, p.TakeProfit, p.OpenTime.UnixMilli(), string(p.Status),
	)
	return err
}

func (s *Store) Position(ctx context.Context, id string) (market.Position, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT position_id, symbol, direction, qty, entry_price, atr, stop_loss, take_profit, open_time, status
		FROM positions
		WHERE position_id = ?`, id)
	p, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return market.Position{}, store.ErrNotFound
	}
	return p, err
}

func (s *Store) OpenPositions(ctx context.Context) ([]market.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position_id, symbol, direction, qty, entry_price, atr, stop_loss, take_profit, open_time, status
		FROM positions
		WHERE status = 'open'
		ORDER BY open_time ASC, rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) HasOpen(ctx context.Context, symbol string, dir market.Direction, entryPrice float64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM positions
		WHERE symbol = ? AND direction = ? AND entry_price = ? AND status = 'open'`,
		symbol, string(dir), entryPrice).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) MarkClosed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE positions SET status = 'closed'
		WHERE position_id = ? AND status = 'open'`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) InsertTrade(ctx context.Context, t market.Trade) error {
	var orderID any // NULL keeps the unique index sparse
	if t.OrderID != "" {
		orderID = t.OrderID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades
		(position_id, order_id, symbol, direction, qty, entry_price, exit_price,
		 open_time, close_time, gross_pnl, fee, net_pnl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.PositionID, orderID, t.Symbol, string(t.Direction), t.Qty,
		t.EntryPrice, t.ExitPrice, t.OpenTime.UnixMilli(), t.CloseTime.UnixMilli(),
		t.GrossPnL, t.Fee, t.NetPnL, string(t.Reason),
	)
	return err
}

func (s *Store) Trades(ctx context.Context) ([]market.Trade, error) {
	return s.queryTrades(ctx, `
		SELECT position_id, order_id, symbol, direction, qty, entry_price, exit_price,
		       open_time, close_time, gross_pnl, fee, net_pnl, reason
		FROM trades
		ORDER BY close_time ASC, rowid ASC`)
}

func (s *Store) TradesBySymbol(ctx context.Context, symbol string) ([]market.Trade, error) {
	return s.queryTrades(ctx, `
		SELECT position_id, order_id, symbol, direction, qty, entry_price, exit_price,
		       open_time, close_time, gross_pnl, fee, net_pnl, reason
		FROM trades
		WHERE symbol = ?
		ORDER BY close_time ASC, rowid ASC`, symbol)
}

func (s *Store) queryTrades(ctx context.Context, query string, args ...any) ([]market.Trade, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Trade
	for rows.Next() {
		var t market.Trade
		var orderID sql.NullString
		var dir, reason string
		var openMs, closeMs int64
		if err := rows.Scan(&t.PositionID, &orderID, &t.Symbol, &dir, &t.Qty,
			&t.EntryPrice, &t.ExitPrice, &openMs, &closeMs,
			&t.GrossPnL, &t.Fee, &t.NetPnL, &reason); err != nil {
			return nil, err
		}
		t.OrderID = orderID.String
		t.Direction = market.Direction(dir)
		t.Reason = market.ExitReason(reason)
		t.OpenTime = time.UnixMilli(openMs).UTC()
		t.CloseTime = time.UnixMilli(closeMs).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPosition(row scanner) (market.Position, error) {
	var p market.Position
	var dir, status string
	var openMs int64
	err := row.Scan(&p.ID, &p.Symbol, &dir, &p.Qty, &p.EntryPrice,
		&p.ATR, &p.StopLoss, &p.TakeProfit, &openMs, &status)
	if err != nil {
		return market.Position{}, err
	}
	p.Direction = market.Direction(dir)
	p.Status = market.Status(status)
	p.OpenTime = time.UnixMilli(openMs).UTC()
	return p, nil
}

func nullableFloat(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ store.Store = (*Store)(nil)
