package store

import (
	"context"
	"errors"

	"backsim/market"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: not found")

// ErrDuplicate is returned when a unique key already exists.
var ErrDuplicate = errors.New("store: duplicate key")

// BarStore provides OHLCV history. Bars returns the full ascending sequence
// for a symbol/timeframe; timestamps are unique within that pair (duplicate
// inserts are swallowed at ingestion).
type BarStore interface {
	InsertBars(ctx context.Context, bars []market.Bar) error
	Bars(ctx context.Context, symbol, timeframe string) ([]market.Bar, error)
}

// SignalStore provides generated trade signals in ascending time order,
// stable for equal timestamps.
type SignalStore interface {
	InsertSignals(ctx context.Context, signals []market.Signal) error
	Signals(ctx context.Context, symbol, timeframe string) ([]market.Signal, error)
}

// PositionStore persists position lifecycle state. Status is the only field
// ever updated after insert.
type PositionStore interface {
	InsertPosition(ctx context.Context, p market.Position) error
	Position(ctx context.Context, id string) (market.Position, error)
	OpenPositions(ctx context.Context) ([]market.Position, error)

	// HasOpen reports whether an open position exists with the same symbol,
	// direction and entry price.
	HasOpen(ctx context.Context, symbol string, dir market.Direction, entryPrice float64) (bool, error)

	// MarkClosed flips status open -> closed. Returns ErrNotFound if the
	// position does not exist or is already closed.
	MarkClosed(ctx context.Context, id string) error
}

// TradeStore is the append-only closed-trade ledger.
type TradeStore interface {
	InsertTrade(ctx context.Context, t market.Trade) error
	Trades(ctx context.Context) ([]market.Trade, error)
	TradesBySymbol(ctx context.Context, symbol string) ([]market.Trade, error)
}

// Store bundles the four record sets behind one handle.
type Store interface {
	BarStore
	SignalStore
	PositionStore
	TradeStore
	Close() error
}
