// Package position owns the position lifecycle: risk-based sizing, limit
// enforcement, opening, exit evaluation and closing with deterministic P&L.
//
// Every expected failure (invalid sizing input, limit breach, store hiccup)
// degrades to a rejected or skipped operation and is logged through the
// injected logger; none of it is surfaced as a fatal error.
package position

import (
	"context"
	"log/slog"
	"math"
	"time"

	"backsim/market"
	"backsim/pkg/id"
	"backsim/store"
)

// Store is the slice of persistence the manager needs.
type Store interface {
	store.PositionStore
	store.TradeStore
}

// Config carries the risk and execution parameters. It is a plain value so
// two managers never share mutable configuration.
type Config struct {
	Capital         float64 // account capital in quote currency
	RiskPerTrade    float64 // fraction of capital risked per position, e.g. 0.01
	StopLossATR     float64 // stop distance as a multiple of ATR
	TakeProfitATR   float64 // target distance as a multiple of ATR
	Leverage        float64
	FeeRate         float64 // per-side fee fraction, e.g. 0.0004
	Slippage        float64 // fractional execution penalty at trigger levels
	MaxPositions    int     // max simultaneously open positions
	MaxRiskFraction float64 // cap on aggregate open risk as fraction of capital
	QtyPrecision    int     // decimal places for position quantity
}

type Manager struct {
	cfg   Config
	store Store
	log   *slog.Logger
}

func NewManager(cfg Config, st Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{cfg: cfg, store: st, log: log}
}

// CheckLimit sizes a candidate entry and verifies it against the open-count
// and aggregate-risk limits. The candidate's stop is derived from ATR purely
// to measure its risk contribution; nothing is persisted. Returns (0, false)
// when the entry must be rejected.
func (m *Manager) CheckLimit(ctx context.Context, symbol string, dir market.Direction, entryPrice, atr float64) (float64, bool) {
	qty := m.CalculateSize(entryPrice, atr, m.cfg.Capital)
	if qty <= 0 {
		m.log.Warn("invalid position size", "symbol", symbol, "qty", qty)
		return 0, false
	}

	open, err := m.store.OpenPositions(ctx)
	if err != nil {
		m.log.Error("fetch open positions failed", "symbol", symbol, "err", err)
		return 0, false
	}
	if len(open) >= m.cfg.MaxPositions {
		m.log.Warn("max positions reached", "symbol", symbol, "open", len(open))
		return 0, false
	}

	totalRisk := 0.0
	for _, p := range open {
		totalRisk += math.Abs(p.EntryPrice-p.StopLoss) * p.Qty
	}

	stop := entryPrice - atr*m.cfg.StopLossATR
	if dir == market.Short {
		stop = entryPrice + atr*m.cfg.StopLossATR
	}
	newRisk := math.Abs(entryPrice-stop) * qty

	if totalRisk+newRisk > m.cfg.MaxRiskFraction*m.cfg.Capital {
		m.log.Warn("risk limit exceeded",
			"symbol", symbol,
			"total_risk", totalRisk,
			"new_risk", newRisk,
			"max_risk", m.cfg.MaxRiskFraction*m.cfg.Capital)
		return 0, false
	}

	return qty, true
}

// HasOpen reports whether an open position already exists for the same
// symbol, direction and entry price. Used to suppress duplicate openings
// from redundant signals at the same level.
func (m *Manager) HasOpen(ctx context.Context, symbol string, dir market.Direction, entryPrice float64) bool {
	ok, err := m.store.HasOpen(ctx, symbol, dir, entryPrice)
	if err != nil {
		m.log.Error("open position lookup failed", "symbol", symbol, "err", err)
		return false
	}
	return ok
}

// Open creates and persists a new open position. Returns nil only on a
// persistence error; the caller treats that entry as skipped.
func (m *Manager) Open(ctx context.Context, symbol string, dir market.Direction, entryPrice float64, openTime time.Time, qty, atr, stopLoss, takeProfit float64) *market.Position {
	p := market.Position{
		ID:         id.New(),
		Symbol:     symbol,
		Direction:  dir,
		Qty:        qty,
		EntryPrice: entryPrice,
		ATR:        atr,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		OpenTime:   openTime,
		Status:     market.StatusOpen,
	}
	if err := m.store.InsertPosition(ctx, p); err != nil {
		m.log.Error("open position failed", "symbol", symbol, "err", err)
		return nil
	}
	m.log.Info("position opened",
		"id", p.ID, "symbol", symbol, "direction", dir,
		"qty", qty, "entry", entryPrice, "stop", stopLoss, "take", takeProfit)
	return &p
}

// Close transitions the position to closed and writes its trade record.
// This is the only writer of trades and the only mutator of position status.
// Returns nil (logged) when the position is missing, already closed, or a
// store write fails.
func (m *Manager) Close(ctx context.Context, positionID string, exitPrice float64, exitTime time.Time, reason market.ExitReason) *market.Trade {
	p, err := m.store.Position(ctx, positionID)
	if err != nil {
		m.log.Error("close: position not found", "id", positionID, "err", err)
		return nil
	}

	grossPnL := (exitPrice - p.EntryPrice) * p.Qty
	if p.Direction == market.Short {
		grossPnL = (p.EntryPrice - exitPrice) * p.Qty
	}
	fee := (math.Abs(p.EntryPrice) + math.Abs(exitPrice)) * p.Qty * m.cfg.FeeRate / m.cfg.Leverage
	netPnL := grossPnL - fee

	if err := m.store.MarkClosed(ctx, positionID); err != nil {
		m.log.Error("close: status update failed", "id", positionID, "err", err)
		return nil
	}

	t := market.Trade{
		PositionID: p.ID,
		Symbol:     p.Symbol,
		Direction:  p.Direction,
		Qty:        p.Qty,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exitPrice,
		OpenTime:   p.OpenTime,
		CloseTime:  exitTime,
		GrossPnL:   grossPnL,
		Fee:        fee,
		NetPnL:     netPnL,
		Reason:     reason,
	}
	if err := m.store.InsertTrade(ctx, t); err != nil {
		m.log.Error("close: trade insert failed", "id", positionID, "err", err)
		return nil
	}

	m.log.Info("position closed",
		"id", p.ID, "symbol", p.Symbol, "reason", reason,
		"exit", exitPrice, "net_pnl", netPnL)
	return &t
}
