// Package replay drives the event-driven simulation: it merges the ascending
// bar and signal streams for one symbol at a time, asks the position manager
// to evaluate exits before admitting entries on each bar, and force-liquidates
// whatever is still open when the bar stream ends.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"backsim/market"
	"backsim/position"
	"backsim/store"
)

// Reporter consumes the persisted closed-trade ledger after a symbol's
// replay finishes.
type Reporter interface {
	Report(ctx context.Context, symbol string, trades []market.Trade) error
}

// Store is the slice of persistence the engine reads and liquidates against.
type Store interface {
	store.BarStore
	store.SignalStore
	store.PositionStore
	store.TradeStore
}

// Config selects what to replay. The engine is strictly sequential: one bar
// is fully processed before the next, one symbol before the next.
type Config struct {
	Symbols   []string
	Timeframe string
}

type Engine struct {
	cfg      Config
	store    Store
	pm       *position.Manager
	reporter Reporter
	log      *slog.Logger
}

func NewEngine(cfg Config, st Store, pm *position.Manager, reporter Reporter, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{cfg: cfg, store: st, pm: pm, reporter: reporter, log: log}
}

// Run replays every configured symbol in order. A failed symbol is logged
// and skipped; trade history already persisted for other symbols survives.
func (e *Engine) Run(ctx context.Context) error {
	for _, symbol := range e.cfg.Symbols {
		if err := e.RunSymbol(ctx, symbol); err != nil {
			e.log.Error("replay failed", "symbol", symbol, "err", err)
		}
	}
	return nil
}

// RunSymbol replays one symbol's bar stream against its signal stream.
func (e *Engine) RunSymbol(ctx context.Context, symbol string) error {
	bars, err := e.store.Bars(ctx, symbol, e.cfg.Timeframe)
	if err != nil {
		return fmt.Errorf("load bars: %w", err)
	}
	if len(bars) == 0 {
		e.log.Warn("no bars, skipping symbol", "symbol", symbol)
		return nil
	}

	signals, err := e.store.Signals(ctx, symbol, e.cfg.Timeframe)
	if err != nil {
		return fmt.Errorf("load signals: %w", err)
	}
	if len(signals) == 0 {
		e.log.Info("no signals, skipping symbol", "symbol", symbol)
		return nil
	}

	e.log.Info("replay start", "symbol", symbol, "bars", len(bars), "signals", len(signals))

	// Per-position exit-scan cursor. Cleared bars never retrigger, so
	// resuming the scan where it left off preserves first-touch results
	// without rescanning history on every outer bar.
	scanFrom := make(map[string]int)

	cursor := 0 // next unconsumed signal
	for i, bar := range bars {
		e.evaluateExits(ctx, symbol, bars, i, scanFrom)
		cursor = e.admitSignals(ctx, symbol, signals, cursor, bar)
	}

	e.liquidate(ctx, symbol, bars[len(bars)-1])

	trades, err := e.store.Trades(ctx)
	if err != nil {
		return fmt.Errorf("load trade ledger: %w", err)
	}
	if e.reporter != nil {
		if err := e.reporter.Report(ctx, symbol, trades); err != nil {
			e.log.Error("report failed", "symbol", symbol, "err", err)
		}
	}
	return nil
}

// evaluateExits runs the exit phase for bar index i. It always runs before
// entries are admitted for the bar, so a position opened on this bar cannot
// be exited with information it has not seen yet.
func (e *Engine) evaluateExits(ctx context.Context, symbol string, bars []market.Bar, i int, scanFrom map[string]int) {
	open, err := e.store.OpenPositions(ctx)
	if err != nil {
		e.log.Error("fetch open positions failed", "symbol", symbol, "err", err)
		return
	}

	for _, p := range open {
		if p.Symbol != symbol {
			continue
		}
		from, ok := scanFrom[p.ID]
		if !ok {
			// First bar at or after the position's open time.
			from = sort.Search(len(bars), func(j int) bool {
				return !bars[j].Time.Before(p.OpenTime)
			})
		}
		if from > i {
			scanFrom[p.ID] = from
			continue
		}

		exit, exited := e.pm.CheckExit(p, bars[from:i+1])
		if !exited {
			scanFrom[p.ID] = i + 1
			continue
		}
		delete(scanFrom, p.ID)
		if trade := e.pm.Close(ctx, p.ID, exit.Price, exit.Time, exit.Reason); trade != nil {
			e.log.Info("trade recorded",
				"symbol", symbol, "id", p.ID, "reason", trade.Reason, "net_pnl", trade.NetPnL)
		}
	}
}

// admitSignals consumes every unconsumed signal timestamped at or before the
// current bar, in original order. A rejected or duplicate signal is dropped,
// never re-queued.
func (e *Engine) admitSignals(ctx context.Context, symbol string, signals []market.Signal, cursor int, bar market.Bar) int {
	for cursor < len(signals) && !signals[cursor].Time.After(bar.Time) {
		sig := &signals[cursor]
		cursor++
		sig.Consumed = true

		if math.IsNaN(bar.ATR) {
			e.log.Warn("sizing input unavailable, skipping signal",
				"symbol", symbol, "time", bar.Time)
			continue
		}

		qty, ok := e.pm.CheckLimit(ctx, symbol, sig.Direction, sig.Price, bar.ATR)
		if !ok || qty <= 0 {
			e.log.Info("signal rejected by limits",
				"symbol", symbol, "direction", sig.Direction, "time", bar.Time)
			continue
		}
		if e.pm.HasOpen(ctx, symbol, sig.Direction, sig.Price) {
			e.log.Info("duplicate open suppressed",
				"symbol", symbol, "direction", sig.Direction, "entry", sig.Price)
			continue
		}

		if p := e.pm.Open(ctx, symbol, sig.Direction, sig.Price, bar.Time,
			qty, bar.ATR, sig.StopLoss, sig.TakeProfit); p == nil {
			e.log.Warn("open failed, signal skipped", "symbol", symbol, "time", bar.Time)
		}
	}
	return cursor
}

// liquidate force-closes everything still open at the last bar's close.
func (e *Engine) liquidate(ctx context.Context, symbol string, last market.Bar) {
	open, err := e.store.OpenPositions(ctx)
	if err != nil {
		e.log.Error("fetch open positions failed", "symbol", symbol, "err", err)
		return
	}
	for _, p := range open {
		if p.Symbol != symbol {
			continue
		}
		if trade := e.pm.Close(ctx, p.ID, last.Close, last.Time, market.ExitEndOfRun); trade != nil {
			e.log.Info("forced close at end of stream",
				"symbol", symbol, "id", p.ID, "net_pnl", trade.NetPnL)
		}
	}
}
