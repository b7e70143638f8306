// Package strategy generates trade signals from stored OHLCV history:
// a Donchian-channel breakout on the execution timeframe filtered by daily
// momentum, with ATR-derived stop and target levels. The simulation core
// never calls into this package; it only sees the persisted signals.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"backsim/market"
	"backsim/store"
)

type GeneratorConfig struct {
	DonchianPeriod int     // breakout channel length, e.g. 20
	ATRPeriod      int     // e.g. 14
	MomentumPeriod int     // daily momentum lookback, e.g. 14
	Warmup         int     // bars to skip before emitting signals
	StopLossATR    float64 // stop distance in ATR multiples
	TakeProfitATR  float64 // target distance in ATR multiples
}

func (c GeneratorConfig) withDefaults() GeneratorConfig {
	if c.DonchianPeriod <= 0 {
		c.DonchianPeriod = 20
	}
	if c.ATRPeriod <= 0 {
		c.ATRPeriod = 14
	}
	if c.MomentumPeriod <= 0 {
		c.MomentumPeriod = 14
	}
	if c.Warmup <= 0 {
		c.Warmup = 50
	}
	return c
}

// Store is what the generator reads and writes.
type Store interface {
	store.BarStore
	store.SignalStore
}

type Generator struct {
	cfg   GeneratorConfig
	store Store
	log   *slog.Logger
}

func NewGenerator(cfg GeneratorConfig, st Store, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{cfg: cfg.withDefaults(), store: st, log: log}
}

// Breakout bands: a close within half a percent of the channel edge counts
// as touching it.
const (
	longBand  = 0.995
	shortBand = 1.005
)

// Generate computes signals for one symbol and persists them. execTF is the
// execution timeframe (e.g. "1h"); dailyTF feeds the momentum filter.
// Returns the number of signals written.
func (g *Generator) Generate(ctx context.Context, symbol, execTF, dailyTF string) (int, error) {
	bars, err := g.store.Bars(ctx, symbol, execTF)
	if err != nil {
		return 0, fmt.Errorf("load %s bars: %w", execTF, err)
	}
	if len(bars) <= g.cfg.Warmup {
		g.log.Warn("not enough bars to generate signals",
			"symbol", symbol, "bars", len(bars), "warmup", g.cfg.Warmup)
		return 0, nil
	}

	daily, err := g.store.Bars(ctx, symbol, dailyTF)
	if err != nil {
		return 0, fmt.Errorf("load %s bars: %w", dailyTF, err)
	}
	momentum := latestMomentum(daily, g.cfg.MomentumPeriod)
	if math.IsNaN(momentum) {
		g.log.Warn("not enough daily bars for momentum filter",
			"symbol", symbol, "daily_bars", len(daily))
		return 0, nil
	}

	atr := ATRSeries(bars, g.cfg.ATRPeriod)
	chanHigh := RollingMax(Highs(bars), g.cfg.DonchianPeriod)
	chanLow := RollingMin(Lows(bars), g.cfg.DonchianPeriod)

	var signals []market.Signal
	for i := g.cfg.Warmup; i < len(bars); i++ {
		if math.IsNaN(atr[i]) || math.IsNaN(chanHigh[i]) || math.IsNaN(chanLow[i]) {
			continue
		}
		close := bars[i].Close

		long := close >= chanHigh[i]*longBand && momentum > 0
		short := close <= chanLow[i]*shortBand && momentum < 0
		if !long && !short {
			continue
		}

		dir := market.Long
		stop := close - g.cfg.StopLossATR*atr[i]
		take := close + g.cfg.TakeProfitATR*atr[i]
		if short {
			dir = market.Short
			stop = close + g.cfg.StopLossATR*atr[i]
			take = close - g.cfg.TakeProfitATR*atr[i]
		}

		signals = append(signals, market.Signal{
			Symbol:     symbol,
			Timeframe:  execTF,
			Time:       bars[i].Time,
			Direction:  dir,
			Price:      close,
			StopLoss:   stop,
			TakeProfit: take,
		})
	}

	if len(signals) == 0 {
		g.log.Info("no signals generated", "symbol", symbol)
		return 0, nil
	}
	if err := g.store.InsertSignals(ctx, signals); err != nil {
		return 0, fmt.Errorf("store signals: %w", err)
	}
	g.log.Info("signals stored", "symbol", symbol, "count", len(signals))
	return len(signals), nil
}

// latestMomentum mirrors the daily filter: the most recent close minus the
// close period bars earlier. NaN when history is too short.
func latestMomentum(daily []market.Bar, period int) float64 {
	if len(daily) <= period {
		return math.NaN()
	}
	last := len(daily) - 1
	return daily[last].Close - daily[last-period].Close
}
