package replay

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backsim/market"
	"backsim/position"
	"backsim/store/memory"
)

type captureReporter struct {
	symbols []string
	trades  []market.Trade
}

func (r *captureReporter) Report(_ context.Context, symbol string, trades []market.Trade) error {
	r.symbols = append(r.symbols, symbol)
	r.trades = trades
	return nil
}

func testConfig() position.Config {
	return position.Config{
		Capital:         10_000,
		RiskPerTrade:    0.01,
		StopLossATR:     2,
		TakeProfitATR:   3,
		Leverage:        1,
		FeeRate:         0.0004,
		Slippage:        0.001,
		MaxPositions:    5,
		MaxRiskFraction: 0.5,
		QtyPrecision:    3,
	}
}

func newTestEngine(t *testing.T, st *memory.Store, cfg position.Config, symbols ...string) (*Engine, *captureReporter) {
	t.Helper()
	pm := position.NewManager(cfg, st, nil)
	rep := &captureReporter{}
	e := NewEngine(Config{Symbols: symbols, Timeframe: "1h"}, st, pm, rep, nil)
	return e, rep
}

func testBar(ts time.Time, open, high, low, close, atr float64) market.Bar {
	return market.Bar{
		Symbol: "BTC/USDT", Timeframe: "1h", Time: ts,
		Open: open, High: high, Low: low, Close: close, Volume: 1000, ATR: atr,
	}
}

func testSignal(ts time.Time, dir market.Direction, price, stop, take float64) market.Signal {
	return market.Signal{
		Symbol: "BTC/USDT", Timeframe: "1h", Time: ts,
		Direction: dir, Price: price, StopLoss: stop, TakeProfit: take,
	}
}

func TestRunSymbolStopLoss(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.InsertBars(ctx, []market.Bar{
		testBar(t0, 100, 101, 99, 100, 2),
		testBar(t0.Add(time.Hour), 99, 99.5, 95, 97, 2),
		testBar(t0.Add(2*time.Hour), 97, 98, 96, 97, 2),
	}))
	require.NoError(t, st.InsertSignals(ctx, []market.Signal{
		testSignal(t0, market.Long, 100, 96, 106),
	}))

	e, rep := newTestEngine(t, st, testConfig(), "BTC/USDT")
	require.NoError(t, e.RunSymbol(ctx, "BTC/USDT"))

	require.Len(t, rep.trades, 1)
	tr := rep.trades[0]
	assert.Equal(t, market.ExitStopLoss, tr.Reason)
	assert.InDelta(t, 25, tr.Qty, 1e-9)
	assert.InDelta(t, 95.904, tr.ExitPrice, 1e-9)
	assert.InDelta(t, -102.4, tr.GrossPnL, 1e-9)
	assert.InDelta(t, -104.35904, tr.NetPnL, 1e-9)
	assert.True(t, tr.CloseTime.Equal(t0.Add(time.Hour)))

	open, err := st.OpenPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestRunSymbolEndOfRunLiquidation(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Neither level is touched; the run ends with the position still open.
	require.NoError(t, st.InsertBars(ctx, []market.Bar{
		testBar(t0, 100, 101, 99, 100, 2),
		testBar(t0.Add(time.Hour), 100, 104, 99, 102, 2),
		testBar(t0.Add(2*time.Hour), 102, 105, 101, 103, 2),
	}))
	require.NoError(t, st.InsertSignals(ctx, []market.Signal{
		testSignal(t0, market.Long, 100, 96, 106),
	}))

	e, rep := newTestEngine(t, st, testConfig(), "BTC/USDT")
	require.NoError(t, e.RunSymbol(ctx, "BTC/USDT"))

	require.Len(t, rep.trades, 1)
	tr := rep.trades[0]
	assert.Equal(t, market.ExitEndOfRun, tr.Reason)
	assert.InDelta(t, 103, tr.ExitPrice, 1e-9) // last close, no slippage
	assert.InDelta(t, 75, tr.GrossPnL, 1e-9)
	assert.True(t, tr.CloseTime.Equal(t0.Add(2*time.Hour)))

	open, err := st.OpenPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestRunSymbolExitFreesSlotForEntry(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	cfg := testConfig()
	cfg.MaxPositions = 1

	// The bar at t1 stops out the first position and carries the second
	// signal. Exits run before entries, so the freed slot admits it.
	require.NoError(t, st.InsertBars(ctx, []market.Bar{
		testBar(t0, 100, 101, 99, 100, 2),
		testBar(t1, 99, 99.5, 95, 97, 2),
	}))
	require.NoError(t, st.InsertSignals(ctx, []market.Signal{
		testSignal(t0, market.Long, 100, 96, 106),
		testSignal(t1, market.Short, 97, 101, 91),
	}))

	e, rep := newTestEngine(t, st, cfg, "BTC/USDT")
	require.NoError(t, e.RunSymbol(ctx, "BTC/USDT"))

	require.Len(t, rep.trades, 2)
	assert.Equal(t, market.ExitStopLoss, rep.trades[0].Reason)
	assert.Equal(t, market.Short, rep.trades[1].Direction)
	assert.Equal(t, market.ExitEndOfRun, rep.trades[1].Reason)
}

func TestRunSymbolSkipsSignalWithoutATR(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.InsertBars(ctx, []market.Bar{
		testBar(t0, 100, 101, 99, 100, math.NaN()),
		testBar(t0.Add(time.Hour), 100, 104, 99, 103, 2),
	}))
	require.NoError(t, st.InsertSignals(ctx, []market.Signal{
		testSignal(t0, market.Long, 100, 96, 106),
	}))

	e, rep := newTestEngine(t, st, testConfig(), "BTC/USDT")
	require.NoError(t, e.RunSymbol(ctx, "BTC/USDT"))

	// Dropped, not re-queued: no position opens on the later healthy bar.
	assert.Empty(t, rep.trades)
}

func TestRunSymbolSuppressesDuplicateSignals(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, st.InsertBars(ctx, []market.Bar{
		testBar(t0, 100, 101, 99, 100, 2),
		testBar(t0.Add(time.Hour), 100, 104, 99, 103, 2),
	}))
	require.NoError(t, st.InsertSignals(ctx, []market.Signal{
		testSignal(t0, market.Long, 100, 96, 106),
		testSignal(t0, market.Long, 100, 96, 106),
	}))

	e, rep := newTestEngine(t, st, testConfig(), "BTC/USDT")
	require.NoError(t, e.RunSymbol(ctx, "BTC/USDT"))

	require.Len(t, rep.trades, 1)
	assert.Equal(t, market.ExitEndOfRun, rep.trades[0].Reason)
}

func TestRunSymbolNoBars(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.InsertSignals(ctx, []market.Signal{
		testSignal(time.Now(), market.Long, 100, 96, 106),
	}))

	e, rep := newTestEngine(t, st, testConfig(), "BTC/USDT")
	require.NoError(t, e.RunSymbol(ctx, "BTC/USDT"))
	assert.Empty(t, rep.symbols)
}

func TestRunSymbolNoSignals(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.InsertBars(ctx, []market.Bar{
		testBar(t0, 100, 101, 99, 100, 2),
	}))

	e, rep := newTestEngine(t, st, testConfig(), "BTC/USDT")
	require.NoError(t, e.RunSymbol(ctx, "BTC/USDT"))
	assert.Empty(t, rep.symbols)
}

func TestRunContinuesAfterSymbolFailure(t *testing.T) {
	t.Parallel()

	st := memory.New()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// First symbol has no data; the second still replays.
	require.NoError(t, st.InsertBars(ctx, []market.Bar{
		testBar(t0, 100, 101, 99, 100, 2),
	}))
	require.NoError(t, st.InsertSignals(ctx, []market.Signal{
		testSignal(t0, market.Long, 100, 96, 106),
	}))

	e, rep := newTestEngine(t, st, testConfig(), "ETH/USDT", "BTC/USDT")
	require.NoError(t, e.Run(ctx))

	assert.Equal(t, []string{"BTC/USDT"}, rep.symbols)
	require.Len(t, rep.trades, 1)
}
