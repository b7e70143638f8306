package position

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backsim/market"
)

func bar(ts time.Time, open, high, low, close float64) market.Bar {
	return market.Bar{
		Symbol: "BTC/USDT", Timeframe: "1h", Time: ts,
		Open: open, High: high, Low: low, Close: close,
	}
}

func TestCheckExitLongStopLoss(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, baseConfig())
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := market.Position{
		Direction: market.Long, EntryPrice: 100, Qty: 25,
		StopLoss: 96, TakeProfit: 106, OpenTime: t0, Status: market.StatusOpen,
	}

	bars := []market.Bar{
		bar(t0, 100, 101, 99, 100),
		bar(t0.Add(time.Hour), 99, 99, 95, 97), // low 95 <= stop 96
	}

	exit, ok := m.CheckExit(p, bars)
	require.True(t, ok)
	assert.Equal(t, market.ExitStopLoss, exit.Reason)
	assert.InDelta(t, 96*0.999, exit.Price, 1e-9) // 95.904
	assert.True(t, exit.Time.Equal(t0.Add(time.Hour)))
}

func TestCheckExitLongTakeProfit(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, baseConfig())
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := market.Position{
		Direction: market.Long, EntryPrice: 100, Qty: 25,
		StopLoss: 96, TakeProfit: 106, OpenTime: t0, Status: market.StatusOpen,
	}

	bars := []market.Bar{
		bar(t0, 100, 105, 99, 104),
		bar(t0.Add(time.Hour), 104, 107, 103, 106), // high 107 >= take 106
	}

	exit, ok := m.CheckExit(p, bars)
	require.True(t, ok)
	assert.Equal(t, market.ExitTakeProfit, exit.Reason)
	assert.InDelta(t, 106*0.999, exit.Price, 1e-9)
}

func TestCheckExitShortStopLoss(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, baseConfig())
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := market.Position{
		Direction: market.Short, EntryPrice: 100, Qty: 25,
		StopLoss: 104, TakeProfit: 94, OpenTime: t0, Status: market.StatusOpen,
	}

	// Gap open above the stop: exit at the worse of open vs stop.
	bars := []market.Bar{
		bar(t0, 106, 107, 105, 106), // high 107 >= stop 104, open 106 > stop
	}

	exit, ok := m.CheckExit(p, bars)
	require.True(t, ok)
	assert.Equal(t, market.ExitStopLoss, exit.Reason)
	assert.InDelta(t, 106*1.001, exit.Price, 1e-9)
}

func TestCheckExitShortTakeProfit(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, baseConfig())
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := market.Position{
		Direction: market.Short, EntryPrice: 100, Qty: 25,
		StopLoss: 104, TakeProfit: 94, OpenTime: t0, Status: market.StatusOpen,
	}

	// Gap open below the target: filled at the open, not the level.
	bars := []market.Bar{
		bar(t0, 92, 95, 91, 93), // low 91 <= take 94, open 92 < take
	}

	exit, ok := m.CheckExit(p, bars)
	require.True(t, ok)
	assert.Equal(t, market.ExitTakeProfit, exit.Reason)
	assert.InDelta(t, 92*1.001, exit.Price, 1e-9)
}

func TestCheckExitStopBeforeTakeSameBar(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, baseConfig())
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := market.Position{
		Direction: market.Long, EntryPrice: 100, Qty: 25,
		StopLoss: 96, TakeProfit: 106, OpenTime: t0, Status: market.StatusOpen,
	}

	// One wide bar breaching both levels: stop-loss wins.
	bars := []market.Bar{
		bar(t0, 100, 108, 95, 101),
	}

	exit, ok := m.CheckExit(p, bars)
	require.True(t, ok)
	assert.Equal(t, market.ExitStopLoss, exit.Reason)
}

func TestCheckExitFirstTouchWins(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, baseConfig())
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := market.Position{
		Direction: market.Long, EntryPrice: 100, Qty: 25,
		StopLoss: 96, TakeProfit: 106, OpenTime: t0, Status: market.StatusOpen,
	}

	// The take-profit bar comes first in time; the later stop bar must not win.
	bars := []market.Bar{
		bar(t0, 100, 101, 99, 100),
		bar(t0.Add(1*time.Hour), 100, 107, 99, 106),
		bar(t0.Add(2*time.Hour), 106, 106, 90, 92),
	}

	exit, ok := m.CheckExit(p, bars)
	require.True(t, ok)
	assert.Equal(t, market.ExitTakeProfit, exit.Reason)
	assert.True(t, exit.Time.Equal(t0.Add(1*time.Hour)))
}

func TestCheckExitNoTrigger(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, baseConfig())
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := market.Position{
		Direction: market.Long, EntryPrice: 100, Qty: 25,
		StopLoss: 96, TakeProfit: 106, OpenTime: t0, Status: market.StatusOpen,
	}

	bars := []market.Bar{
		bar(t0, 100, 103, 98, 101),
		bar(t0.Add(time.Hour), 101, 104, 99, 103),
	}

	_, ok := m.CheckExit(p, bars)
	assert.False(t, ok)
}

func TestCheckExitMissingLevels(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, baseConfig())
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	bars := []market.Bar{
		bar(t0, 100, 200, 1, 100), // would trigger anything
	}

	noStop := market.Position{Direction: market.Long, EntryPrice: 100, TakeProfit: 106, OpenTime: t0}
	_, ok := m.CheckExit(noStop, bars)
	assert.False(t, ok)

	noTake := market.Position{Direction: market.Long, EntryPrice: 100, StopLoss: 96, OpenTime: t0}
	_, ok = m.CheckExit(noTake, bars)
	assert.False(t, ok)
}
