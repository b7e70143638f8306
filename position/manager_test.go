package position

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backsim/market"
	"backsim/store/memory"
)

func TestCheckLimitAccepts(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, baseConfig())
	qty, ok := m.CheckLimit(context.Background(), "BTC/USDT", market.Long, 100, 2)
	require.True(t, ok)
	assert.InDelta(t, 25, qty, 1e-9)
}

func TestCheckLimitRejectsInvalidSize(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, baseConfig())
	qty, ok := m.CheckLimit(context.Background(), "BTC/USDT", market.Long, 100, 0)
	assert.False(t, ok)
	assert.Zero(t, qty)
}

func TestCheckLimitRejectsMaxPositions(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.MaxPositions = 2
	cfg.MaxRiskFraction = 10 // out of the way
	st := memory.New()
	m := NewManager(cfg, st, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		p := m.Open(ctx, "BTC/USDT", market.Long, 100, time.Now(), 1, 2, 96, 106)
		require.NotNil(t, p)
	}

	_, ok := m.CheckLimit(ctx, "ETH/USDT", market.Long, 100, 2)
	assert.False(t, ok)
}

func TestCheckLimitRejectsAggregateRisk(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.MaxRiskFraction = 0.02 // cap at 200 of risk
	st := memory.New()
	m := NewManager(cfg, st, nil)
	ctx := context.Background()

	// Open risk: |100-96| * 30 = 120. Candidate adds 100 more.
	p := m.Open(ctx, "BTC/USDT", market.Long, 100, time.Now(), 30, 2, 96, 106)
	require.NotNil(t, p)

	_, ok := m.CheckLimit(ctx, "ETH/USDT", market.Long, 100, 2)
	assert.False(t, ok)

	// Closing the position frees the budget.
	tr := m.Close(ctx, p.ID, 106, time.Now(), market.ExitTakeProfit)
	require.NotNil(t, tr)
	_, ok = m.CheckLimit(ctx, "ETH/USDT", market.Long, 100, 2)
	assert.True(t, ok)
}

func TestHasOpenSuppressesDuplicates(t *testing.T) {
	t.Parallel()

	st := memory.New()
	m := NewManager(baseConfig(), st, nil)
	ctx := context.Background()

	assert.False(t, m.HasOpen(ctx, "BTC/USDT", market.Long, 100))

	p := m.Open(ctx, "BTC/USDT", market.Long, 100, time.Now(), 25, 2, 96, 106)
	require.NotNil(t, p)

	assert.True(t, m.HasOpen(ctx, "BTC/USDT", market.Long, 100))
	assert.False(t, m.HasOpen(ctx, "BTC/USDT", market.Short, 100))
	assert.False(t, m.HasOpen(ctx, "BTC/USDT", market.Long, 101))

	tr := m.Close(ctx, p.ID, 106, time.Now(), market.ExitTakeProfit)
	require.NotNil(t, tr)
	assert.False(t, m.HasOpen(ctx, "BTC/USDT", market.Long, 100))
}

func TestOpenPersistsPosition(t *testing.T) {
	t.Parallel()

	st := memory.New()
	m := NewManager(baseConfig(), st, nil)
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	p := m.Open(ctx, "BTC/USDT", market.Long, 100, t0, 25, 2, 96, 106)
	require.NotNil(t, p)
	assert.NotEmpty(t, p.ID)

	got, err := st.Position(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, market.StatusOpen, got.Status)
	assert.Equal(t, 25.0, got.Qty)
	assert.Equal(t, 96.0, got.StopLoss)
	assert.Equal(t, 106.0, got.TakeProfit)
	assert.True(t, got.OpenTime.Equal(t0))
}

func TestCloseStopLossPnL(t *testing.T) {
	t.Parallel()

	st := memory.New()
	m := NewManager(baseConfig(), st, nil)
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	p := m.Open(ctx, "BTC/USDT", market.Long, 100, t0, 25, 2, 96, 106)
	require.NotNil(t, p)

	tr := m.Close(ctx, p.ID, 95.904, t0.Add(time.Hour), market.ExitStopLoss)
	require.NotNil(t, tr)

	assert.InDelta(t, -102.4, tr.GrossPnL, 1e-9)
	assert.InDelta(t, 1.95904, tr.Fee, 1e-9)
	assert.InDelta(t, -104.35904, tr.NetPnL, 1e-9)
	assert.Equal(t, market.ExitStopLoss, tr.Reason)

	got, err := st.Position(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, market.StatusClosed, got.Status)

	trades, err := st.Trades(ctx)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, p.ID, trades[0].PositionID)
}

func TestCloseShortPnL(t *testing.T) {
	t.Parallel()

	st := memory.New()
	m := NewManager(baseConfig(), st, nil)
	ctx := context.Background()

	p := m.Open(ctx, "ETH/USDT", market.Short, 100, time.Now(), 10, 2, 104, 94)
	require.NotNil(t, p)

	tr := m.Close(ctx, p.ID, 94, time.Now(), market.ExitTakeProfit)
	require.NotNil(t, tr)

	// Short: gross = (entry - exit) * qty.
	assert.InDelta(t, 60, tr.GrossPnL, 1e-9)
	assert.InDelta(t, (100+94)*10*0.0004, tr.Fee, 1e-9)
	assert.InDelta(t, 60-0.776, tr.NetPnL, 1e-9)
}

func TestCloseLeverageScalesFee(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Leverage = 2
	st := memory.New()
	m := NewManager(cfg, st, nil)
	ctx := context.Background()

	p := m.Open(ctx, "BTC/USDT", market.Long, 100, time.Now(), 25, 2, 96, 106)
	require.NotNil(t, p)

	tr := m.Close(ctx, p.ID, 106, time.Now(), market.ExitTakeProfit)
	require.NotNil(t, tr)
	assert.InDelta(t, (100+106)*25*0.0004/2, tr.Fee, 1e-9)
}

func TestCloseMissingPosition(t *testing.T) {
	t.Parallel()

	st := memory.New()
	m := NewManager(baseConfig(), st, nil)
	ctx := context.Background()

	tr := m.Close(ctx, "no-such-id", 100, time.Now(), market.ExitStopLoss)
	assert.Nil(t, tr)

	trades, err := st.Trades(ctx)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestCloseTwiceFails(t *testing.T) {
	t.Parallel()

	st := memory.New()
	m := NewManager(baseConfig(), st, nil)
	ctx := context.Background()

	p := m.Open(ctx, "BTC/USDT", market.Long, 100, time.Now(), 25, 2, 96, 106)
	require.NotNil(t, p)

	require.NotNil(t, m.Close(ctx, p.ID, 106, time.Now(), market.ExitTakeProfit))
	assert.Nil(t, m.Close(ctx, p.ID, 96, time.Now(), market.ExitStopLoss))

	trades, err := st.Trades(ctx)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}
