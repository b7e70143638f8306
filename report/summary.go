// Package report computes aggregate statistics over the closed-trade ledger
// and renders the equity curve. It sits outside the simulation core: it only
// ever reads trades.
package report

import (
	"math"
	"sort"

	"backsim/market"
)

// Summary holds the headline statistics for a set of closed trades.
// Ratio fields are NaN when undefined (no trades, no losers, ...).
type Summary struct {
	TotalPnL     float64
	MaxDrawdown  float64
	WinRate      float64
	Sharpe       float64
	ProfitFactor float64
	AvgWin       float64
	AvgLoss      float64
	TotalTrades  int
}

// Summarize computes the summary over trades ordered by close time.
func Summarize(trades []market.Trade) Summary {
	s := Summary{
		WinRate:      math.NaN(),
		Sharpe:       math.NaN(),
		ProfitFactor: math.NaN(),
	}
	if len(trades) == 0 {
		return s
	}

	sorted := make([]market.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CloseTime.Before(sorted[j].CloseTime)
	})

	var wins, losses int
	var grossProfit, grossLoss float64
	returns := make([]float64, len(sorted))
	for i, t := range sorted {
		pnl := t.NetPnL
		returns[i] = pnl
		s.TotalPnL += pnl
		switch {
		case pnl > 0:
			wins++
			grossProfit += pnl
		case pnl < 0:
			losses++
			grossLoss += -pnl
		}
	}

	s.TotalTrades = len(sorted)
	s.WinRate = float64(wins) / float64(len(sorted))
	if losses > 0 {
		s.ProfitFactor = grossProfit / grossLoss
	}
	if wins > 0 {
		s.AvgWin = grossProfit / float64(wins)
	}
	if losses > 0 {
		s.AvgLoss = -grossLoss / float64(losses)
	}

	s.MaxDrawdown = maxDrawdown(EquityCurve(sorted))

	if len(returns) > 1 {
		s.Sharpe = mean(returns) / (stddev(returns) + 1e-8) * math.Sqrt(252)
	}

	return s
}

// EquityCurve returns the running sum of net P&L, one point per trade.
// Trades must already be ordered by close time.
func EquityCurve(trades []market.Trade) []float64 {
	curve := make([]float64, len(trades))
	sum := 0.0
	for i, t := range trades {
		sum += t.NetPnL
		curve[i] = sum
	}
	return curve
}

func maxDrawdown(equity []float64) float64 {
	peak := math.Inf(-1)
	maxDD := 0.0
	for _, v := range equity {
		if v > peak {
			peak = v
		}
		if dd := peak - v; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	m := mean(xs)
	sum := 0.0
	for _, x := range xs {
		sum += (x - m) * (x - m)
	}
	return math.Sqrt(sum / float64(len(xs)))
}
