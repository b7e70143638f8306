package strategy

import (
	"math"

	"backsim/market"
)

// ATRSeries computes the Average True Range with Wilder's smoothing.
// The first period values are NaN while the indicator warms up.
func ATRSeries(bars []market.Bar, period int) []float64 {
	out := make([]float64, len(bars))
	for i := range out {
		out[i] = math.NaN()
	}
	if period <= 0 || len(bars) < period+1 {
		return out
	}

	sum := 0.0
	atr := math.NaN()
	for i := 1; i < len(bars); i++ {
		tr := trueRange(bars[i], bars[i-1])
		if i <= period {
			sum += tr
			if i == period {
				atr = sum / float64(period)
				out[i] = atr
			}
			continue
		}
		atr = (atr*float64(period-1) + tr) / float64(period)
		out[i] = atr
	}
	return out
}

func trueRange(current, previous market.Bar) float64 {
	highLow := current.High - current.Low
	highClose := math.Abs(current.High - previous.Close)
	lowClose := math.Abs(current.Low - previous.Close)
	return math.Max(highLow, math.Max(highClose, lowClose))
}

// RollingMax returns the maximum over the trailing period including the
// current element; NaN until the window fills.
func RollingMax(values []float64, period int) []float64 {
	return rolling(values, period, func(window []float64) float64 {
		max := math.Inf(-1)
		for _, v := range window {
			if v > max {
				max = v
			}
		}
		return max
	})
}

// RollingMin is the mirror of RollingMax.
func RollingMin(values []float64, period int) []float64 {
	return rolling(values, period, func(window []float64) float64 {
		min := math.Inf(1)
		for _, v := range window {
			if v < min {
				min = v
			}
		}
		return min
	})
}

func rolling(values []float64, period int, f func([]float64) float64) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if period <= 0 || i < period-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = f(values[i-period+1 : i+1])
	}
	return out
}

// Momentum returns close[i] - close[i-period], NaN before the lookback is
// available.
func Momentum(closes []float64, period int) []float64 {
	out := make([]float64, len(closes))
	for i := range out {
		if period <= 0 || i < period {
			out[i] = math.NaN()
			continue
		}
		out[i] = closes[i] - closes[i-period]
	}
	return out
}

// Highs extracts the high column from bars.
func Highs(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

// Lows extracts the low column from bars.
func Lows(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

// Closes extracts the close column from bars.
func Closes(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
