package position

import "math"

// CalculateSize returns the risk-based quantity for an entry:
//
//	riskAmount = capital * riskPerTrade
//	stopDistance = atr * stopLossATR
//	qty = riskAmount / (stopDistance * leverage)
//
// rounded to the configured quantity precision. Returns 0 (logged, never an
// error) when the stop distance is not positive or any input is unusable.
func (m *Manager) CalculateSize(entryPrice, atr, capital float64) float64 {
	if !finite(entryPrice) || !finite(atr) || !finite(capital) || capital <= 0 {
		m.log.Warn("unusable sizing input", "entry", entryPrice, "atr", atr, "capital", capital)
		return 0
	}

	stopDistance := atr * m.cfg.StopLossATR
	if stopDistance <= 0 {
		m.log.Warn("non-positive stop distance", "atr", atr, "multiple", m.cfg.StopLossATR)
		return 0
	}

	riskAmount := capital * m.cfg.RiskPerTrade
	qty := riskAmount / (stopDistance * m.cfg.Leverage)
	qty = roundTo(qty, m.cfg.QtyPrecision)
	if !finite(qty) || qty < 0 {
		return 0
	}
	return qty
}

func roundTo(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
