package position

import (
	"math"
	"time"

	"backsim/market"
)

// Exit describes a triggered close: the slippage-adjusted fill price, the
// triggering bar's time and the reason.
type Exit struct {
	Price  float64
	Time   time.Time
	Reason market.ExitReason
}

// CheckExit scans bars in ascending time order and returns the first-touch
// exit, if any. Within a bar the stop-loss is evaluated before the
// take-profit, so a bar that would trigger both closes at the stop.
//
// A position with no stop or no target (zero level) is never exited here;
// the caller's end-of-run liquidation picks it up instead.
func (m *Manager) CheckExit(p market.Position, bars []market.Bar) (Exit, bool) {
	if p.StopLoss == 0 || p.TakeProfit == 0 {
		return Exit{}, false
	}

	for _, bar := range bars {
		switch p.Direction {
		case market.Long:
			if bar.Low <= p.StopLoss {
				return Exit{
					Price:  p.StopLoss * (1 - m.cfg.Slippage),
					Time:   bar.Time,
					Reason: market.ExitStopLoss,
				}, true
			}
			if bar.High >= p.TakeProfit {
				return Exit{
					Price:  p.TakeProfit * (1 - m.cfg.Slippage),
					Time:   bar.Time,
					Reason: market.ExitTakeProfit,
				}, true
			}

		case market.Short:
			if bar.High >= p.StopLoss {
				return Exit{
					Price:  math.Max(bar.Open, p.StopLoss) * (1 + m.cfg.Slippage),
					Time:   bar.Time,
					Reason: market.ExitStopLoss,
				}, true
			}
			if bar.Low <= p.TakeProfit {
				return Exit{
					Price:  math.Min(bar.Open, p.TakeProfit) * (1 + m.cfg.Slippage),
					Time:   bar.Time,
					Reason: market.ExitTakeProfit,
				}, true
			}
		}
	}

	return Exit{}, false
}
