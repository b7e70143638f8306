package market

import "time"

// Status of a position. Open positions become closed exactly once and never
// reopen.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// ExitReason explains why a position was closed.
type ExitReason string

const (
	ExitStopLoss   ExitReason = "stop_loss"
	ExitTakeProfit ExitReason = "take_profit"
	ExitEndOfRun   ExitReason = "end_of_backtest"
)

// Position is a live holding created by the position manager. Qty is always
// positive; Direction carries the side. A zero StopLoss or TakeProfit means
// the level is absent and exit evaluation skips the position.
type Position struct {
	ID         string
	Symbol     string
	Direction  Direction
	Qty        float64
	EntryPrice float64
	ATR        float64 // volatility reference used for sizing
	StopLoss   float64
	TakeProfit float64
	OpenTime   time.Time
	Status     Status
}

// Trade is the immutable record written when a position closes. Exactly one
// trade exists per closed position.
type Trade struct {
	PositionID string
	OrderID    string // external order reference, empty for simulated fills
	Symbol     string
	Direction  Direction
	Qty        float64
	EntryPrice float64
	ExitPrice  float64
	OpenTime   time.Time
	CloseTime  time.Time
	GrossPnL   float64
	Fee        float64
	NetPnL     float64
	Reason     ExitReason
}
