package market

import "time"

// Direction of a trade: long or short.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == Long || d == Short
}

// Signal is a generated trade instruction awaiting execution in the
// simulation. Signals are immutable; the replay loop consumes each one at
// most once, in timestamp order with ties broken by original sequence order.
type Signal struct {
	Symbol     string
	Timeframe  string
	Time       time.Time
	Direction  Direction
	Price      float64 // suggested entry (signal bar close)
	StopLoss   float64
	TakeProfit float64
	Consumed   bool
}
