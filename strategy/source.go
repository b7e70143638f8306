package strategy

import (
	"context"
	"math"

	"backsim/market"
	"backsim/store"
)

// atrSource decorates a BarStore so the bars it hands out carry a computed
// ATR. The replay engine stays ignorant of indicator formulas; it just sees
// enriched bars.
type atrSource struct {
	src    store.BarStore
	period int
}

// NewATRSource wraps src so Bars() fills in ATR values that the raw feed
// left unset.
func NewATRSource(src store.BarStore, period int) store.BarStore {
	return &atrSource{src: src, period: period}
}

func (s *atrSource) InsertBars(ctx context.Context, bars []market.Bar) error {
	return s.src.InsertBars(ctx, bars)
}

func (s *atrSource) Bars(ctx context.Context, symbol, timeframe string) ([]market.Bar, error) {
	bars, err := s.src.Bars(ctx, symbol, timeframe)
	if err != nil || len(bars) == 0 {
		return bars, err
	}
	atr := ATRSeries(bars, s.period)
	for i := range bars {
		if math.IsNaN(bars[i].ATR) {
			bars[i].ATR = atr[i]
		}
	}
	return bars, nil
}
