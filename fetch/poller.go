package fetch

import (
	"context"
	"time"

	"backsim/market"
)

// Poll keeps the bar store current: every interval it pulls the most recent
// klines for each symbol/timeframe and inserts them, relying on the store's
// idempotent ingestion to drop rows it already has. Runs until ctx is
// cancelled.
func (f *Fetcher) Poll(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		f.pollOnce(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (f *Fetcher) pollOnce(ctx context.Context) {
	for _, symbol := range f.cfg.Symbols {
		for _, tf := range f.cfg.Timeframes {
			kls, err := f.klinesWithRetry(ctx, toExchangeSymbol(symbol), tf, 0, 0)
			if err != nil {
				f.log.Error("poll fetch failed", "symbol", symbol, "timeframe", tf, "err", err)
				continue
			}
			if len(kls) == 0 {
				continue
			}
			bars := make([]market.Bar, 0, len(kls))
			for _, kl := range kls {
				if kl == nil {
					continue
				}
				bars = append(bars, toBar(symbol, tf, kl))
			}
			if err := f.store.InsertBars(ctx, bars); err != nil {
				f.log.Error("poll insert failed", "symbol", symbol, "timeframe", tf, "err", err)
				continue
			}
			f.log.Debug("poll stored bars", "symbol", symbol, "timeframe", tf, "rows", len(bars))
		}
	}
}
