// Package fetch acquires OHLCV history from Binance futures and hands it to
// the bar store. It lives entirely at the data boundary: bounded retries,
// fixed backoff and polling sleeps all happen here, never inside the
// simulation.
package fetch

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"

	"backsim/market"
	"backsim/store"
)

const defaultLimit = 1000

// Exchange is the narrow seam to the kline endpoint; tests fake it.
type Exchange interface {
	Klines(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]*futures.Kline, error)
}

type binanceExchange struct {
	client *futures.Client
}

// NewBinanceExchange builds the production Exchange. Pass an empty baseURL
// for the real endpoint.
func NewBinanceExchange(baseURL string) Exchange {
	client := futures.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return &binanceExchange{client: client}
}

func (b *binanceExchange) Klines(ctx context.Context, symbol, interval string, startMs, endMs int64, limit int) ([]*futures.Kline, error) {
	svc := b.client.NewKlinesService().Symbol(symbol).Interval(interval).Limit(limit)
	if startMs > 0 {
		svc = svc.StartTime(startMs)
	}
	if endMs > 0 {
		svc = svc.EndTime(endMs)
	}
	return svc.Do(ctx)
}

type Config struct {
	Symbols    []string
	Timeframes []string
	Start      time.Time
	End        time.Time
	Limit      int           // klines per request
	Retries    int           // attempts per request
	Backoff    time.Duration // fixed wait between attempts
}

func (c Config) withDefaults() Config {
	if c.Limit <= 0 {
		c.Limit = defaultLimit
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 5 * time.Second
	}
	return c
}

type Fetcher struct {
	cfg      Config
	exchange Exchange
	store    store.BarStore
	log      *slog.Logger
}

func NewFetcher(cfg Config, ex Exchange, st store.BarStore, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{cfg: cfg.withDefaults(), exchange: ex, store: st, log: log}
}

// FetchAll downloads the configured range for every symbol and timeframe,
// sequentially. A failed pair is logged and skipped.
func (f *Fetcher) FetchAll(ctx context.Context) error {
	for _, symbol := range f.cfg.Symbols {
		for _, tf := range f.cfg.Timeframes {
			n, err := f.FetchRange(ctx, symbol, tf)
			if err != nil {
				f.log.Error("fetch failed", "symbol", symbol, "timeframe", tf, "err", err)
				continue
			}
			f.log.Info("bars stored", "symbol", symbol, "timeframe", tf, "rows", n)
		}
	}
	return ctx.Err()
}

// FetchRange pages through klines from cfg.Start to cfg.End and inserts
// them. Duplicate rows are swallowed by the store, so re-fetching a range
// is safe.
func (f *Fetcher) FetchRange(ctx context.Context, symbol, timeframe string) (int, error) {
	since := f.cfg.Start.UnixMilli()
	until := f.cfg.End.UnixMilli()
	exchSymbol := toExchangeSymbol(symbol)

	total := 0
	for since < until {
		kls, err := f.klinesWithRetry(ctx, exchSymbol, timeframe, since, until)
		if err != nil {
			return total, err
		}
		if len(kls) == 0 {
			break
		}

		bars := make([]market.Bar, 0, len(kls))
		for _, kl := range kls {
			if kl == nil || kl.OpenTime >= until {
				continue
			}
			bars = append(bars, toBar(symbol, timeframe, kl))
		}
		if len(bars) == 0 {
			break
		}
		if err := f.store.InsertBars(ctx, bars); err != nil {
			return total, err
		}
		total += len(bars)

		since = kls[len(kls)-1].OpenTime + 1
		if len(kls) < f.cfg.Limit {
			break
		}
	}
	return total, nil
}

func (f *Fetcher) klinesWithRetry(ctx context.Context, symbol, interval string, since, until int64) ([]*futures.Kline, error) {
	var lastErr error
	for attempt := 1; attempt <= f.cfg.Retries; attempt++ {
		kls, err := f.exchange.Klines(ctx, symbol, interval, since, until, f.cfg.Limit)
		if err == nil {
			return kls, nil
		}
		lastErr = err
		f.log.Warn("kline request failed",
			"symbol", symbol, "interval", interval, "attempt", attempt, "err", err)
		if attempt == f.cfg.Retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.cfg.Backoff):
		}
	}
	return nil, lastErr
}

func toBar(symbol, timeframe string, kl *futures.Kline) market.Bar {
	return market.Bar{
		Symbol:    symbol,
		Timeframe: timeframe,
		Time:      time.UnixMilli(kl.OpenTime).UTC(),
		Open:      parseFloat(kl.Open),
		High:      parseFloat(kl.High),
		Low:       parseFloat(kl.Low),
		Close:     parseFloat(kl.Close),
		Volume:    parseFloat(kl.Volume),
		ATR:       math.NaN(),
	}
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// toExchangeSymbol strips the pair separator: "BTC/USDT" -> "BTCUSDT".
func toExchangeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(symbol, "/", ""))
}
