// Package memory is an in-memory store implementation used by tests and
// dry runs. It mirrors the SQLite store's ordering guarantees.
package memory

import (
	"context"
	"sort"
	"sync"

	"backsim/market"
	"backsim/store"
)

type Store struct {
	mu        sync.RWMutex
	bars      map[string][]market.Bar    // keyed by symbol@timeframe
	signals   map[string][]market.Signal // keyed by symbol@timeframe
	positions map[string]market.Position // keyed by position ID
	posOrder  []string                   // insertion order for OpenPositions
	trades    []market.Trade
}

func New() *Store {
	return &Store{
		bars:      make(map[string][]market.Bar),
		signals:   make(map[string][]market.Signal),
		positions: make(map[string]market.Position),
	}
}

func key(symbol, timeframe string) string {
	return symbol + "@" + timeframe
}

func (s *Store) InsertBars(_ context.Context, bars []market.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range bars {
		k := key(b.Symbol, b.Timeframe)
		exists := false
		for _, row := range s.bars[k] {
			if row.Time.Equal(b.Time) {
				exists = true // idempotent ingestion
				break
			}
		}
		if !exists {
			s.bars[k] = append(s.bars[k], b)
		}
	}
	for k := range s.bars {
		rows := s.bars[k]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Time.Before(rows[j].Time) })
	}
	return nil
}

func (s *Store) Bars(_ context.Context, symbol, timeframe string) ([]market.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.bars[key(symbol, timeframe)]
	out := make([]market.Bar, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *Store) InsertSignals(_ context.Context, signals []market.Signal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sig := range signals {
		k := key(sig.Symbol, sig.Timeframe)
		s.signals[k] = append(s.signals[k], sig)
	}
	for k := range s.signals {
		rows := s.signals[k]
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Time.Before(rows[j].Time) })
	}
	return nil
}

func (s *Store) Signals(_ context.Context, symbol, timeframe string) ([]market.Signal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.signals[key(symbol, timeframe)]
	out := make([]market.Signal, len(rows))
	copy(out, rows)
	return out, nil
}

func (s *Store) InsertPosition(_ context.Context, p market.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.positions[p.ID]; exists {
		return store.ErrDuplicate
	}
	s.positions[p.ID] = p
	s.posOrder = append(s.posOrder, p.ID)
	return nil
}

func (s *Store) Position(_ context.Context, id string) (market.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[id]
	if !ok {
		return market.Position{}, store.ErrNotFound
	}
	return p, nil
}

func (s *Store) OpenPositions(_ context.Context) ([]market.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []market.Position
	for _, id := range s.posOrder {
		if p := s.positions[id]; p.Status == market.StatusOpen {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) HasOpen(_ context.Context, symbol string, dir market.Direction, entryPrice float64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.positions {
		if p.Status == market.StatusOpen && p.Symbol == symbol && p.Direction == dir && p.EntryPrice == entryPrice {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) MarkClosed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[id]
	if !ok || p.Status != market.StatusOpen {
		return store.ErrNotFound
	}
	p.Status = market.StatusClosed
	s.positions[id] = p
	return nil
}

func (s *Store) InsertTrade(_ context.Context, t market.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.OrderID != "" {
		for _, existing := range s.trades {
			if existing.OrderID == t.OrderID {
				return store.ErrDuplicate
			}
		}
	}
	s.trades = append(s.trades, t)
	return nil
}

func (s *Store) Trades(_ context.Context) ([]market.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]market.Trade, len(s.trades))
	copy(out, s.trades)
	return out, nil
}

func (s *Store) TradesBySymbol(_ context.Context, symbol string) ([]market.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []market.Trade
	for _, t := range s.trades {
		if t.Symbol == symbol {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) Close() error { return nil }

var _ store.Store = (*Store)(nil)
